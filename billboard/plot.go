package billboard

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a plot.
type Status int

const (
	// PLACED plots occupy their rectangle on the canvas.
	PLACED Status = iota
	// UNPLACED plots exist (their deed is live) but their rectangle is
	// out of bounds or overlaps placed space.
	UNPLACED
	// BRICKED plots had their deed chain broken. Terminal.
	BRICKED
)

// String renders a Status the way it appears in snapshot serialization.
func (s Status) String() string {
	switch s {
	case PLACED:
		return "PLACED"
	case UNPLACED:
		return "UNPLACED"
	case BRICKED:
		return "BRICKED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus parses the textual form Status.String produces, for
// deserializing a persisted snapshot.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "PLACED":
		return PLACED, nil
	case "UNPLACED":
		return UNPLACED, nil
	case "BRICKED":
		return BRICKED, nil
	default:
		return 0, fmt.Errorf("unknown plot status %q", s)
	}
}

// Outpoint identifies a transaction output as "txid:vout".
type Outpoint struct {
	TxID string
	Vout uint32
}

// Plot is a single claimed rectangle on the canvas and its deed-UTXO
// lifecycle state, per spec §3.
type Plot struct {
	TxID string // CLAIM txid; stable identity for the plot's entire life.

	Rect Rect // mutable (x0,y0) only by RETRY-CLAIM while UNPLACED; W,H immutable after CLAIM.

	Status Status

	DeedUTXO Outpoint // current owning UTXO; zero value once BRICKED.

	ImageHash [32]byte // hash of the latest BMP bytes.

	Owner string // address derived from the deed UTXO's script; empty when BRICKED.

	URI string // optional, from the latest CLAIM/UPDATE.

	WasPlacedBeforeBricking bool // only meaningful when Status == BRICKED.

	CreatedAt   time.Time
	LastUpdated time.Time
}

// Clone returns a shallow copy of p suitable for a copy-on-write mutation;
// Plot has no reference fields that need a deep copy.
func (p *Plot) Clone() *Plot {
	clone := *p
	return &clone
}
