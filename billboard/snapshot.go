package billboard

import (
	"sort"
	"time"
)

// Snapshot is a pure, immutable value: the reconstructed state of the
// billboard as of one block. Per spec §3, snapshots persisted for past
// blocks are read-only forever; only the Engine's in-progress working
// snapshot is ever mutated, and only via Fork + Set* which copy-on-write.
type Snapshot struct {
	BlockHash   string
	ParentHash  string
	BlockHeight uint32
	Timestamp   time.Time
	TxCount     int

	plots     map[string]*Plot    // keyed by CLAIM txid
	deedIndex map[Outpoint]string // deed outpoint -> owning plot's txid
	placedIdx *gridIndex          // PLACED and (BRICKED && WasPlacedBeforeBricking) rects
}

// NewGenesisSnapshot returns the empty working snapshot the Engine starts
// from when it initializes state at the UBB genesis block.
func NewGenesisSnapshot(blockHash, parentHash string, height uint32, ts time.Time, txCount int) *Snapshot {
	return &Snapshot{
		BlockHash:   blockHash,
		ParentHash:  parentHash,
		BlockHeight: height,
		Timestamp:   ts,
		TxCount:     txCount,
		plots:       make(map[string]*Plot),
		deedIndex:   make(map[Outpoint]string),
		placedIdx:   newGridIndex(),
	}
}

// Fork produces a new working snapshot re-stamped with a successor block's
// identifiers, sharing every plot and index bucket with s until this fork's
// mutations touch them (step 2 of Phase 2, §4.8).
func (s *Snapshot) Fork(blockHash string, height uint32, ts time.Time, txCount int) *Snapshot {
	plotsClone := make(map[string]*Plot, len(s.plots))
	for k, v := range s.plots {
		plotsClone[k] = v
	}
	deedClone := make(map[Outpoint]string, len(s.deedIndex))
	for k, v := range s.deedIndex {
		deedClone[k] = v
	}
	return &Snapshot{
		BlockHash:   blockHash,
		ParentHash:  s.BlockHash,
		BlockHeight: height,
		Timestamp:   ts,
		TxCount:     txCount,
		plots:       plotsClone,
		deedIndex:   deedClone,
		placedIdx:   s.placedIdx.clone(),
	}
}

// PlotByTxID looks up a plot by its stable CLAIM-transaction identity.
func (s *Snapshot) PlotByTxID(txid string) (*Plot, bool) {
	p, ok := s.plots[txid]
	return p, ok
}

// PlotByDeedOutpoint looks up the plot currently owning a deed UTXO.
func (s *Snapshot) PlotByDeedOutpoint(op Outpoint) (*Plot, bool) {
	txid, ok := s.deedIndex[op]
	if !ok {
		return nil, false
	}
	return s.PlotByTxID(txid)
}

// occupiesSpace reports whether p currently reserves canvas pixels, per the
// bricking design note: PLACED plots and BRICKED plots that were PLACED at
// the moment of bricking occupy space forever; everything else does not.
func occupiesSpace(p *Plot) bool {
	return p.Status == PLACED || (p.Status == BRICKED && p.WasPlacedBeforeBricking)
}

// OverlapsOccupied reports whether r overlaps any plot that currently
// occupies canvas space, excluding the plot named exclude (used by
// RETRY-CLAIM so a plot doesn't collide with its own prior rectangle).
func (s *Snapshot) OverlapsOccupied(r Rect, exclude string) bool {
	for id := range s.placedIdx.candidates(r) {
		if id == exclude {
			continue
		}
		p, ok := s.plots[id]
		if !ok || !occupiesSpace(p) {
			continue
		}
		if p.Rect.Overlaps(r) {
			return true
		}
	}
	return false
}

// DetermineStatus implements §4.6's status-determination rule for a
// candidate rectangle: out of bounds or colliding with occupied space
// yields UNPLACED, otherwise PLACED.
func (s *Snapshot) DetermineStatus(r Rect, exclude string) Status {
	if !r.Fits() {
		return UNPLACED
	}
	if s.OverlapsOccupied(r, exclude) {
		return UNPLACED
	}
	return PLACED
}

// SetPlot inserts or replaces a plot, keeping the deed index and spatial
// index consistent with the plot's new Status/Rect/DeedUTXO. prev is the
// plot's previous value in this snapshot (nil if it's new).
func (s *Snapshot) SetPlot(prev, next *Plot) {
	if prev != nil && occupiesSpace(prev) {
		s.placedIdx.remove(prev.TxID, prev.Rect)
	}
	s.plots[next.TxID] = next
	if occupiesSpace(next) {
		s.placedIdx.insert(next.TxID, next.Rect)
	}
}

// RotateDeed removes oldOp (if set) from the deed index and adds newOp
// pointing at txid. oldOp's zero value is a no-op removal.
func (s *Snapshot) RotateDeed(oldOp Outpoint, newOp Outpoint, txid string) {
	if oldOp != (Outpoint{}) {
		delete(s.deedIndex, oldOp)
	}
	if newOp != (Outpoint{}) {
		s.deedIndex[newOp] = txid
	}
}

// RemoveDeed removes op from the deed index without adding a replacement,
// used when a plot is bricked.
func (s *Snapshot) RemoveDeed(op Outpoint) {
	if op != (Outpoint{}) {
		delete(s.deedIndex, op)
	}
}

// Plots returns every plot in the snapshot, ordered by txid for
// deterministic serialization and iteration (Testable Property 3).
func (s *Snapshot) Plots() []*Plot {
	out := make([]*Plot, 0, len(s.plots))
	for _, p := range s.plots {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

// DeedUTXOSet returns the set of live deed outpoints, ordered for
// deterministic serialization.
func (s *Snapshot) DeedUTXOSet() []Outpoint {
	out := make([]Outpoint, 0, len(s.deedIndex))
	for op := range s.deedIndex {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TxID != out[j].TxID {
			return out[i].TxID < out[j].TxID
		}
		return out[i].Vout < out[j].Vout
	})
	return out
}

// PlotCount returns the number of plots tracked, for warnings/metrics.
func (s *Snapshot) PlotCount() int { return len(s.plots) }
