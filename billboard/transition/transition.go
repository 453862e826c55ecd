// Package transition implements the per-transaction state-transition
// function: given a working snapshot and a classified transaction, it
// mutates the snapshot in place (via the snapshot's own copy-on-write
// setters) and reports what happened for the engine to aggregate into a
// run result.
package transition

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/MysticalGareth/UBB-sub000/billboard"
	"github.com/MysticalGareth/UBB-sub000/billboard/bmp"
	"github.com/MysticalGareth/UBB-sub000/billboard/classifier"
	"github.com/MysticalGareth/UBB-sub000/billboard/payload"
)

// Result reports the effect Apply had on the snapshot, including any
// image bytes the caller (the Engine) should hand to the State Store —
// transition itself never touches disk.
type Result struct {
	Warning string // empty unless a ParsePayloadError/InvalidBMP/InvalidDeedFlow/PlotNotFound-class condition fired.

	PlotCreated bool
	PlotUpdated bool
	PlotBricked bool

	SaveImageTxID string // non-empty when a BMP should be persisted under this txid.
	SaveImageData []byte
}

// Apply runs the decision table of §4.9 against one already-classified,
// UBB-relevant transaction. txid is the transaction's own hash (the
// candidate CLAIM identity); now is the block's timestamp, used to stamp
// CreatedAt/LastUpdated.
func Apply(s *billboard.Snapshot, txid string, c classifier.Classified, now time.Time) Result {
	singleDeed := len(c.DeedOutputs) == 1
	var d0 classifier.DeedOutput
	if singleDeed {
		d0 = c.DeedOutputs[0]
	}

	if c.Payload == nil {
		return applyTransferOnly(s, c, d0, singleDeed, now, "")
	}

	p := payload.Parse(c.Payload)
	switch p.Kind {
	case payload.KindInvalid:
		return applyTransferOnly(s, c, d0, singleDeed, now, fmt.Sprintf("ParsePayloadError: %s", p.InvalidReason))
	case payload.KindTransfer:
		return applyTransferOnly(s, c, d0, singleDeed, now, "")
	case payload.KindClaim:
		return applyClaim(s, txid, p, c, d0, singleDeed, now)
	case payload.KindRetryClaim:
		return applyRetryClaim(s, p, c, d0, singleDeed, now)
	case payload.KindUpdate:
		return applyUpdate(s, p, c, d0, singleDeed, now)
	default:
		return applyTransferOnly(s, c, d0, singleDeed, now, "unknown payload type")
	}
}

// applyTransferOnly implements the TRANSFER (P=∅) rows of the decision
// table, used both for genuine TRANSFER payloads and for every other case
// that falls through to transfer-only semantics.
func applyTransferOnly(s *billboard.Snapshot, c classifier.Classified, d0 classifier.DeedOutput, singleDeed bool, now time.Time, warning string) Result {
	if !c.HasSpentDeed {
		return Result{Warning: warning}
	}
	plot, ok := s.PlotByDeedOutpoint(c.SpentDeed)
	if !ok {
		return Result{Warning: joinWarning(warning, "PlotNotFound: spent deed has no tracked plot")}
	}

	if !singleDeed {
		bricked := brick(plot, now)
		s.SetPlot(plot, bricked)
		s.RemoveDeed(c.SpentDeed)
		return Result{PlotBricked: true, Warning: joinWarning(warning, fmt.Sprintf("InvalidDeedFlow: %d deed outputs on spend", len(c.DeedOutputs)))}
	}

	if plot.Status == billboard.BRICKED {
		return Result{Warning: warning}
	}

	next := rotateOwnership(plot, d0, now)
	s.SetPlot(plot, next)
	s.RotateDeed(c.SpentDeed, next.DeedUTXO, next.TxID)
	return Result{PlotUpdated: true, Warning: warning}
}

func applyClaim(s *billboard.Snapshot, txid string, p payload.Parsed, c classifier.Classified, d0 classifier.DeedOutput, singleDeed bool, now time.Time) Result {
	if c.HasSpentDeed || !singleDeed {
		// CLAIM never spends a deed and must fund exactly one new deed;
		// either violation drops the CLAIM and falls through to
		// transfer-only semantics against whatever deed was actually spent.
		return applyTransferOnly(s, c, d0, singleDeed, now, "")
	}

	info, err := bmp.Validate(p.BMP)
	if err != nil {
		return Result{Warning: fmt.Sprintf("InvalidBMP: %s", err)}
	}

	rect := billboard.Rect{X0: p.X0, Y0: p.Y0, W: uint16(info.Width), H: uint16(info.Height)}
	status := s.DetermineStatus(rect, "")

	plot := &billboard.Plot{
		TxID:        txid,
		Rect:        rect,
		Status:      status,
		DeedUTXO:    d0.Outpoint,
		ImageHash:   sha256.Sum256(p.BMP),
		Owner:       d0.Address,
		URI:         p.URI,
		CreatedAt:   now,
		LastUpdated: now,
	}
	s.SetPlot(nil, plot)
	s.RotateDeed(billboard.Outpoint{}, d0.Outpoint, txid)

	return Result{
		PlotCreated:   true,
		SaveImageTxID: txid,
		SaveImageData: p.BMP,
	}
}

func applyRetryClaim(s *billboard.Snapshot, p payload.Parsed, c classifier.Classified, d0 classifier.DeedOutput, singleDeed bool, now time.Time) Result {
	if !c.HasSpentDeed {
		return Result{}
	}
	if !singleDeed {
		plot, ok := s.PlotByDeedOutpoint(c.SpentDeed)
		if !ok {
			return Result{Warning: "PlotNotFound: spent deed has no tracked plot"}
		}
		bricked := brick(plot, now)
		s.SetPlot(plot, bricked)
		s.RemoveDeed(c.SpentDeed)
		return Result{PlotBricked: true, Warning: fmt.Sprintf("InvalidDeedFlow: %d deed outputs on spend", len(c.DeedOutputs))}
	}

	plot, ok := s.PlotByDeedOutpoint(c.SpentDeed)
	if !ok {
		return Result{Warning: "PlotNotFound: spent deed has no tracked plot"}
	}

	if plot.Status != billboard.UNPLACED {
		// Dropped, but the deed still rotates: the spend is valid even
		// though the retry itself does not apply.
		next := rotateOwnership(plot, d0, now)
		s.SetPlot(plot, next)
		s.RotateDeed(c.SpentDeed, next.DeedUTXO, next.TxID)
		return Result{PlotUpdated: true, Warning: "retry-claim target is not UNPLACED; deed rotated only"}
	}

	next := plot.Clone()
	next.Rect.X0 = p.X0
	next.Rect.Y0 = p.Y0
	next.Status = s.DetermineStatus(next.Rect, next.TxID)
	next.DeedUTXO = d0.Outpoint
	next.Owner = d0.Address
	next.LastUpdated = now
	s.SetPlot(plot, next)
	s.RotateDeed(c.SpentDeed, d0.Outpoint, next.TxID)

	return Result{PlotUpdated: true}
}

func applyUpdate(s *billboard.Snapshot, p payload.Parsed, c classifier.Classified, d0 classifier.DeedOutput, singleDeed bool, now time.Time) Result {
	if !c.HasSpentDeed {
		return Result{}
	}
	if !singleDeed {
		plot, ok := s.PlotByDeedOutpoint(c.SpentDeed)
		if !ok {
			return Result{Warning: "PlotNotFound: spent deed has no tracked plot"}
		}
		bricked := brick(plot, now)
		s.SetPlot(plot, bricked)
		s.RemoveDeed(c.SpentDeed)
		return Result{PlotBricked: true, Warning: fmt.Sprintf("InvalidDeedFlow: %d deed outputs on spend", len(c.DeedOutputs))}
	}

	plot, ok := s.PlotByDeedOutpoint(c.SpentDeed)
	if !ok {
		return Result{Warning: "PlotNotFound: spent deed has no tracked plot"}
	}

	if plot.Status != billboard.PLACED {
		next := rotateOwnership(plot, d0, now)
		s.SetPlot(plot, next)
		s.RotateDeed(c.SpentDeed, next.DeedUTXO, next.TxID)
		return Result{PlotUpdated: true}
	}

	info, err := bmp.Validate(p.BMP)
	matches := err == nil &&
		uint16(info.Width) == plot.Rect.W &&
		uint16(info.Height) == plot.Rect.H &&
		p.X0 == plot.Rect.X0 &&
		p.Y0 == plot.Rect.Y0

	next := plot.Clone()
	next.DeedUTXO = d0.Outpoint
	next.Owner = d0.Address
	next.LastUpdated = now

	if !matches {
		s.SetPlot(plot, next)
		s.RotateDeed(c.SpentDeed, d0.Outpoint, next.TxID)
		warning := "update payload dimensions/coordinates do not match original"
		if err != nil {
			warning = fmt.Sprintf("InvalidBMP: %s", err)
		}
		return Result{PlotUpdated: true, Warning: warning}
	}

	next.ImageHash = sha256.Sum256(p.BMP)
	next.URI = p.URI
	s.SetPlot(plot, next)
	s.RotateDeed(c.SpentDeed, d0.Outpoint, next.TxID)

	return Result{
		PlotUpdated:   true,
		SaveImageTxID: plot.TxID,
		SaveImageData: p.BMP,
	}
}

func brick(plot *billboard.Plot, now time.Time) *billboard.Plot {
	next := plot.Clone()
	next.WasPlacedBeforeBricking = plot.Status == billboard.PLACED
	next.Status = billboard.BRICKED
	next.Owner = ""
	next.DeedUTXO = billboard.Outpoint{}
	next.LastUpdated = now
	return next
}

func rotateOwnership(plot *billboard.Plot, d0 classifier.DeedOutput, now time.Time) *billboard.Plot {
	next := plot.Clone()
	next.DeedUTXO = d0.Outpoint
	next.Owner = d0.Address
	next.LastUpdated = now
	return next
}

func joinWarning(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "; " + b
}
