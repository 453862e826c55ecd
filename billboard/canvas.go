// Package billboard implements the pure state model of the on-chain UBB
// billboard protocol: the canvas geometry, the plot lifecycle, and the
// snapshot value the indexer engine produces one per block.
package billboard

// CanvasSize is the width and height, in pixels, of the billboard canvas.
// Valid coordinates are 0..=CanvasSize-1.
const CanvasSize = 65536

// DeedValueSatoshis is the exact output value that marks an output as a
// deed output.
const DeedValueSatoshis = 600

// DustThresholdSatoshis is informational for callers building UBB
// transactions; the core never constructs transactions itself.
const DustThresholdSatoshis = 546

// Rect is a half-open rectangle [X0, X0+W) x [Y0, Y0+H) on the canvas.
type Rect struct {
	X0, Y0 uint16
	W, H   uint16
}

// x1 and y1 return the exclusive right/bottom edges as ints, since
// X0+W can overflow a uint16 for the maximal plot at the canvas edge.
func (r Rect) x1() int { return int(r.X0) + int(r.W) }
func (r Rect) y1() int { return int(r.Y0) + int(r.H) }

// Fits reports whether r lies entirely within the canvas and has strictly
// positive dimensions.
func (r Rect) Fits() bool {
	if r.W == 0 || r.H == 0 {
		return false
	}
	return r.x1() <= CanvasSize && r.y1() <= CanvasSize
}

// Overlaps reports whether r and o share any pixel. Touching edges do not
// overlap: [0,2)x[0,2) and [2,4)x[0,2) are adjacent, not overlapping.
func (r Rect) Overlaps(o Rect) bool {
	return int(r.X0) < o.x1() && r.x1() > int(o.X0) &&
		int(r.Y0) < o.y1() && r.y1() > int(o.Y0)
}
