package billboard

import "testing"

func TestRect_Fits(t *testing.T) {
	cases := []struct {
		name string
		r    Rect
		want bool
	}{
		{"1x1 at origin", Rect{X0: 0, Y0: 0, W: 1, H: 1}, true},
		{"1x1 at max corner", Rect{X0: CanvasSize - 1, Y0: CanvasSize - 1, W: 1, H: 1}, true},
		{"2x2 at max corner overflows", Rect{X0: CanvasSize - 1, Y0: CanvasSize - 1, W: 2, H: 2}, false},
		{"zero width", Rect{X0: 0, Y0: 0, W: 0, H: 5}, false},
		{"zero height", Rect{X0: 0, Y0: 0, W: 5, H: 0}, false},
		{"maximal plot reaching the far edges", Rect{X0: 1, Y0: 1, W: CanvasSize - 1, H: CanvasSize - 1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.r.Fits(); got != c.want {
				t.Errorf("Fits() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestRect_Overlaps(t *testing.T) {
	a := Rect{X0: 0, Y0: 0, W: 2, H: 2}

	cases := []struct {
		name string
		b    Rect
		want bool
	}{
		{"touching right edge", Rect{X0: 2, Y0: 0, W: 2, H: 2}, false},
		{"touching bottom edge", Rect{X0: 0, Y0: 2, W: 2, H: 2}, false},
		{"one pixel overlap", Rect{X0: 1, Y0: 1, W: 2, H: 2}, true},
		{"fully contained", Rect{X0: 0, Y0: 0, W: 1, H: 1}, true},
		{"disjoint far away", Rect{X0: 100, Y0: 100, W: 2, H: 2}, false},
		{"identical", Rect{X0: 0, Y0: 0, W: 2, H: 2}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := a.Overlaps(c.b); got != c.want {
				t.Errorf("Overlaps(%+v) = %v, want %v", c.b, got, c.want)
			}
			if got := c.b.Overlaps(a); got != c.want {
				t.Errorf("Overlaps symmetric case failed: %+v.Overlaps(a) = %v, want %v", c.b, got, c.want)
			}
		})
	}
}
