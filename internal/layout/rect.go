package layout

// Rect is an axis-aligned box in px.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Empty reports whether both width and height are zero.
func (r Rect) Empty() bool {
	return r.Width == 0 && r.Height == 0
}

// Union returns the smallest rect covering r and o.
func (r Rect) Union(o Rect) Rect {
	top := min(r.Top, o.Top)
	left := min(r.Left, o.Left)
	return Rect{
		Top:    top,
		Left:   left,
		Width:  max(r.Right(), o.Right()) - left,
		Height: max(r.Bottom(), o.Bottom()) - top,
	}
}

// Contains reports whether (x, y) lies inside r grown by tol on every side.
func (r Rect) Contains(x, y, tol float64) bool {
	return x >= r.Left-tol && x <= r.Right()+tol &&
		y >= r.Top-tol && y <= r.Bottom()+tol
}

// Grow expands r by d on every side.
func (r Rect) Grow(d float64) Rect {
	return Rect{
		Top:    r.Top - d,
		Left:   r.Left - d,
		Width:  r.Width + 2*d,
		Height: r.Height + 2*d,
	}
}
