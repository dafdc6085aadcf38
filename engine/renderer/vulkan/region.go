package vulkan

type Point struct {
	X, Y uint32
}

// Rect is the half-open pixel rectangle [Start, End).
type Rect struct {
	Start Point
	End   Point
}

func FullRect(width, height uint32) Rect {
	return Rect{End: Point{X: width, Y: height}}
}

func (r Rect) Width() uint32  { return r.End.X - r.Start.X }
func (r Rect) Height() uint32 { return r.End.Y - r.Start.Y }

func (r Rect) Empty() bool {
	return r.End.X <= r.Start.X || r.End.Y <= r.Start.Y
}

// Within reports whether r lies inside a width x height image.
func (r Rect) Within(width, height uint32) bool {
	return r.End.X <= width && r.End.Y <= height
}

// Union returns the bounding rectangle of r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Start: Point{X: min(r.Start.X, o.Start.X), Y: min(r.Start.Y, o.Start.Y)},
		End:   Point{X: max(r.End.X, o.End.X), Y: max(r.End.Y, o.End.Y)},
	}
}

// DirtyRegion tracks the pixels written since the last flush. It is either
// clean or holds the bounding rectangle of every write.
type DirtyRegion struct {
	rect    Rect
	pending bool
}

// Extend grows the region to cover r.
func (d *DirtyRegion) Extend(r Rect) {
	if !d.pending {
		d.rect = r
		d.pending = true
		return
	}
	d.rect = d.rect.Union(r)
}

// Rect returns the pending rectangle, or false when nothing is pending.
func (d DirtyRegion) Rect() (Rect, bool) {
	return d.rect, d.pending
}

func (d DirtyRegion) IsEmpty() bool {
	return !d.pending
}

func (d *DirtyRegion) Clear() {
	*d = DirtyRegion{}
}
