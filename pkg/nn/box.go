package nn

import (
	"github.com/chewxy/math32"
)

// Box is an axis-aligned bounding box in normalized image coordinates.
// (0,0) is the top-left of the image and (1,1) is the bottom-right.
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Create a box from center, width and height (the native YOLO layout)
func BoxFromCenter(cx, cy, w, h float32) Box {
	return Box{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

func (b Box) Width() float32 {
	return b.X2 - b.X1
}

func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

// Area is zero for inverted boxes
func (b Box) Area() float32 {
	return max(0, b.Width()) * max(0, b.Height())
}

func (b Box) Center() (float32, float32) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IsFinite is false if any coordinate is NaN or infinite
func (b Box) IsFinite() bool {
	for _, v := range [4]float32{b.X1, b.Y1, b.X2, b.Y2} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamped returns the box with all coordinates limited to [0,1]
func (b Box) Clamped() Box {
	return Box{
		X1: clamp01(b.X1),
		Y1: clamp01(b.Y1),
		X2: clamp01(b.X2),
		Y2: clamp01(b.Y2),
	}
}

// IsDegenerate is true if the box has no area
func (b Box) IsDegenerate() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

func (b Box) Intersection(o Box) Box {
	return Box{
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2),
		Y2: min(b.Y2, o.Y2),
	}
}

// Intersection over Union. Returns 0 for disjoint or empty boxes.
func (b Box) IOU(o Box) float32 {
	inter := b.Intersection(o)
	if inter.IsDegenerate() {
		return 0
	}
	ia := inter.Area()
	union := b.Area() + o.Area() - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// Blend returns b*(1-w) + o*w, per coordinate
func (b Box) Blend(o Box, w float32) Box {
	return Box{
		X1: b.X1*(1-w) + o.X1*w,
		Y1: b.Y1*(1-w) + o.Y1*w,
		X2: b.X2*(1-w) + o.X2*w,
		Y2: b.Y2*(1-w) + o.Y2*w,
	}
}

// Average returns the coordinate-wise mean of the two boxes
func (b Box) Average(o Box) Box {
	return Box{
		X1: (b.X1 + o.X1) / 2,
		Y1: (b.Y1 + o.Y1) / 2,
		X2: (b.X2 + o.X2) / 2,
		Y2: (b.Y2 + o.Y2) / 2,
	}
}

// ToPixels converts to a pixel rectangle in an image of the given size.
// Coordinates are rounded, and clamped to [0, width-1] and [0, height-1].
func (b Box) ToPixels(width, height int) Rect {
	x1 := pixelClamp(b.X1, width)
	y1 := pixelClamp(b.Y1, height)
	x2 := pixelClamp(b.X2, width)
	y2 := pixelClamp(b.Y2, height)
	return MakeRect(x1, y1, x2, y2)
}

// BoxFromPixels is the inverse of ToPixels (without the clamping)
func BoxFromPixels(r Rect, width, height int) Box {
	fw, fh := float32(width), float32(height)
	return Box{
		X1: float32(r.X) / fw,
		Y1: float32(r.Y) / fh,
		X2: float32(r.X2()) / fw,
		Y2: float32(r.Y2()) / fh,
	}
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func pixelClamp(v float32, size int) int {
	p := int(math32.Round(v * float32(size)))
	return min(max(p, 0), max(size-1, 0))
}
