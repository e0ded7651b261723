// Package motion estimates which pixels of a frame are moving, and uses that
// to decide whether a detection is believable on its own.
package motion

import (
	"image"

	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
)

// Subtractor maintains a background model, and produces a foreground mask for each frame.
// Mask pixels are 255 where there is motion, and 0 elsewhere.
type Subtractor interface {
	Apply(img image.Image) (*image.Gray, error)
	Close()
}

// Fraction returns the fraction of mask pixels inside r that are non-zero.
// r is clipped to the mask, and an empty rectangle has a fraction of zero.
func Fraction(mask *image.Gray, r nn.Rect) float32 {
	if mask == nil {
		return 0
	}
	b := mask.Bounds()
	x1 := max(r.X, b.Min.X)
	y1 := max(r.Y, b.Min.Y)
	x2 := min(r.X2(), b.Max.X)
	y2 := min(r.Y2(), b.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	moving := 0
	for y := y1; y < y2; y++ {
		row := mask.Pix[mask.PixOffset(x1, y) : mask.PixOffset(x2, y)]
		for _, v := range row {
			if v != 0 {
				moving++
			}
		}
	}
	return float32(moving) / float32((x2-x1)*(y2-y1))
}

// Reason explains why a candidate was (or was not) verified
type Reason string

const (
	ReasonNone   Reason = ""
	ReasonScore  Reason = "score"  // Confident enough on its own
	ReasonMotion Reason = "motion" // Moderate confidence, backed up by motion under the box
)

// VerifyPolicy decides if a single detection is trustworthy enough to be reported
// without waiting for it to persist.
type VerifyPolicy struct {
	InstantScore   float32 `json:"instantScore"`   // A score at or above this verifies immediately
	MotionFraction float32 `json:"motionFraction"` // Fraction of moving pixels under the box required for motion verification
	MinScore       float32 `json:"minScore"`       // Minimum score for motion verification
}

func DefaultVerifyPolicy() VerifyPolicy {
	return VerifyPolicy{
		InstantScore:   0.40,
		MotionFraction: 0.05,
		MinScore:       0.10,
	}
}

func (p *VerifyPolicy) Verify(score, motionFraction float32) (bool, Reason) {
	if score >= p.InstantScore {
		return true, ReasonScore
	}
	if motionFraction >= p.MotionFraction && score >= p.MinScore {
		return true, ReasonMotion
	}
	return false, ReasonNone
}
