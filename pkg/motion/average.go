package motion

import (
	"image"

	"github.com/disintegration/imaging"
)

// Bounds on the per-pixel variance, in squared grey levels
const (
	varianceInit = 15 * 15
	varianceMin  = 4
	varianceMax  = 5 * varianceInit
)

// RunningGaussian is a background model with a single gaussian per pixel.
// It is a lightweight stand-in for OpenCV's MOG2, with the same meaning for
// history and varThreshold.
type RunningGaussian struct {
	history      int
	varThreshold float32
	width        int
	height       int
	nFrames      int
	mean         []float32
	variance     []float32
}

// history is the number of frames that make up the background.
// varThreshold is the squared Mahalanobis distance at which a pixel is considered foreground.
func NewRunningGaussian(history int, varThreshold float32) *RunningGaussian {
	return &RunningGaussian{
		history:      max(history, 1),
		varThreshold: varThreshold,
	}
}

func (g *RunningGaussian) Apply(img image.Image) (*image.Gray, error) {
	grey := imaging.Grayscale(img)
	w, h := grey.Rect.Dx(), grey.Rect.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	if w != g.width || h != g.height {
		g.reset(w, h)
	}

	// Learn quickly at first, and settle at 1/history
	g.nFrames++
	alpha := 1 / float32(min(g.nFrames, g.history))

	for y := 0; y < h; y++ {
		src := grey.Pix[y*grey.Stride : y*grey.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			v := float32(src[x*4])
			if g.nFrames == 1 {
				g.mean[i] = v
				continue
			}
			d := v - g.mean[i]
			d2 := d * d
			if d2 > g.varThreshold*g.variance[i] {
				mask.Pix[y*mask.Stride+x] = 255
			}
			g.mean[i] += alpha * d
			g.variance[i] = min(max(g.variance[i]+alpha*(d2-g.variance[i]), varianceMin), varianceMax)
		}
	}
	return mask, nil
}

// Releases the background model. A later Apply starts a fresh model.
func (g *RunningGaussian) Close() {
	g.mean = nil
	g.variance = nil
	g.width = 0
	g.height = 0
}

func (g *RunningGaussian) reset(w, h int) {
	g.width = w
	g.height = h
	g.nFrames = 0
	g.mean = make([]float32, w*h)
	g.variance = make([]float32, w*h)
	for i := range g.variance {
		g.variance[i] = varianceInit
	}
}
