package motion

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/stretchr/testify/require"
)

func solidFrame(w, h int, grey uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{grey, grey, grey, 255}}, image.Point{}, draw.Src)
	return img
}

func TestRunningGaussian(t *testing.T) {
	sub := NewRunningGaussian(200, 25)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		mask, err := sub.Apply(solidFrame(64, 48, 50))
		require.NoError(t, err)
		require.Equal(t, float32(0), Fraction(mask, nn.MakeRect(0, 0, 64, 48)))
	}

	// A bright square appears
	frame := solidFrame(64, 48, 50)
	draw.Draw(frame, image.Rect(10, 10, 30, 30), &image.Uniform{color.RGBA{200, 200, 200, 255}}, image.Point{}, draw.Src)
	mask, err := sub.Apply(frame)
	require.NoError(t, err)

	require.Equal(t, float32(1), Fraction(mask, nn.MakeRect(10, 10, 30, 30)))
	require.Equal(t, float32(0), Fraction(mask, nn.MakeRect(40, 10, 60, 40)))
	// Quarter of this rect overlaps the square
	require.InDelta(t, 0.25, Fraction(mask, nn.MakeRect(20, 20, 40, 40)), 1e-6)
}

func TestRunningGaussianResize(t *testing.T) {
	sub := NewRunningGaussian(200, 25)
	_, err := sub.Apply(solidFrame(32, 32, 10))
	require.NoError(t, err)
	mask, err := sub.Apply(solidFrame(16, 8, 250))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 16, 8), mask.Bounds())
	// A new size restarts the model, so the first frame is all background
	require.Equal(t, float32(0), Fraction(mask, nn.MakeRect(0, 0, 16, 8)))
}

func TestRunningGaussianApplyAfterClose(t *testing.T) {
	sub := NewRunningGaussian(200, 25)
	_, err := sub.Apply(solidFrame(32, 32, 10))
	require.NoError(t, err)
	sub.Close()
	// Same frame size as before the close
	mask, err := sub.Apply(solidFrame(32, 32, 250))
	require.NoError(t, err)
	require.Equal(t, float32(0), Fraction(mask, nn.MakeRect(0, 0, 32, 32)))
}

func TestFraction(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		mask.SetGray(x, 0, color.Gray{255})
	}
	require.InDelta(t, 0.1, Fraction(mask, nn.MakeRect(0, 0, 10, 10)), 1e-6)
	require.Equal(t, float32(0), Fraction(mask, nn.MakeRect(5, 5, 5, 9)))
	require.Equal(t, float32(0), Fraction(nil, nn.MakeRect(0, 0, 10, 10)))
	// Clipped to the mask
	require.InDelta(t, 0.5, Fraction(mask, nn.MakeRect(-10, 0, 10, 2)), 1e-6)
}

func TestVerifyPolicy(t *testing.T) {
	p := DefaultVerifyPolicy()

	ok, reason := p.Verify(0.40, 0)
	require.True(t, ok)
	require.Equal(t, ReasonScore, reason)

	ok, reason = p.Verify(0.12, 0.05)
	require.True(t, ok)
	require.Equal(t, ReasonMotion, reason)

	ok, reason = p.Verify(0.09, 0.9)
	require.False(t, ok)
	require.Equal(t, ReasonNone, reason)

	ok, _ = p.Verify(0.3, 0.04)
	require.False(t, ok)
}
