// Package render draws tracked objects onto camera frames
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/tracker"
	"github.com/fogleman/gg"
)

var (
	ColorVerified   = color.RGBA{0, 255, 0, 255}
	ColorUnverified = color.RGBA{0, 0, 255, 255}
	ColorLabelText  = color.RGBA{255, 255, 255, 255}
)

const lineWidth = 2

// Label returns the text drawn above a track, eg "person 0.73 H5 A0"
func Label(t *tracker.Track, classes []string) string {
	return fmt.Sprintf("%v %.2f H%v A%v", nn.ClassName(classes, t.Class), t.Score, t.Hits, t.Age)
}

// DrawTracks returns a copy of img with a box and label for every track.
// Verified tracks are green, and the rest are blue.
func DrawTracks(img image.Image, tracks []tracker.Track, classes []string) image.Image {
	dc := gg.NewContextForImage(img)
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	dc.SetLineWidth(lineWidth)
	for i := range tracks {
		t := &tracks[i]
		r := t.Box.ToPixels(width, height)
		c := ColorUnverified
		if t.Verified() {
			c = ColorVerified
		}
		dc.SetColor(c)
		dc.DrawRectangle(float64(r.X), float64(r.Y), float64(r.Width), float64(r.Height))
		dc.Stroke()

		label := Label(t, classes)
		tw, th := dc.MeasureString(label)
		ty := float64(r.Y) - 2
		if ty-th < 0 {
			ty = float64(r.Y2()) + th + 2
		}
		dc.DrawRectangle(float64(r.X), ty-th-2, tw+4, th+4)
		dc.Fill()
		dc.SetColor(ColorLabelText)
		dc.DrawString(label, float64(r.X)+2, ty)
	}
	return dc.Image()
}

// EncodeJPEG encodes img at the given quality (1..100)
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.Buffer{}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
