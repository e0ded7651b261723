//go:build gocv

package motion

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MOG2 is OpenCV's gaussian mixture background subtractor
type MOG2 struct {
	sub  gocv.BackgroundSubtractorMOG2
	mask gocv.Mat
}

func NewMOG2(history int, varThreshold float64) *MOG2 {
	return &MOG2{
		sub:  gocv.NewBackgroundSubtractorMOG2WithParams(history, varThreshold, false),
		mask: gocv.NewMat(),
	}
}

func (m *MOG2) Apply(img image.Image) (*image.Gray, error) {
	frame, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, err
	}
	defer frame.Close()
	if err := m.sub.Apply(frame, &m.mask); err != nil {
		return nil, err
	}
	out, err := m.mask.ToImage()
	if err != nil {
		return nil, err
	}
	gray, ok := out.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("MOG2 mask is %T, expected *image.Gray", out)
	}
	return gray, nil
}

func (m *MOG2) Close() {
	m.sub.Close()
	m.mask.Close()
}
