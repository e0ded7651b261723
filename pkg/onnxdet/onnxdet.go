// Package onnxdet runs YOLO object detection models through ONNX Runtime
package onnxdet

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	envLock        sync.Mutex
	envInitialized bool
)

// InitRuntime loads the ONNX Runtime shared library. It is safe to call more than once.
// If sharedLibPath is empty, the library's default search path is used.
func InitRuntime(sharedLibPath string) error {
	envLock.Lock()
	defer envLock.Unlock()
	if envInitialized {
		return nil
	}
	if sharedLibPath != "" {
		ort.SetSharedLibraryPath(sharedLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("Failed to initialize ONNX Runtime: %w", err)
	}
	envInitialized = true
	return nil
}

// DestroyRuntime unloads ONNX Runtime. Close all detectors first.
func DestroyRuntime() {
	envLock.Lock()
	defer envLock.Unlock()
	if envInitialized {
		ort.DestroyEnvironment()
		envInitialized = false
	}
}

// Detector is an nn.ObjectDetector backed by an ONNX Runtime session.
// Calls to DetectObjects are serialized, because the session owns a single pair of tensors.
type Detector struct {
	config  *nn.ModelConfig
	lock    sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	rows    int
	cols    int
}

// NewDetector loads an ONNX model. InitRuntime must have been called.
// threads is the number of intra-op threads (0 = let the runtime decide).
func NewDetector(modelPath string, config *nn.ModelConfig, threads int) (*Detector, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("Error creating session options: %w", err)
	}
	defer options.Destroy()
	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, err
		}
	}

	rows := config.Boxes
	cols := 5 + len(config.Classes)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(config.Height), int64(config.Width)))
	if err != nil {
		return nil, fmt.Errorf("Error creating input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(rows), int64(cols)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("Error creating output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("Error creating session for %v: %w", modelPath, err)
	}
	return &Detector{
		config:  config,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		rows:    rows,
		cols:    cols,
	}, nil
}

func (d *Detector) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.input.Destroy()
		d.output.Destroy()
		d.session = nil
	}
}

func (d *Detector) Config() *nn.ModelConfig {
	return d.config
}

func (d *Detector) DetectObjects(img image.Image, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session == nil {
		return nil, fmt.Errorf("Detector is closed")
	}

	resized := imaging.Resize(img, d.config.Width, d.config.Height, imaging.Linear)
	FillInput(d.input.GetData(), resized, d.config.InputNorm)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("Model inference: %w", err)
	}

	out := d.output.GetData()
	if d.config.PixelCoords {
		NormalizeRows(out, d.rows, d.cols, d.config.Width, d.config.Height)
	}
	return nn.DecodeAndSuppress(out, d.rows, d.cols, params)
}

// FillInput writes an image into a planar RGB (CHW) float tensor
func FillInput(dst []float32, img *image.NRGBA, norm string) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	scale, offset := float32(1.0/255.0), float32(0)
	if norm == nn.InputNormSymmetric {
		scale, offset = 1.0/127.5, -1
	}
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			dst[i] = float32(src[x*4])*scale + offset
			dst[plane+i] = float32(src[x*4+1])*scale + offset
			dst[2*plane+i] = float32(src[x*4+2])*scale + offset
		}
	}
}

// NormalizeRows converts the box columns of a YOLO output from input pixels to [0,1]
func NormalizeRows(out []float32, rows, cols, width, height int) {
	fw, fh := float32(width), float32(height)
	for r := 0; r < rows; r++ {
		row := out[r*cols:]
		row[0] /= fw
		row[1] /= fh
		row[2] /= fw
		row[3] /= fh
	}
}
