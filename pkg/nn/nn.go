package nn

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"
	"time"
)

// Package nn is a Neural Network interface layer.
// Concrete detectors live in their own packages (eg onnxdet).

const DefaultProbabilityThreshold = 0.10
const DefaultNmsIouThreshold = 0.45
const DefaultNmsMaxOutput = 50

// Results of an NN object detection run
type DetectionResult struct {
	CameraID    int64             `json:"cameraID"`
	ImageWidth  int               `json:"imageWidth"`
	ImageHeight int               `json:"imageHeight"`
	Objects     []ObjectDetection `json:"objects"`
	FramePTS    time.Time         `json:"framePTS"`
}

// NN object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
	NmsMaxOutput         int     // Maximum number of objects returned after NMS. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
		NmsMaxOutput:         DefaultNmsMaxOutput,
	}
}

func (p *DetectionParams) withDefaults() DetectionParams {
	c := *p
	if c.ProbabilityThreshold == 0 {
		c.ProbabilityThreshold = DefaultProbabilityThreshold
	}
	if c.NmsIouThreshold == 0 {
		c.NmsIouThreshold = DefaultNmsIouThreshold
	}
	if c.NmsMaxOutput == 0 {
		c.NmsMaxOutput = DefaultNmsMaxOutput
	}
	return c
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close releases the runtime resources behind the detector
	Close()

	// DetectObjects returns a list of objects detected in the image.
	// Boxes are normalized to the image dimensions.
	// You can create a default DetectionParams with NewDetectionParams()
	DetectObjects(img image.Image, params *DetectionParams) ([]ObjectDetection, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// Input pixel normalization
const (
	InputNormUnit      = "unit"      // [0,255] -> [0,1]
	InputNormSymmetric = "symmetric" // [0,255] -> [-1,1]
)

// ModelConfig is saved in a JSON file along with the weights of the NN model
type ModelConfig struct {
	Architecture string       `json:"architecture"`           // eg "yolov5"
	Width        int          `json:"width"`                  // eg 320
	Height       int          `json:"height"`                 // eg 320
	Classes      []string     `json:"classes"`                // eg ["person", "bicycle", "car", ...]
	Boxes        int          `json:"boxes"`                  // Number of rows in the output tensor (eg 6300 for yolov5 at 320x320)
	PixelCoords  bool         `json:"pixelCoords,omitempty"`  // Output boxes are in input pixels, instead of normalized
	InputName    string       `json:"inputName,omitempty"`    // Name of the input tensor (default "images")
	OutputName   string       `json:"outputName,omitempty"`   // Name of the output tensor (default "output0")
	InputNorm    string       `json:"inputNorm,omitempty"`    // InputNorm*
	Quantization Quantization `json:"quantization,omitempty"` // Output quantization, for uint8 models
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, fmt.Errorf("Error parsing model config %v: %w", filename, err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("Model config %v has invalid input size %v x %v", filename, config.Width, config.Height)
	}
	if config.Boxes <= 0 {
		return nil, fmt.Errorf("Model config %v must specify the number of output boxes", filename)
	}
	if len(config.Classes) == 0 {
		config.Classes = COCOClasses
	}
	if config.InputName == "" {
		config.InputName = "images"
	}
	if config.OutputName == "" {
		config.OutputName = "output0"
	}
	if config.InputNorm == "" {
		config.InputNorm = InputNormUnit
	}
	return config, nil
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, scanner.Err()
}
