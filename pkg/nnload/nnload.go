package nnload

// Package nnload wraps up our 'nn' interface layer, and has concrete references to our
// neural network implementation (onnxdet), so that you can just call one function to
// load a model, and not need to know about the implementation details.

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/onnxdet"
)

// Files that make up a model, relative to the model directory
var modelExtensions = []string{".json", ".onnx"}

func downloadFile(srcUrl, targetFile string) error {
	tempFile := targetFile + ".tmp"
	if err := os.MkdirAll(filepath.Dir(targetFile), 0755); err != nil {
		return err
	}
	client := http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(srcUrl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP error %v", resp.Status)
	}
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, resp.Body)
	if err != nil {
		return err
	}
	file.Close()
	return os.Rename(tempFile, targetFile)
}

// If the model files are not yet downloaded, then download them now.
// Returns immediately if the files are already present, or if baseUrl is empty.
func DownloadModel(logs logs.Log, baseUrl, modelDir, modelName string) error {
	for _, ext := range modelExtensions {
		diskPath := filepath.Join(modelDir, modelName+ext)
		if _, err := os.Stat(diskPath); os.IsNotExist(err) {
			if baseUrl == "" {
				return fmt.Errorf("Model file %v not found, and no download URL is configured", diskPath)
			}
			networkUrl := baseUrl + "/" + modelName + ext
			logs.Infof("Downloading %v to %v", networkUrl, diskPath)
			if err := downloadFile(networkUrl, diskPath); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

// LoadModel loads a neural network from disk.
// modelName is the base filename, without the extensions. We expect modelName.json and modelName.onnx.
// ONNX Runtime is initialized from onnxLibPath on first use.
func LoadModel(logs logs.Log, baseUrl, modelDir, modelName, onnxLibPath string, threads int) (nn.ObjectDetector, error) {
	if err := DownloadModel(logs, baseUrl, modelDir, modelName); err != nil {
		return nil, fmt.Errorf("Download failed: %w", err)
	}
	fullPathBase := filepath.Join(modelDir, modelName)
	config, err := nn.LoadModelConfig(fullPathBase + ".json")
	if err != nil {
		return nil, err
	}
	if err := onnxdet.InitRuntime(onnxLibPath); err != nil {
		return nil, err
	}
	logs.Infof("Loading %v model %v (%v x %v, %v classes)", config.Architecture, modelName, config.Width, config.Height, len(config.Classes))
	return onnxdet.NewDetector(fullPathBase+".onnx", config, threads)
}
