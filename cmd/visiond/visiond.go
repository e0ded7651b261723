package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nnload"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/onnxdet"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/config"
)

func main() {
	parser := argparse.NewParser("visiond", "Object detection, tracking and reporting for spatial awareness devices")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file", Default: config.DefaultFilename})
	listen := parser.String("l", "listen", &argparse.Options{Help: "HTTP listen address, overriding the configuration file (eg :8080)", Default: ""})
	nnModelName := parser.String("", "nn", &argparse.Options{Help: "Neural network for object detection, overriding the configuration file", Default: ""})
	serverOnly := parser.Flag("", "server-only", &argparse.Options{Help: "Only run the detection API, without loading a model or monitoring cameras", Default: false})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Log every detection", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Infof("Config file %v not found. Using defaults", *configFile)
		cfg = config.DefaultConfig()
	} else if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *nnModelName != "" {
		cfg.Model.Name = *nnModelName
	}
	if *verbose {
		cfg.Verbose = true
	}

	var detector nn.ObjectDetector
	if !*serverOnly && len(cfg.Cameras) != 0 {
		detector, err = nnload.LoadModel(logger, cfg.Model.DownloadURL, cfg.Model.Dir, cfg.Model.Name, cfg.Model.OnnxLibrary, cfg.Model.Threads)
		if err != nil {
			logger.Errorf("Failed to load neural network: %v", err)
			os.Exit(1)
		}
		defer onnxdet.DestroyRuntime()
		defer detector.Close()
	}

	srv, err := server.NewServer(logger, cfg, detector)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(cfg.Server.Listen); err != nil {
		logger.Errorf("%v", err)
		srv.Shutdown()
		return
	}
	<-srv.ShutdownComplete
}
