package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/camera"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/config"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/detectiondb"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/metrics"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/monitor"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log         logs.Log
	Config      *config.Config
	DetectionDB *detectiondb.DetectionDB
	Monitor     *monitor.Monitor // nil when running without a detector
	Reporter    *reporter.Reporter
	Metrics     *metrics.Metrics

	webhook      *webhookSender
	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
	wsUpgrader   websocket.Upgrader
	closeOnce    sync.Once
	shutdownOnce sync.Once

	// ShutdownComplete is closed once Shutdown() has finished
	ShutdownComplete chan bool
}

// NewServer creates the detection pipeline and the HTTP API.
// If detector is nil, then no cameras are monitored, and we only serve the detection API.
// The detector is owned by the caller.
func NewServer(logger logs.Log, cfg *config.Config, detector nn.ObjectDetector) (*Server, error) {
	db, err := detectiondb.Open(logger, cfg.Server.DBPath, cfg.Server.MaxBatches)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:              logger,
		Config:           cfg,
		DetectionDB:      db,
		ShutdownComplete: make(chan bool),
	}

	s.Reporter = reporter.NewReporter(logger, reporter.Options{
		URL:          cfg.Reporter.URL,
		SendInterval: cfg.Reporter.SendInterval.D(),
		Timeout:      cfg.Reporter.Timeout.D(),
		QueueSize:    cfg.Reporter.QueueSize,
	})
	s.Reporter.Start(context.Background())

	if detector != nil {
		options := monitor.Options{
			Tracker: cfg.Tracker,
			Motion:  cfg.Motion,
			Verify:  cfg.Verify,
			Detection: nn.DetectionParams{
				ProbabilityThreshold: cfg.Model.Threshold,
				NmsIouThreshold:      cfg.Model.NmsIoU,
				NmsMaxOutput:         cfg.Model.NmsMax,
			},
			Verbose: cfg.Verbose,
		}
		s.Monitor, err = monitor.NewMonitor(logger, detector, options, s.Reporter)
		if err != nil {
			s.Close()
			return nil, err
		}
		for _, camCfg := range cfg.Cameras {
			cam := camera.NewCamera(logger, camCfg.ID, camCfg.Name, camCfg.URL)
			if err := s.Monitor.AddCamera(cam); err != nil {
				s.Close()
				return nil, err
			}
		}
	} else if len(cfg.Cameras) != 0 {
		logger.Warnf("No detector, so the %v configured cameras will not be monitored", len(cfg.Cameras))
	}

	s.Metrics = metrics.New(s.Monitor, s.Reporter)
	s.webhook = newWebhookSender(logger, cfg.Server.WebhookURL, cfg.Server.WebhookTimeout.D(), s.Metrics)

	if err := s.setupHttpRoutes(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP API, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// addr example: ":8080"
// Returns nil when the server is shut down.
func (s *Server) ListenHTTP(addr string) error {
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("HTTP server failed: %w", err)
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// This path gets hit when Shutdown() is called by something other than ourselves, and Shutdown() closes the signalIn channel.
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

// Shutdown stops the HTTP server and everything behind it
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
		s.signalIn = nil
	}
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.httpServer.Shutdown(ctx)
		cancel()
		if err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.Close()
	s.Log.Infof("Shutdown complete")
	close(s.ShutdownComplete)
}

// Close releases the monitor, reporter, webhook and database, without touching the HTTP listener
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.Monitor != nil {
			s.Monitor.Close()
		}
		if s.Reporter != nil {
			s.Reporter.Close()
		}
		if s.webhook != nil {
			s.webhook.Close()
		}
		s.DetectionDB.Close()
	})
}
