package server

import (
	"net/http"
	"strconv"

	"github.com/cyclopcam/www"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/render"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/tracker"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/monitor"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/streamer"
	"github.com/julienschmidt/httprouter"
)

const snapshotJPEGQuality = 85

type statusJSON struct {
	Cameras  []monitor.CameraStatus `json:"cameras"`
	Counters monitor.Counters       `json:"counters"`
	Reporter reporter.Stats         `json:"reporter"`
}

func (s *Server) requireMonitor() *monitor.Monitor {
	if s.Monitor == nil {
		www.PanicNotFound()
	}
	return s.Monitor
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	status := statusJSON{
		Cameras:  []monitor.CameraStatus{},
		Reporter: s.Reporter.Stats(),
	}
	if s.Monitor != nil {
		status.Cameras = s.Monitor.Status()
		status.Counters = s.Monitor.Counters()
	}
	www.CacheNever(w)
	www.SendJSON(w, &status)
}

// Returns the latest analyzed frame of the camera, with the confirmed tracks drawn on top
func (s *Server) httpCameraSnapshot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	mon := s.requireMonitor()
	cameraID := www.ParseID(params.ByName("cameraID"))
	img, state := mon.LatestFrame(cameraID)
	if img == nil {
		www.PanicNotFound()
	}
	tracks := []tracker.Track{}
	if state != nil {
		for _, obj := range state.Objects {
			tracks = append(tracks, obj.Track)
		}
	}
	annotated := render.DrawTracks(img, tracks, mon.Classes())
	jpg, err := render.EncodeJPEG(annotated, snapshotJPEGQuality)
	www.Check(err)
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(jpg)))
	w.Write(jpg)
}

// Streams analysis results over a websocket.
// If the 'camera' query parameter is absent, then results from all cameras are sent.
func (s *Server) httpDetectionsWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	mon := s.requireMonitor()
	allCameras := r.URL.Query().Get("camera") == ""
	cameraID := int64(0)
	if !allCameras {
		cameraID = www.ParseID(r.URL.Query().Get("camera"))
	}

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	var ch chan *monitor.AnalysisState
	if allCameras {
		ch = mon.AddWatcherAllCameras()
	} else {
		ch = mon.AddWatcher(cameraID)
	}
	s.Metrics.WebSocketClients.Add(1)

	// blocks until the client disconnects
	streamer.RunDetectionWebSocketStreamer(s.Log, conn, ch)

	s.Metrics.WebSocketClients.Add(-1)
	if allCameras {
		mon.RemoveWatcherAllCameras(ch)
	} else {
		mon.RemoveWatcher(cameraID, ch)
	}
}
