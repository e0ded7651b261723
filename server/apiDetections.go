package server

import (
	"math"
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/gen"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
	"github.com/julienschmidt/httprouter"
)

const defaultDetectionsLimit = 10

type pingJSON struct {
	Status  string `json:"status"`
	Cameras int    `json:"cameras"`
}

type postDetectionsResponseJSON struct {
	Status   string `json:"status"`
	Received int    `json:"received"`
}

type statusResponseJSON struct {
	Status string `json:"status"`
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ping := &pingJSON{
		Status: "ok",
	}
	if s.Monitor != nil {
		ping.Cameras = len(s.Monitor.Status())
	}
	www.SendJSON(w, ping)
}

func validateBatch(batch *reporter.Batch) {
	if batch.Timestamp == "" {
		www.PanicBadRequestf("timestamp is required")
	}
	if batch.Detections == nil {
		www.PanicBadRequestf("detections is required")
	}
	for i, d := range batch.Detections {
		if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
			www.PanicBadRequestf("detections[%v]: confidence must be between 0 and 1", i)
		}
		if d.Hits < 0 || d.Age < 0 {
			www.PanicBadRequestf("detections[%v]: hits and age may not be negative", i)
		}
	}
}

func (s *Server) httpPostDetections(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	batch := reporter.Batch{}
	www.ReadJSON(w, r, &batch, maxBatchBytes)
	validateBatch(&batch)

	_, err := s.DetectionDB.AddBatch(&batch)
	www.Check(err)
	s.Metrics.BatchesReceived.Add(1)
	s.Metrics.DetectionsReceived.Add(uint64(len(batch.Detections)))

	if s.Config.Verbose {
		s.Log.Infof("Received %v detections at %v", len(batch.Detections), batch.Timestamp)
		for _, d := range batch.Detections {
			s.Log.Infof("  %v (%.2f) hits=%v", d.Class, d.Confidence, d.Hits)
		}
	}

	s.webhook.Send(MakeWebhookSummary(&batch))

	www.SendJSON(w, &postDetectionsResponseJSON{
		Status:   "ok",
		Received: len(batch.Detections),
	})
}

// Returns the most recent batches, oldest first
func (s *Server) httpGetDetections(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := defaultDetectionsLimit
	if r.URL.Query().Has("limit") {
		limit = www.QueryInt(r, "limit")
		if limit < 1 {
			www.PanicBadRequestf("limit must be a positive integer")
		}
	}
	limit = gen.Min(limit, s.Config.Server.MaxBatches)
	batches, err := s.DetectionDB.Recent(limit)
	www.Check(err)
	result := make([]reporter.Batch, 0, len(batches))
	for _, b := range batches {
		result = append(result, b.ToWire())
	}
	www.SendJSON(w, result)
}

func (s *Server) httpClearDetections(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.Check(s.DetectionDB.Clear())
	www.SendJSON(w, &statusResponseJSON{Status: "cleared"})
}

func (s *Server) httpStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	stats, err := s.DetectionDB.Stats()
	www.Check(err)
	www.SendJSON(w, stats)
}
