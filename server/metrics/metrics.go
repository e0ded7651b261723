// Package metrics exposes the counters of the detection pipeline to Prometheus
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/monitor"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Detection API counters
	BatchesReceived    atomic.Uint64
	DetectionsReceived atomic.Uint64
	WebhookSent        atomic.Uint64
	WebhookErrors      atomic.Uint64
	WebSocketClients   atomic.Int64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors.
// mon and rep may be nil.
func New(mon *monitor.Monitor, rep *reporter.Reporter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerAPIMetrics()
	if mon != nil {
		m.registerMonitorMetrics(mon)
	}
	if rep != nil {
		m.registerReporterMetrics(rep)
	}
	return m
}

func (m *Metrics) gauge(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, f))
}

func (m *Metrics) counter(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, f))
}

func (m *Metrics) registerAPIMetrics() {
	m.counter("visiond_api_batches_received_total", "Detection batches received on the API",
		func() float64 { return float64(m.BatchesReceived.Load()) })
	m.counter("visiond_api_detections_received_total", "Detections received on the API",
		func() float64 { return float64(m.DetectionsReceived.Load()) })
	m.counter("visiond_webhook_sent_total", "Summaries delivered to the webhook",
		func() float64 { return float64(m.WebhookSent.Load()) })
	m.counter("visiond_webhook_errors_total", "Failed webhook deliveries",
		func() float64 { return float64(m.WebhookErrors.Load()) })
	m.gauge("visiond_websocket_clients", "Connected websocket clients",
		func() float64 { return float64(m.WebSocketClients.Load()) })
}

func (m *Metrics) registerMonitorMetrics(mon *monitor.Monitor) {
	m.counter("visiond_frames_analyzed_total", "Frames run through the detector and tracker",
		func() float64 { return float64(mon.Counters().FramesAnalyzed) })
	m.counter("visiond_frames_dropped_total", "Frames dropped because analysis fell behind",
		func() float64 { return float64(mon.Counters().FramesDropped) })
	m.counter("visiond_verified_by_score_total", "Detections verified by their confidence alone",
		func() float64 { return float64(mon.Counters().VerifiedByScore) })
	m.counter("visiond_verified_by_motion_total", "Detections verified by motion under the box",
		func() float64 { return float64(mon.Counters().VerifiedByMotion) })
	m.registry.MustRegister(&cameraCollector{mon: mon})
}

func (m *Metrics) registerReporterMetrics(rep *reporter.Reporter) {
	m.gauge("visiond_reporter_queued", "Detections waiting to be sent upstream",
		func() float64 { return float64(rep.Stats().Queued) })
	m.counter("visiond_reporter_sent_total", "Detections delivered upstream",
		func() float64 { return float64(rep.Stats().Sent) })
	m.counter("visiond_reporter_failed_total", "Failed upstream POSTs",
		func() float64 { return float64(rep.Stats().Failed) })
	m.counter("visiond_reporter_dropped_total", "Detections dropped from a full queue",
		func() float64 { return float64(rep.Stats().Dropped) })
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Per-camera track gauges, read from Monitor.Status() at scrape time
type cameraCollector struct {
	mon *monitor.Monitor
}

var (
	descActiveTracks = prometheus.NewDesc("visiond_camera_active_tracks", "Live tracks, confirmed or not", []string{"camera"}, nil)
	descConfirmed    = prometheus.NewDesc("visiond_camera_confirmed_tracks", "Confirmed tracks", []string{"camera"}, nil)
	descStreamFPS    = prometheus.NewDesc("visiond_camera_fps", "Frames per second received from the camera", []string{"camera"}, nil)
	descDetectTime   = prometheus.NewDesc("visiond_camera_detect_milliseconds", "Average NN inference time per frame", []string{"camera"}, nil)
)

func (c *cameraCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descActiveTracks
	ch <- descConfirmed
	ch <- descStreamFPS
	ch <- descDetectTime
}

func (c *cameraCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.mon.Status() {
		id := strconv.FormatInt(st.CameraID, 10)
		ch <- prometheus.MustNewConstMetric(descActiveTracks, prometheus.GaugeValue, float64(st.ActiveTracks), id)
		ch <- prometheus.MustNewConstMetric(descConfirmed, prometheus.GaugeValue, float64(st.ConfirmedTracks), id)
		ch <- prometheus.MustNewConstMetric(descDetectTime, prometheus.GaugeValue, st.DetectTimeMS, id)
		if st.Stream != nil {
			ch <- prometheus.MustNewConstMetric(descStreamFPS, prometheus.GaugeValue, st.Stream.FPS, id)
		}
	}
}
