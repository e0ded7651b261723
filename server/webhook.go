package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/gen"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/metrics"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
)

const (
	webhookQueueSize = 100
	noObjectsPT      = "Nenhum objeto detectado"
	noObjectsKZ      = "Нысан анықталмады"
)

// Summary of a detection batch, for the webhook
type WebhookSummary struct {
	DescriptionPT string   `json:"description_pt"`
	DescriptionKZ string   `json:"description_kz"`
	Objects       []string `json:"objects"`
	Confidence    float64  `json:"confidence"` // Mean over all detections, rounded to 2 decimal places
}

// MakeWebhookSummary lists the distinct class names of a batch, in alphabetical order
func MakeWebhookSummary(batch *reporter.Batch) WebhookSummary {
	names := []string{}
	total := 0.0
	for _, d := range batch.Detections {
		if d.Class != "" {
			names = append(names, d.Class)
		}
		total += d.Confidence
	}
	names = gen.Uniq(names)
	sort.Strings(names)
	s := WebhookSummary{
		Objects: names,
	}
	if len(batch.Detections) != 0 {
		s.Confidence = reporter.Round2(total / float64(len(batch.Detections)))
	}
	if len(names) != 0 {
		s.DescriptionPT = "Detectado: " + strings.Join(names, ", ")
		s.DescriptionKZ = "Анықталды: " + strings.Join(names, ", ")
	} else {
		s.DescriptionPT = noObjectsPT
		s.DescriptionKZ = noObjectsKZ
	}
	return s
}

// webhookSender forwards batch summaries on a background thread, so that
// a slow webhook never delays the response to the detector.
type webhookSender struct {
	log     logs.Log
	url     string
	client  *http.Client
	metrics *metrics.Metrics
	queue   chan WebhookSummary
	stopped sync.WaitGroup

	lock   sync.Mutex // Guards closed, and sends on queue
	closed bool
}

// If url is empty, then summaries are discarded
func newWebhookSender(log logs.Log, url string, timeout time.Duration, m *metrics.Metrics) *webhookSender {
	w := &webhookSender{
		log:     log,
		url:     url,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
		queue:   make(chan WebhookSummary, webhookQueueSize),
	}
	w.stopped.Add(1)
	go w.sendThread()
	return w
}

// Never blocks. Summaries sent after Close are discarded.
func (w *webhookSender) Send(summary WebhookSummary) {
	if w.url == "" {
		return
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		w.log.Warnf("Webhook sender is closed. Dropping summary")
		return
	}
	select {
	case w.queue <- summary:
	default:
		w.log.Warnf("Webhook queue is full. Dropping summary")
		w.metrics.WebhookErrors.Add(1)
	}
}

// Waits for queued summaries to be sent
func (w *webhookSender) Close() {
	w.lock.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.lock.Unlock()
	w.stopped.Wait()
}

func (w *webhookSender) sendThread() {
	defer w.stopped.Done()
	for summary := range w.queue {
		if err := w.post(&summary); err != nil {
			w.log.Warnf("Failed to send summary to webhook: %v", err)
			w.metrics.WebhookErrors.Add(1)
		} else {
			w.metrics.WebhookSent.Add(1)
		}
	}
}

func (w *webhookSender) post(summary *WebhookSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err == nil && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated) {
		resp.Body.Close()
		return nil
	}
	return errors.New(www.FailedRequestSummary(resp, err))
}
