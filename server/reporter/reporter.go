// Package reporter batches confirmed detections and posts them to an upstream HTTP endpoint
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/tracker"
)

// Detection is a confirmed track, in the form that we send upstream
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"` // Rounded to 2 decimal places
	Hits       int     `json:"hits"`
	Age        int     `json:"age"`
	BBox       [4]int  `json:"bbox"` // x1,y1,x2,y2 in pixels
	Verified   bool    `json:"verified"`
}

// Batch is the body of a POST to the upstream server
type Batch struct {
	Timestamp  string      `json:"timestamp"`
	Detections []Detection `json:"detections"`
}

// MakeDetection converts a track into a Detection, for an image of the given size
func MakeDetection(t *tracker.Track, classes []string, width, height int) Detection {
	return Detection{
		Class:      nn.ClassName(classes, t.Class),
		Confidence: Round2(float64(t.Score)),
		Hits:       t.Hits,
		Age:        t.Age,
		BBox:       t.Box.ToPixels(width, height).XYXY(),
		Verified:   t.Verified(),
	}
}

// Round2 rounds to 2 decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type Options struct {
	URL          string // Empty disables sending, and queued detections are discarded
	SendInterval time.Duration
	Timeout      time.Duration
	QueueSize    int
}

type Stats struct {
	Queued  int64 `json:"queued"`
	Sent    int64 `json:"sent"`    // Detections delivered
	Batches int64 `json:"batches"` // Successful POSTs
	Failed  int64 `json:"failed"`  // Failed POSTs
	Dropped int64 `json:"dropped"` // Detections discarded because the queue was full
}

type Reporter struct {
	log      logs.Log
	options  Options
	client   *http.Client
	incoming chan []Detection

	queued  atomic.Int64
	sent    atomic.Int64
	batches atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64

	cancel  context.CancelFunc
	stopped sync.WaitGroup
}

func NewReporter(log logs.Log, options Options) *Reporter {
	if options.SendInterval <= 0 {
		options.SendInterval = 2 * time.Second
	}
	if options.Timeout <= 0 {
		options.Timeout = 2 * time.Second
	}
	if options.QueueSize <= 0 {
		options.QueueSize = 100
	}
	return &Reporter{
		log:      log,
		options:  options,
		client:   &http.Client{Timeout: options.Timeout},
		incoming: make(chan []Detection, 100),
	}
}

// Start the transmit thread. Call Close to stop it.
func (r *Reporter) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.stopped.Add(1)
	go r.transmitLoop(ctx)
}

// Close stops the transmit thread. Anything still queued is lost.
func (r *Reporter) Close() {
	if r.cancel != nil {
		r.cancel()
		r.stopped.Wait()
	}
}

// Add queues detections for the next batch. Never blocks.
func (r *Reporter) Add(detections []Detection) {
	if len(detections) == 0 {
		return
	}
	select {
	case r.incoming <- detections:
	default:
		r.dropped.Add(int64(len(detections)))
	}
}

func (r *Reporter) Stats() Stats {
	return Stats{
		Queued:  r.queued.Load(),
		Sent:    r.sent.Load(),
		Batches: r.batches.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
	}
}

func (r *Reporter) transmitLoop(ctx context.Context) {
	defer r.stopped.Done()
	ticker := time.NewTicker(r.options.SendInterval)
	defer ticker.Stop()
	queue := []Detection{}
	lastErrorLog := time.Time{}
	for {
		select {
		case dets := <-r.incoming:
			queue = append(queue, dets...)
			if len(queue) > r.options.QueueSize {
				// Drop old detections
				drop := len(queue) - r.options.QueueSize
				r.dropped.Add(int64(drop))
				queue = append(queue[:0], queue[drop:]...)
			}
		case <-ticker.C:
			if len(queue) == 0 {
				continue
			}
			if r.options.URL == "" {
				queue = queue[:0]
				break
			}
			if err := r.send(ctx, queue); err != nil {
				r.failed.Add(1)
				// Keep the batch for the next tick, but don't spam the log
				if time.Since(lastErrorLog) > 15*time.Second {
					r.log.Warnf("Failed to send %v detections: %v", len(queue), err)
					lastErrorLog = time.Now()
				}
			} else {
				r.sent.Add(int64(len(queue)))
				r.batches.Add(1)
				queue = queue[:0]
			}
		case <-ctx.Done():
			return
		}
		r.queued.Store(int64(len(queue)))
	}
}

func (r *Reporter) send(ctx context.Context, queue []Detection) error {
	batch := Batch{
		Timestamp:  time.Now().Format(time.RFC3339Nano),
		Detections: queue,
	}
	body, err := json.Marshal(&batch)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", r.options.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		resp.Body.Close()
		return nil
	}
	return fmt.Errorf("%v", www.FailedRequestSummary(resp, err))
}
