package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/metrics"
	"github.com/stretchr/testify/require"
)

// A request handler that is still running when the server closes must not
// crash the process by sending to a closed webhook queue.
func TestWebhookSendAfterClose(t *testing.T) {
	var posts atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(200)
	}))
	defer upstream.Close()

	m := metrics.New(nil, nil)
	w := newWebhookSender(logs.NewTestingLog(t), upstream.URL, time.Second, m)
	w.Send(MakeWebhookSummary(makeBatch("2024-01-01T00:00:00Z", "cup")))
	w.Close()

	// Close waits for queued summaries
	require.EqualValues(t, 1, posts.Load())
	require.EqualValues(t, 1, m.WebhookSent.Load())

	require.NotPanics(t, func() {
		w.Send(MakeWebhookSummary(makeBatch("2024-01-01T00:00:01Z", "cup")))
	})
	require.NotPanics(t, w.Close)
	require.EqualValues(t, 1, posts.Load())
}

func TestWebhookDisabled(t *testing.T) {
	m := metrics.New(nil, nil)
	w := newWebhookSender(logs.NewTestingLog(t), "", time.Second, m)
	w.Send(MakeWebhookSummary(makeBatch("2024-01-01T00:00:00Z", "cup")))
	w.Close()
	require.EqualValues(t, 0, m.WebhookSent.Load())
	require.EqualValues(t, 0, m.WebhookErrors.Load())
}
