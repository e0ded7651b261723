package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

// Create a JPEG full of noise, so that it doesn't compress below MinJPEGBytes
func noiseJPEG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	buf := bytes.Buffer{}
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.Greater(t, buf.Len(), MinJPEGBytes)
	return buf.Bytes()
}

func multipartChunk(jpg []byte) []byte {
	b := bytes.Buffer{}
	fmt.Fprintf(&b, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %v\r\n\r\n", len(jpg))
	b.Write(jpg)
	b.WriteString("\r\n")
	return b.Bytes()
}

func TestFrameSplitter(t *testing.T) {
	a := noiseJPEG(t, 160, 120, 1)
	b := noiseJPEG(t, 160, 120, 2)
	stream := append(multipartChunk(a), multipartChunk(b)...)

	// Feed in small uneven chunks
	s := FrameSplitter{}
	frames := [][]byte{}
	for i := 0; i < len(stream); i += 777 {
		frames = append(frames, s.Push(stream[i:min(i+777, len(stream))])...)
	}
	require.Len(t, frames, 2)
	require.Equal(t, a, frames[0])
	require.Equal(t, b, frames[1])
}

func TestFrameSplitterDropsTinyFrames(t *testing.T) {
	s := FrameSplitter{}
	tiny := []byte{0xff, 0xd8, 1, 2, 3, 0xff, 0xd9}
	require.Empty(t, s.Push(tiny))
	require.Equal(t, int64(1), s.Dropped)

	// Garbage without markers is discarded
	require.Empty(t, s.Push(bytes.Repeat([]byte{7}, 1000)))
	require.Empty(t, s.buf)
}

func TestFrameSplitterMarkerAcrossChunks(t *testing.T) {
	a := noiseJPEG(t, 160, 120, 3)
	s := FrameSplitter{}
	// Split inside the SOI marker
	require.Empty(t, s.Push([]byte{'x', 0xff}))
	frames := s.Push(a[1:])
	require.Len(t, frames, 1)
	require.Equal(t, a, frames[0])
}

func TestFrameSplitterBufferCap(t *testing.T) {
	s := FrameSplitter{}
	// A start marker followed by a huge amount of data with no end marker
	s.Push([]byte{0xff, 0xd8})
	s.Push(bytes.Repeat([]byte{1}, MaxBufferBytes+100))
	require.LessOrEqual(t, len(s.buf), MaxBufferBytes)
}

func TestCameraStream(t *testing.T) {
	jpgs := [][]byte{noiseJPEG(t, 160, 120, 10), noiseJPEG(t, 160, 120, 11), noiseJPEG(t, 160, 120, 12)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for _, j := range jpgs {
			w.Write(multipartChunk(j))
			w.(http.Flusher).Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	cam := NewCamera(logs.NewTestingLog(t), 7, "front", server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lock sync.Mutex
	frames := []*Frame{}
	done := make(chan bool)
	go func() {
		cam.Run(ctx, func(f *Frame) {
			lock.Lock()
			frames = append(frames, f)
			if len(frames) == len(jpgs) {
				cancel()
			}
			lock.Unlock()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for frames")
	}

	require.Len(t, frames, 3)
	for i, f := range frames {
		require.Equal(t, int64(7), f.CameraID)
		require.Equal(t, int64(i+1), f.Seq)
		require.Equal(t, 160, f.Image.Bounds().Dx())
		require.Equal(t, jpgs[i], f.JPEG)
	}
	stats := cam.Stats()
	require.Equal(t, int64(3), stats.FramesDecoded)
	require.Equal(t, int64(1), stats.Connects)
}

func TestCameraReconnectsWhenSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	cam := NewCamera(logs.NewTestingLog(t), 1, "silent", server.URL)
	cam.MaxSilence = 100 * time.Millisecond
	cam.ReconnectDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		cam.Run(ctx, func(f *Frame) {})
		close(done)
	}()

	require.Eventually(t, func() bool { return cam.Stats().Connects >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
