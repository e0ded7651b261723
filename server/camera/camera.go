// Package camera reads frames from network cameras that publish an MJPEG stream over HTTP
// (eg an ESP32-CAM at http://host:81/stream).
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/disintegration/imaging"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/log"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultMaxSilence     = 5 * time.Second
	readChunkSize         = 1024
)

var ErrStreamStale = errors.New("No frames received for too long")

// Frame is a single decoded image from the camera
type Frame struct {
	CameraID int64
	Seq      int64 // Increments for every frame delivered by this camera
	PTS      time.Time
	JPEG     []byte
	Image    image.Image
}

// Camera is a single MJPEG source
type Camera struct {
	ID             int64
	Name           string
	URL            string
	Log            logs.Log
	ReconnectDelay time.Duration // Wait this long before reconnecting after an error
	MaxSilence     time.Duration // Reconnect if no frame arrives in this time

	client *http.Client

	framesDecoded atomic.Int64
	framesBad     atomic.Int64
	connects      atomic.Int64

	clockLock sync.Mutex
	clock     frameClock
	lastFrame time.Time
}

// Camera status, for display and metrics
type Stats struct {
	FramesDecoded int64     `json:"framesDecoded"`
	FramesBad     int64     `json:"framesBad"` // Truncated or undecodable
	Connects      int64     `json:"connects"`
	FPS           float64   `json:"fps"`
	LastFrame     time.Time `json:"lastFrame"`
}

func NewCamera(logger logs.Log, id int64, name, url string) *Camera {
	return &Camera{
		ID:             id,
		Name:           name,
		URL:            url,
		Log:            log.NewPrefixLogger(logger, fmt.Sprintf("Camera %v:", name)),
		ReconnectDelay: DefaultReconnectDelay,
		MaxSilence:     DefaultMaxSilence,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefaultMaxSilence,
			},
		},
		clock: newFrameClock(),
	}
}

// Run connects to the camera and delivers frames to onFrame until ctx is cancelled.
// Connection errors are logged, and followed by a reconnect after ReconnectDelay.
// onFrame is called on the Run goroutine.
func (c *Camera) Run(ctx context.Context, onFrame func(frame *Frame)) {
	for {
		err := c.readStream(ctx, onFrame)
		if ctx.Err() != nil {
			c.Log.Infof("Stopped")
			return
		}
		c.Log.Warnf("Stream error, reconnecting in %v: %v", c.ReconnectDelay, err)
		select {
		case <-ctx.Done():
			c.Log.Infof("Stopped")
			return
		case <-time.After(c.ReconnectDelay):
		}
	}
}

func (c *Camera) Stats() Stats {
	c.clockLock.Lock()
	defer c.clockLock.Unlock()
	return Stats{
		FramesDecoded: c.framesDecoded.Load(),
		FramesBad:     c.framesBad.Load(),
		Connects:      c.connects.Load(),
		FPS:           c.clock.fps(),
		LastFrame:     c.lastFrame,
	}
}

// readStream runs a single connection, until it fails or goes quiet
func (c *Camera) readStream(ctx context.Context, onFrame func(frame *Frame)) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stale atomic.Bool
	watchdog := time.AfterFunc(c.MaxSilence, func() {
		stale.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(connCtx, "GET", c.URL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if stale.Load() {
			return ErrStreamStale
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(www.FailedRequestSummary(resp, nil))
	}
	c.connects.Add(1)
	c.Log.Infof("Connected to %v", c.URL)

	splitter := FrameSplitter{}
	chunk := make([]byte, readChunkSize)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			for _, jpg := range splitter.Push(chunk[:n]) {
				img, decodeErr := imaging.Decode(bytes.NewReader(jpg))
				if decodeErr != nil {
					c.framesBad.Add(1)
					continue
				}
				watchdog.Reset(c.MaxSilence)
				now := time.Now()
				c.clockLock.Lock()
				c.clock.tick(now)
				c.lastFrame = now
				c.clockLock.Unlock()
				onFrame(&Frame{
					CameraID: c.ID,
					Seq:      c.framesDecoded.Add(1),
					PTS:      now,
					JPEG:     jpg,
					Image:    img,
				})
			}
			if splitter.Dropped != 0 {
				c.framesBad.Add(splitter.Dropped)
				splitter.Dropped = 0
			}
		}
		if err != nil {
			if stale.Load() {
				return ErrStreamStale
			}
			if errors.Is(err, io.EOF) {
				return errors.New("Stream closed by camera")
			}
			return err
		}
	}
}
