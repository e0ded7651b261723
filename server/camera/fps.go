package camera

import (
	"math"
	"slices"
	"time"

	"github.com/bmharper/ringbuffer"
)

// Given a set of consecutive frame intervals, estimate the average frames per second.
// The value is a float64 because MJPEG cameras are often throttled below 1 FPS.
// Returns 0 if there are no intervals.
func EstimateFPS(frameIntervals []time.Duration) float64 {
	if len(frameIntervals) == 0 {
		return 0
	}
	sorted := slices.Clone(frameIntervals)
	slices.Sort(sorted)
	mid := sorted[len(sorted)/2]
	if mid <= 0 {
		return 0
	}
	fps := float64(time.Second) / float64(mid)
	if fps >= 0.9 {
		return math.Round(fps)
	}
	// Below 1 FPS, round to a whole number of seconds per frame
	return 1 / math.Round(1/fps)
}

// frameClock remembers the most recent frame intervals
type frameClock struct {
	last      time.Time
	intervals ringbuffer.RingP[time.Duration]
}

func newFrameClock() frameClock {
	return frameClock{
		intervals: ringbuffer.NewRingP[time.Duration](16),
	}
}

func (f *frameClock) tick(now time.Time) {
	if !f.last.IsZero() {
		f.intervals.Add(now.Sub(f.last))
	}
	f.last = now
}

func (f *frameClock) fps() float64 {
	iv := make([]time.Duration, 0, f.intervals.Len())
	for i := 0; i < f.intervals.Len(); i++ {
		iv = append(iv, f.intervals.Peek(i))
	}
	return EstimateFPS(iv)
}
