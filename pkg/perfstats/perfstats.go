package perfstats

import "time"

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

// Time since start is added as a sample, and the current time is returned
func (a *TimeAccumulator) AddSince(start time.Time) time.Time {
	now := time.Now()
	a.AddSample(now.Sub(start))
	return now
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Average in milliseconds, for JSON and metrics
func (a *TimeAccumulator) AverageMilliseconds() float64 {
	return float64(a.Average().Microseconds()) / 1000
}
