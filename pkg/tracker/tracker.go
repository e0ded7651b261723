// Package tracker turns noisy per-frame object detections into persistent tracks,
// and decides which tracks are trustworthy enough to report.
package tracker

import (
	"github.com/chewxy/math32"
)

// Tracker associates per-frame candidates with persistent tracks.
// A Tracker is not safe for concurrent use. Create one per frame stream.
type Tracker struct {
	config Config
	tracks []*track
	nextID int64
}

// Create a new tracker. The config is validated.
func NewTracker(config Config) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		config: config,
		nextID: 1,
	}, nil
}

func (t *Tracker) Config() Config {
	return t.config
}

// Update advances the tracker by one frame, and returns the confirmed tracks.
// An empty candidate list is valid, and still ages and evicts tracks.
// Candidates with non-finite values, or boxes that are empty after clamping to the
// unit square, are ignored.
func (t *Tracker) Update(candidates []Candidate) []Track {
	for _, tr := range t.tracks {
		tr.Age++
		tr.VerifiedTTL = max(0, tr.VerifiedTTL-1)
	}

	valid := sanitizeCandidates(candidates)

	switch t.config.Association {
	case AssociationHungarian:
		t.associateHungarian(valid)
	default:
		t.associateGreedy(valid)
	}

	// Evict stale tracks, preserving order
	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.Age <= t.config.MaxAge {
			live = append(live, tr)
		}
	}
	for i := len(live); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = live

	confirmed := []Track{}
	for _, tr := range t.tracks {
		tr.Confirmed = t.isConfirmed(tr)
		if tr.Confirmed {
			confirmed = append(confirmed, tr.snapshot())
		}
	}
	return confirmed
}

// Tracks returns all live tracks, confirmed or not, in creation order
func (t *Tracker) Tracks() []Track {
	all := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		all = append(all, tr.snapshot())
	}
	return all
}

// NumTracks returns the number of live tracks, confirmed or not
func (t *Tracker) NumTracks() int {
	return len(t.tracks)
}

// Reset discards all tracks. Track IDs keep increasing.
func (t *Tracker) Reset() {
	t.tracks = nil
}

func (t *Tracker) isConfirmed(tr *track) bool {
	if tr.Box.Area() < t.config.MinBoxArea {
		return false
	}
	return tr.Hits >= t.config.MinHits || tr.Score >= t.config.MinAvgScore || tr.VerifiedTTL > 0
}

func (t *Tracker) spawn(c *Candidate) *track {
	tr := newTrack(t.nextID, c, t.config.VerifiedWindow, t.config.HistorySize)
	t.nextID++
	t.tracks = append(t.tracks, tr)
	return tr
}

// Returns the candidates that are safe to feed into the tracker, with their boxes clamped
func sanitizeCandidates(candidates []Candidate) []Candidate {
	valid := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Box.IsFinite() || math32.IsNaN(c.Score) || math32.IsInf(c.Score, 0) {
			continue
		}
		c.Box = c.Box.Clamped()
		if c.Box.IsDegenerate() {
			continue
		}
		valid = append(valid, c)
	}
	return valid
}
