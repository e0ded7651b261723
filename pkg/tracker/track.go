package tracker

import (
	"math/bits"

	"github.com/bmharper/ringbuffer"
	"github.com/chewxy/math32"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
)

// Weights of the exponential score smoother
const (
	scoreWeightOld = 0.6
	scoreWeightNew = 0.4
)

// Candidate is a single detection in the current frame, offered to the tracker
type Candidate struct {
	Class       int     `json:"class"`
	Box         nn.Box  `json:"box"`
	Score       float32 `json:"score"`
	VerifiedNow bool    `json:"verifiedNow"` // Decided by the caller (eg high score, or motion under the box)
}

// Track is a snapshot of an object that persists across frames
type Track struct {
	ID           int64   `json:"id"`
	Class        int     `json:"class"`
	Box          nn.Box  `json:"box"`          // Smoothed box
	Score        float32 `json:"score"`        // Smoothed confidence
	Hits         int     `json:"hits"`         // Number of frames in which this track was matched (including creation)
	Age          int     `json:"age"`          // Updates since the last match
	VerifiedTTL  int     `json:"verifiedTTL"`  // Remaining updates during which the track counts as verified
	Confirmed    bool    `json:"confirmed"`    // Passed the confirmation rule on the most recent update
	Displacement float32 `json:"displacement"` // Distance between the oldest and newest remembered box centers (normalized units)
}

func (t *Track) Verified() bool {
	return t.VerifiedTTL > 0
}

// Internal state of a track
type track struct {
	Track
	history ringbuffer.RingP[nn.Box]
}

func newTrack(id int64, c *Candidate, verifiedWindow, historySize int) *track {
	t := &track{
		Track: Track{
			ID:    id,
			Class: c.Class,
			Box:   c.Box,
			Score: c.Score,
			Hits:  1,
			Age:   0,
		},
		history: ringbuffer.NewRingP[nn.Box](nextPowerOf2(historySize)),
	}
	if c.VerifiedNow {
		t.VerifiedTTL = verifiedWindow
	}
	t.history.Add(t.Box)
	return t
}

// absorb merges a matching candidate into the track
func (t *track) absorb(c *Candidate, verifiedWindow int) {
	t.Age = 0
	t.Hits++
	t.Score = t.Score*scoreWeightOld + c.Score*scoreWeightNew
	t.Box = t.Box.Average(c.Box)
	if c.VerifiedNow {
		t.VerifiedTTL = verifiedWindow
	}
	t.history.Add(t.Box)
}

func (t *track) snapshot() Track {
	s := t.Track
	if n := t.history.Len(); n > 1 {
		x1, y1 := t.history.Peek(0).Center()
		x2, y2 := t.history.Peek(n - 1).Center()
		s.Displacement = math32.Hypot(x2-x1, y2-y1)
	}
	return s
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
