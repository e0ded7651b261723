package tracker

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, mode AssociationMode) *Tracker {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Association = mode
	tr, err := NewTracker(cfg)
	require.NoError(t, err)
	return tr
}

func forEachMode(t *testing.T, f func(t *testing.T, mode AssociationMode)) {
	for _, mode := range []AssociationMode{AssociationGreedy, AssociationHungarian} {
		t.Run(string(mode), func(t *testing.T) {
			f(t, mode)
		})
	}
}

func box(x1, y1, x2, y2 float32) nn.Box {
	return nn.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MatchIoU = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.MinHits = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Association = "nearest"
	require.Error(t, bad.Validate())

	_, err := NewTracker(bad)
	require.Error(t, err)
}

func TestNextPowerOf2(t *testing.T) {
	require.Equal(t, 1, nextPowerOf2(0))
	require.Equal(t, 1, nextPowerOf2(1))
	require.Equal(t, 2, nextPowerOf2(2))
	require.Equal(t, 16, nextPowerOf2(9))
	require.Equal(t, 16, nextPowerOf2(16))
}

// A single high confidence candidate is reported immediately
func TestInstantConfirmation(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		out := tr.Update([]Candidate{{Class: 0, Box: box(0.1, 0.1, 0.4, 0.5), Score: 0.45, VerifiedNow: true}})
		require.Len(t, out, 1)
		require.Equal(t, 1, out[0].Hits)
		require.Equal(t, 0, out[0].Age)
		require.True(t, out[0].Verified())
		require.True(t, out[0].Confirmed)
	})
}

// Low scoring, unverified, but persistent candidates are confirmed on exactly the 5th frame
func TestPersistenceConfirmation(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		for frame := 1; frame <= 6; frame++ {
			out := tr.Update([]Candidate{{Class: 2, Box: box(0.3, 0.3, 0.5, 0.5), Score: 0.1}})
			if frame < 5 {
				require.Empty(t, out, "frame %v", frame)
			} else {
				require.Len(t, out, 1, "frame %v", frame)
				require.Equal(t, frame, out[0].Hits)
				require.Less(t, out[0].Score, float32(0.15))
				require.False(t, out[0].Verified())
			}
		}
		require.Len(t, tr.Tracks(), 1)
	})
}

// A verified candidate keeps its track confirmed for the verification window, then the track
// survives unconfirmed until it is evicted.
func TestVerifiedWindow(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		out := tr.Update([]Candidate{{Class: 0, Box: box(0.2, 0.2, 0.5, 0.6), Score: 0.12, VerifiedNow: true}})
		require.Len(t, out, 1)
		require.Equal(t, 6, out[0].VerifiedTTL)

		for i := 1; i <= 5; i++ {
			out = tr.Update(nil)
			require.Len(t, out, 1, "update %v", i)
			require.Equal(t, 6-i, out[0].VerifiedTTL)
			require.Equal(t, i, out[0].Age)
		}

		// TTL reaches zero: the track still exists but is no longer confirmed
		out = tr.Update(nil)
		require.Empty(t, out)
		all := tr.Tracks()
		require.Len(t, all, 1)
		require.Equal(t, 6, all[0].Age)
		require.Equal(t, 0, all[0].VerifiedTTL)
		require.False(t, all[0].Confirmed)

		// Age exceeds MaxAge
		out = tr.Update(nil)
		require.Empty(t, out)
		require.Empty(t, tr.Tracks())
	})
}

func TestEviction(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		tr.Update([]Candidate{{Class: 5, Box: box(0, 0, 0.5, 0.5), Score: 0.9}})
		maxAge := tr.Config().MaxAge
		for i := 1; i <= maxAge; i++ {
			out := tr.Update(nil)
			require.Len(t, out, 1)
			for _, trk := range tr.Tracks() {
				require.LessOrEqual(t, trk.Age, maxAge)
			}
		}
		require.Empty(t, tr.Update(nil))
		require.Empty(t, tr.Tracks())
	})
}

// A rematch resets age and refreshes verification
func TestMatchUpdatesTrack(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		tr.Update([]Candidate{{Class: 1, Box: box(0.0, 0.0, 0.4, 0.4), Score: 0.5}})
		tr.Update(nil)
		tr.Update(nil)
		out := tr.Update([]Candidate{{Class: 1, Box: box(0.1, 0.0, 0.5, 0.4), Score: 0.2, VerifiedNow: true}})
		require.Len(t, out, 1)
		trk := out[0]
		require.Equal(t, 0, trk.Age)
		require.Equal(t, 2, trk.Hits)
		require.Equal(t, 6, trk.VerifiedTTL)
		require.InDelta(t, 0.5*0.6+0.2*0.4, trk.Score, 1e-6)
		require.InDelta(t, 0.05, trk.Box.X1, 1e-6)
		require.InDelta(t, 0.45, trk.Box.X2, 1e-6)
		require.InDelta(t, 0.05, trk.Displacement, 1e-6)
	})
}

func TestClassesNeverMerge(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		b := box(0.2, 0.2, 0.6, 0.6)
		out := tr.Update([]Candidate{
			{Class: 0, Box: b, Score: 0.5},
			{Class: 16, Box: b, Score: 0.5},
		})
		require.Len(t, out, 2)
		out = tr.Update([]Candidate{{Class: 16, Box: b, Score: 0.5}})
		require.Len(t, out, 2)
		for _, trk := range out {
			if trk.Class == 16 {
				require.Equal(t, 2, trk.Hits)
			} else {
				require.Equal(t, 1, trk.Hits)
				require.Equal(t, 1, trk.Age)
			}
		}
	})
}

// With an existing track, a candidate at IoU 0.5 joins it and a candidate at IoU 0.3 spawns
func TestMatchThreshold(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		tr.Update([]Candidate{{Class: 0, Box: box(0, 0, 0.4, 0.4), Score: 0.5}})

		first := box(0, 0, 0.4, 0.2)     // IoU 0.5 with the track
		second := box(0, 0.28, 0.4, 0.4) // IoU 0.3 with the track
		require.InDelta(t, 0.5, box(0, 0, 0.4, 0.4).IOU(first), 1e-5)
		require.InDelta(t, 0.3, box(0, 0, 0.4, 0.4).IOU(second), 1e-5)

		tr.Update([]Candidate{
			{Class: 0, Box: first, Score: 0.5},
			{Class: 0, Box: second, Score: 0.5},
		})
		all := tr.Tracks()
		require.Len(t, all, 2)
		require.Equal(t, 2, all[0].Hits)
		require.Equal(t, 1, all[1].Hits)
		require.Equal(t, second, all[1].Box)
	})
}

func TestMalformedCandidatesIgnored(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode AssociationMode) {
		tr := newTestTracker(t, mode)
		out := tr.Update([]Candidate{
			{Class: 0, Box: box(math32.NaN(), 0, 0.5, 0.5), Score: 0.9},
			{Class: 0, Box: box(0, 0, math32.Inf(1), 0.5), Score: 0.9},
			{Class: 0, Box: box(0.3, 0.3, 0.3, 0.6), Score: 0.9},
			{Class: 0, Box: box(1.1, 0.2, 1.4, 0.6), Score: 0.9},
			{Class: 0, Box: box(0.1, 0.1, 0.4, 0.4), Score: math32.NaN()},
		})
		require.Empty(t, out)
		require.Empty(t, tr.Tracks())

		// Boxes are clamped to the unit square
		out = tr.Update([]Candidate{{Class: 0, Box: box(-0.2, 0.5, 0.3, 1.4), Score: 0.9}})
		require.Len(t, out, 1)
		require.Equal(t, box(0, 0.5, 0.3, 1), out[0].Box)
	})
}

func TestSmallBoxesNeverConfirmed(t *testing.T) {
	tr := newTestTracker(t, AssociationGreedy)
	b := box(0.5, 0.5, 0.6, 0.6) // area 0.01
	for i := 0; i < 10; i++ {
		require.Empty(t, tr.Update([]Candidate{{Class: 0, Box: b, Score: 0.99, VerifiedNow: true}}))
	}
	trk := tr.Tracks()
	require.Len(t, trk, 1)
	require.Equal(t, 10, trk[0].Hits)
}

func TestEmptyUpdateOnEmptyTracker(t *testing.T) {
	tr := newTestTracker(t, AssociationGreedy)
	require.Empty(t, tr.Update(nil))
	require.Empty(t, tr.Update([]Candidate{}))
	require.Empty(t, tr.Tracks())
}

// In greedy mode a single track can absorb several candidates in one frame,
// whereas Hungarian assignment is one-to-one.
func TestDuplicateCandidates(t *testing.T) {
	b := box(0.1, 0.1, 0.5, 0.5)
	cands := []Candidate{
		{Class: 3, Box: b, Score: 0.5},
		{Class: 3, Box: b, Score: 0.5},
	}

	g := newTestTracker(t, AssociationGreedy)
	g.Update(cands[:1])
	g.Update(cands)
	all := g.Tracks()
	require.Len(t, all, 1)
	require.Equal(t, 3, all[0].Hits)

	h := newTestTracker(t, AssociationHungarian)
	h.Update(cands[:1])
	h.Update(cands)
	all = h.Tracks()
	require.Len(t, all, 2)
	require.Equal(t, 2, all[0].Hits)
	require.Equal(t, 1, all[1].Hits)
}

// Candidates in the same frame can join a track spawned by an earlier candidate (greedy mode)
func TestGreedySeesTracksSpawnedInSameFrame(t *testing.T) {
	tr := newTestTracker(t, AssociationGreedy)
	tr.Update([]Candidate{
		{Class: 0, Box: box(0.1, 0.1, 0.5, 0.5), Score: 0.3},
		{Class: 0, Box: box(0.12, 0.1, 0.52, 0.5), Score: 0.3},
	})
	all := tr.Tracks()
	require.Len(t, all, 1)
	require.Equal(t, 2, all[0].Hits)
}

// Hungarian association finds the assignment that greedy order misses
func TestHungarianBetterThanGreedy(t *testing.T) {
	// Two tracks side by side
	setup := []Candidate{
		{Class: 0, Box: box(0.0, 0.0, 0.4, 0.4), Score: 0.5},
		{Class: 0, Box: box(0.2, 0.0, 0.6, 0.4), Score: 0.5},
	}
	// The first candidate overlaps both tracks, preferring the second. The second candidate
	// only overlaps the second track.
	frame := []Candidate{
		{Class: 0, Box: box(0.12, 0.0, 0.52, 0.4), Score: 0.5},
		{Class: 0, Box: box(0.22, 0.0, 0.62, 0.4), Score: 0.5},
	}

	h := newTestTracker(t, AssociationHungarian)
	h.Update(setup)
	h.Update(frame)
	all := h.Tracks()
	require.Len(t, all, 2)
	require.Equal(t, 2, all[0].Hits)
	require.Equal(t, 2, all[1].Hits)
}

func TestTrackIDsAndReset(t *testing.T) {
	tr := newTestTracker(t, AssociationGreedy)
	tr.Update([]Candidate{
		{Class: 0, Box: box(0.0, 0.0, 0.3, 0.3), Score: 0.5},
		{Class: 1, Box: box(0.5, 0.5, 0.9, 0.9), Score: 0.5},
	})
	all := tr.Tracks()
	require.Equal(t, int64(1), all[0].ID)
	require.Equal(t, int64(2), all[1].ID)

	tr.Reset()
	require.Empty(t, tr.Tracks())
	tr.Update([]Candidate{{Class: 0, Box: box(0.0, 0.0, 0.3, 0.3), Score: 0.5}})
	require.Equal(t, int64(3), tr.Tracks()[0].ID)
}
