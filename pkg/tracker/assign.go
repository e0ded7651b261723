package tracker

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// Greedy association, in detector order.
// Every candidate sees the tracks as they are at that moment, so a track that was moved by an
// earlier candidate is compared using its new box, and tracks spawned earlier in the same frame
// are eligible matches.
func (t *Tracker) associateGreedy(candidates []Candidate) {
	if len(candidates) == 0 {
		return
	}

	// Spatial index over the tracks as they were at the start of the frame.
	// A track can only have IoU > 0 with a candidate if their boxes intersect.
	nStart := len(t.tracks)
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(nStart)
	for _, tr := range t.tracks {
		fb.Add(tr.Box.X1, tr.Box.Y1, tr.Box.X2, tr.Box.Y2)
	}
	fb.Finish()

	// moved holds the tracks whose current box is not the one in the index
	// (absorbed a candidate this frame, or spawned this frame).
	stale := make([]bool, nStart)
	moved := []int{}

	nearby := []int{}
	consider := []int{}
	for i := range candidates {
		c := &candidates[i]
		consider = consider[:0]
		if nStart != 0 {
			nearby = fb.SearchFast(c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2, nearby)
			for _, j := range nearby {
				if !stale[j] {
					consider = append(consider, j)
				}
			}
		}
		consider = append(consider, moved...)
		// Ties go to the oldest track
		sort.Ints(consider)

		bestJ := -1
		bestIoU := float32(0)
		for _, j := range consider {
			tr := t.tracks[j]
			if tr.Class != c.Class {
				continue
			}
			if iou := tr.Box.IOU(c.Box); iou > bestIoU {
				bestIoU = iou
				bestJ = j
			}
		}

		if bestJ != -1 && bestIoU >= t.config.MatchIoU {
			t.tracks[bestJ].absorb(c, t.config.VerifiedWindow)
			if bestJ < nStart && !stale[bestJ] {
				stale[bestJ] = true
				moved = append(moved, bestJ)
			}
		} else {
			t.spawn(c)
			moved = append(moved, len(t.tracks)-1)
		}
	}
}

// Hungarian association.
// Each track absorbs at most one candidate, and only tracks that existed at the start of the
// frame take part. Pairs of different class, or with IoU below MatchIoU, are forbidden.
// Unassigned candidates spawn new tracks, in detector order.
func (t *Tracker) associateHungarian(candidates []Candidate) {
	if len(candidates) == 0 {
		return
	}
	existing := t.tracks
	assign := matchHungarian(existing, candidates, t.config.MatchIoU)
	for i := range candidates {
		if j := assign[i]; j >= 0 {
			existing[j].absorb(&candidates[i], t.config.VerifiedWindow)
		} else {
			t.spawn(&candidates[i])
		}
	}
}
