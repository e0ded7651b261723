package nn

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// NMS performs class-agnostic greedy non-maximum suppression.
// Objects are visited in order of descending confidence, and an object is dropped if it overlaps
// an already retained object with IoU > iouThreshold. At most maxOutput objects are returned
// (maxOutput <= 0 means no limit).
func NMS(input []ObjectDetection, iouThreshold float32, maxOutput int) []ObjectDetection {
	if len(input) == 0 {
		return []ObjectDetection{}
	}

	order := make([]int, len(input))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return input[order[a]].Confidence > input[order[b]].Confidence
	})

	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(input))
	for _, d := range input {
		fb.Add(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}
	fb.Finish()

	suppressed := make([]bool, len(input))
	retain := make([]ObjectDetection, 0, len(input))
	var buf []int
	for _, i := range order {
		if suppressed[i] {
			continue
		}
		retain = append(retain, input[i])
		if maxOutput > 0 && len(retain) >= maxOutput {
			break
		}
		b := input[i].Box
		buf = fb.SearchFast(b.X1, b.Y1, b.X2, b.Y2, buf[:0])
		for _, j := range buf {
			if j == i || suppressed[j] {
				continue
			}
			if b.IOU(input[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return retain
}
