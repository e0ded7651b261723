package tracker

import "math"

// matchHungarian pairs candidates with tracks one-to-one, maximizing the total IoU.
// A pair is allowed only when the classes agree and IoU >= minIoU.
// Returns the index into tracks for every candidate, or -1 if the candidate has no track.
func matchHungarian(tracks []*track, candidates []Candidate, minIoU float32) []int {
	result := make([]int, len(candidates))
	for i := range result {
		result[i] = -1
	}
	if len(tracks) == 0 || len(candidates) == 0 {
		return result
	}

	h := newHungarian(max(len(candidates), len(tracks)))
	anyAllowed := false
	for i := range candidates {
		for j, tr := range tracks {
			if tr.Class != candidates[i].Class {
				continue
			}
			if iou := tr.Box.IOU(candidates[i].Box); iou >= minIoU {
				h.allow(i, j, 1-float64(iou))
				anyAllowed = true
			}
		}
	}
	if !anyAllowed {
		return result
	}

	h.solve()
	for i := range candidates {
		if j := h.rowCol[i]; j < len(tracks) && h.allowed(i, j) {
			result[i] = j
		}
	}
	return result
}

// hungarian is a square min-cost assignment solver (Kuhn-Munkres with row and column potentials).
// Every pair starts out forbidden. A forbidden pair costs more than any complete assignment
// of allowed pairs, so the solver maximizes the number of allowed pairs before minimizing cost.
// Allowed costs must lie in [0, 1].
type hungarian struct {
	size      int
	forbidden float64
	cost      [][]float64
	rowCol    []int // Column assigned to each row, after solve()

	// Internal state of solve(). Rows and columns are 1-based, and column 0 is a virtual
	// column that holds the row being inserted.
	rowPot  []float64
	colPot  []float64
	colRow  []int // Row owning each column, or 0 if the column is free
	prevCol []int // Previous column on the alternating path
	slack   []float64
	visited []bool
}

func newHungarian(size int) *hungarian {
	h := &hungarian{
		size:      size,
		forbidden: float64(size) + 1,
		cost:      make([][]float64, size),
		rowCol:    make([]int, size),
		rowPot:    make([]float64, size+1),
		colPot:    make([]float64, size+1),
		colRow:    make([]int, size+1),
		prevCol:   make([]int, size+1),
		slack:     make([]float64, size+1),
		visited:   make([]bool, size+1),
	}
	for i := range h.cost {
		h.cost[i] = make([]float64, size)
		for j := range h.cost[i] {
			h.cost[i][j] = h.forbidden
		}
	}
	return h
}

func (h *hungarian) allow(row, col int, cost float64) {
	h.cost[row][col] = cost
}

func (h *hungarian) allowed(row, col int) bool {
	return h.cost[row][col] < h.forbidden
}

func (h *hungarian) solve() {
	for row := 1; row <= h.size; row++ {
		h.insertRow(row)
	}
	for col := 1; col <= h.size; col++ {
		h.rowCol[h.colRow[col]-1] = col - 1
	}
}

// insertRow grows the assignment by one row, along the cheapest augmenting path
func (h *hungarian) insertRow(row int) {
	h.colRow[0] = row
	for j := range h.slack {
		h.slack[j] = math.Inf(1)
		h.visited[j] = false
	}

	col := 0
	for h.colRow[col] != 0 {
		h.visited[col] = true
		r := h.colRow[col]
		delta := math.Inf(1)
		next := 0
		for j := 1; j <= h.size; j++ {
			if h.visited[j] {
				continue
			}
			reduced := h.cost[r-1][j-1] - h.rowPot[r] - h.colPot[j]
			if reduced < h.slack[j] {
				h.slack[j] = reduced
				h.prevCol[j] = col
			}
			if h.slack[j] < delta {
				delta = h.slack[j]
				next = j
			}
		}
		for j := 0; j <= h.size; j++ {
			if h.visited[j] {
				h.rowPot[h.colRow[j]] += delta
				h.colPot[j] -= delta
			} else {
				h.slack[j] -= delta
			}
		}
		col = next
	}

	for col != 0 {
		prev := h.prevCol[col]
		h.colRow[col] = h.colRow[prev]
		col = prev
	}
}
