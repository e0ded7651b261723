package gen

// Mode returns the most frequent element of src.
// On a tie, the element that reached the winning count first is returned.
func Mode[T comparable](src []T) (mode T, count int) {
	counts := make(map[T]int)
	for _, v := range src {
		counts[v]++
		if counts[v] > count {
			mode = v
			count = counts[v]
		}
	}
	return
}
