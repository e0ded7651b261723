// Package gen contains a bunch of generic functions that will probably be in the Go std lib someday
package gen

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type Float interface {
	~float32 | ~float64
}

type Ordered interface {
	Integer | Float | ~string
}

// Delete the i'th element by swapping in the last element. Order is not preserved.
func DeleteFromSliceUnordered[T any](slice []T, i int) []T {
	slice[i] = slice[len(slice)-1]
	return slice[:len(slice)-1]
}

// Return the unique elements of src, in order of first appearance
func Uniq[T comparable](src []T) []T {
	seen := make(map[T]bool, len(src))
	out := make([]T, 0, len(src))
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
