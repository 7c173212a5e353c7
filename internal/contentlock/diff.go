package contentlock

// Result partitions the keys of two map snapshots. Keys present in both with
// equal values are unchanged and appear in no slice.
type Result[K comparable] struct {
	New     []K // present in current only
	Updated []K // present in both, value differs
	Deleted []K // present in previous only
}

// Diff compares two snapshots. Order within each result slice is unspecified.
func Diff[K, V comparable](previous, current map[K]V) Result[K] {
	var r Result[K]

	for k, v := range current {
		old, ok := previous[k]
		switch {
		case !ok:
			r.New = append(r.New, k)
		case old != v:
			r.Updated = append(r.Updated, k)
		}
	}
	for k := range previous {
		if _, ok := current[k]; !ok {
			r.Deleted = append(r.Deleted, k)
		}
	}
	return r
}
