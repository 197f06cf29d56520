package learning

import "cmp"

// CountSource is the read surface a Classifier needs from a trained model
type CountSource[V, C cmp.Ordered] interface {
	Snapshot() *Counts[V, C]
}

// Counts is a point-in-time copy of a frequency table.
//
// Values[a][c][v] is the count for attribute a, class c and value v, where c and v
// index Classes and Domains[a]. Domains, ClassCounts and Values are nil when the
// table has not been allocated.
type Counts[V, C cmp.Ordered] struct {
	Attributes  []string
	Domains     [][]V
	Classes     []C
	ClassCounts []int
	Values      [][][]int
	Total       int
	Policy      UnknownValuePolicy
}

// Ensure the in-memory model satisfies the interface
var _ CountSource[int, int] = (*FrequencyModel[int, int])(nil)
var _ CountSource[string, string] = (*FrequencyModel[string, string])(nil)
