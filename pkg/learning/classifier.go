package learning

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Classifier assigns the maximum a posteriori class using Laplace-smoothed
// frequencies from a CountSource.
//
// Scores are accumulated as log probabilities to avoid underflow on long vectors.
// Ties go to the smallest class label.
type Classifier[V, C cmp.Ordered] struct {
	source  CountSource[V, C]
	missing V
}

// ClassScore holds the score of one class for one item
type ClassScore[C cmp.Ordered] struct {
	Class     C
	LogScore  float64
	Posterior float64
}

// NewClassifier creates a classifier over source. Item positions equal to missing
// are treated as unobserved and contribute no likelihood factor.
func NewClassifier[V, C cmp.Ordered](source CountSource[V, C], missing V) *Classifier[V, C] {
	return &Classifier[V, C]{source: source, missing: missing}
}

// Missing returns the missing-value sentinel
func (cl *Classifier[V, C]) Missing() V {
	return cl.missing
}

// scorer holds log priors and log likelihoods for one snapshot
type scorer[V, C cmp.Ordered] struct {
	counts   *Counts[V, C]
	index    []map[V]int
	logPrior []float64
	logLik   [][][]float64
}

func (cl *Classifier[V, C]) prepare() (*scorer[V, C], error) {
	s := cl.source.Snapshot()
	if s.Total == 0 || s.Values == nil {
		return nil, ErrEmptyModel
	}

	nc := len(s.Classes)
	sc := &scorer[V, C]{
		counts:   s,
		index:    make([]map[V]int, len(s.Attributes)),
		logPrior: make([]float64, nc),
		logLik:   make([][][]float64, len(s.Attributes)),
	}

	for ci := range s.Classes {
		sc.logPrior[ci] = math.Log(float64(s.ClassCounts[ci]) / float64(s.Total))
	}

	for a, values := range s.Domains {
		sc.index[a] = make(map[V]int, len(values))
		for vi, v := range values {
			sc.index[a][v] = vi
		}

		k := float64(len(values))
		sc.logLik[a] = make([][]float64, nc)
		for ci := range s.Classes {
			denom := float64(s.ClassCounts[ci]) + k
			row := make([]float64, len(values))
			for vi := range values {
				row[vi] = math.Log((float64(s.Values[a][ci][vi]) + 1) / denom)
			}
			sc.logLik[a][ci] = row
		}
	}

	return sc, nil
}

// resolve maps an item to value positions, -1 for unobserved attributes
func (cl *Classifier[V, C]) resolve(sc *scorer[V, C], row int, item []V) ([]int, error) {
	attrs := sc.counts.Attributes
	if len(item) != len(attrs) {
		return nil, malformed("item %d has %d values, want %d", row, len(item), len(attrs))
	}

	out := make([]int, len(item))
	for a, v := range item {
		if v == cl.missing {
			out[a] = -1
			continue
		}
		vi, ok := sc.index[a][v]
		if !ok {
			if sc.counts.Policy == PolicySkip {
				out[a] = -1
				continue
			}
			return nil, &DomainError{Attribute: attrs[a], Value: v, Row: row}
		}
		out[a] = vi
	}
	return out, nil
}

func (sc *scorer[V, C]) logScores(values []int) []float64 {
	scores := slices.Clone(sc.logPrior)
	for ci := range scores {
		for a, vi := range values {
			if vi < 0 {
				continue
			}
			scores[ci] += sc.logLik[a][ci][vi]
		}
	}
	return scores
}

// best returns the position of the highest score; the first one wins ties
func best(scores []float64) int {
	top := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[top] {
			top = i
		}
	}
	return top
}

// Classify labels each item, preserving input order.
// All items are validated before any label is produced.
func (cl *Classifier[V, C]) Classify(items [][]V) ([]C, error) {
	sc, err := cl.prepare()
	if err != nil {
		return nil, err
	}

	resolved := make([][]int, len(items))
	for i, item := range items {
		if resolved[i], err = cl.resolve(sc, i, item); err != nil {
			return nil, err
		}
	}

	labels := make([]C, len(items))
	for i, values := range resolved {
		labels[i] = sc.counts.Classes[best(sc.logScores(values))]
	}
	return labels, nil
}

// Predict labels a single item
func (cl *Classifier[V, C]) Predict(item []V) (C, error) {
	labels, err := cl.Classify([][]V{item})
	if err != nil {
		var zero C
		return zero, err
	}
	return labels[0], nil
}

// Scores returns the log score and normalized posterior of every class for item,
// in class order.
func (cl *Classifier[V, C]) Scores(item []V) ([]ClassScore[C], error) {
	sc, err := cl.prepare()
	if err != nil {
		return nil, err
	}
	values, err := cl.resolve(sc, 0, item)
	if err != nil {
		return nil, err
	}

	logs := sc.logScores(values)
	top := logs[best(logs)]

	var sum float64
	weights := make([]float64, len(logs))
	for i, l := range logs {
		weights[i] = math.Exp(l - top)
		sum += weights[i]
	}

	out := make([]ClassScore[C], len(logs))
	for i, c := range sc.counts.Classes {
		out[i] = ClassScore[C]{Class: c, LogScore: logs[i], Posterior: weights[i] / sum}
	}
	return out, nil
}

// Likelihood returns the smoothed P(value | class) for an attribute
func (cl *Classifier[V, C]) Likelihood(attribute string, class C, value V) (float64, error) {
	s := cl.source.Snapshot()
	a := slices.Index(s.Attributes, attribute)
	if a < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
	if s.Values == nil {
		return 0, fmt.Errorf("count table not allocated: %w", ErrEmptyModel)
	}
	ci, ok := slices.BinarySearch(s.Classes, class)
	if !ok {
		return 0, &DomainError{Attribute: ClassAttribute, Value: class, Row: -1}
	}
	vi, ok := slices.BinarySearch(s.Domains[a], value)
	if !ok {
		return 0, &DomainError{Attribute: attribute, Value: value, Row: -1}
	}

	k := float64(len(s.Domains[a]))
	return (float64(s.Values[a][ci][vi]) + 1) / (float64(s.ClassCounts[ci]) + k), nil
}
