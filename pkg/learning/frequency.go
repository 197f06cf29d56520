package learning

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// UnknownValuePolicy decides what Learn does with values outside an established domain
type UnknownValuePolicy int

const (
	// PolicyReject fails the whole call and applies nothing
	PolicyReject UnknownValuePolicy = iota
	// PolicySkip drops offending observations and applies the rest
	PolicySkip
)

func (p UnknownValuePolicy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicySkip:
		return "skip"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a config string into an UnknownValuePolicy
func ParsePolicy(s string) (UnknownValuePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return PolicyReject, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyReject, fmt.Errorf("unknown value policy %q (want reject or skip)", s)
	}
}

// domain is an ordered value set with a reverse index
type domain[T cmp.Ordered] struct {
	values []T
	index  map[T]int
}

func newDomain[T cmp.Ordered](values []T) domain[T] {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	index := make(map[T]int, len(sorted))
	for i, v := range sorted {
		index[v] = i
	}
	return domain[T]{values: sorted, index: index}
}

func (d domain[T]) size() int {
	return len(d.values)
}

// FrequencyModel keeps the dense count table of a discrete Naive Bayes model.
//
// Counts are stored in one flat slice. The count of value v for attribute a under
// class c lives at offsets[a] + c*|Domain(a)| + v, where c and v are positions in
// the sorted class and value domains.
type FrequencyModel[V, C cmp.Ordered] struct {
	mu sync.RWMutex

	attributes []string
	attrIndex  map[string]int

	// Domains, either supplied or inferred from the first batch
	domains     []domain[V]
	classes     domain[C]
	haveDomains bool
	haveClasses bool

	// Count table, nil until the domains are known
	counts      []int
	offsets     []int
	classCounts []int
	total       int

	policy      UnknownValuePolicy
	lastTrained time.Time
}

// LearnResult reports how many observations a Learn call applied
type LearnResult struct {
	Applied int
	Skipped int
}

// NewFrequencyModel creates a model over the given attributes.
//
// domains maps every attribute to its legal values; pass nil to infer all domains
// from the first training batch. classes lists the class labels; pass nil to infer
// them. When both are supplied the count table is allocated immediately.
func NewFrequencyModel[V, C cmp.Ordered](attributes []string, domains map[string][]V, classes []C) (*FrequencyModel[V, C], error) {
	if len(attributes) == 0 {
		return nil, malformed("at least one attribute is required")
	}

	m := &FrequencyModel[V, C]{
		attributes: slices.Clone(attributes),
		attrIndex:  make(map[string]int, len(attributes)),
	}
	for i, name := range attributes {
		if _, dup := m.attrIndex[name]; dup {
			return nil, malformed("duplicate attribute %q", name)
		}
		m.attrIndex[name] = i
	}

	if domains != nil {
		if len(domains) != len(attributes) {
			return nil, malformed("domains given for %d attributes, model has %d", len(domains), len(attributes))
		}
		m.domains = make([]domain[V], len(attributes))
		for i, name := range attributes {
			values, ok := domains[name]
			if !ok {
				return nil, malformed("no domain for attribute %q", name)
			}
			if len(values) == 0 {
				return nil, malformed("empty domain for attribute %q", name)
			}
			m.domains[i] = newDomain(values)
		}
		m.haveDomains = true
	}

	if len(classes) > 0 {
		m.classes = newDomain(classes)
		m.haveClasses = true
	}

	if m.haveDomains && m.haveClasses {
		m.allocate()
	}

	return m, nil
}

// allocate builds the zeroed count table; the caller holds the write lock
func (m *FrequencyModel[V, C]) allocate() {
	nc := m.classes.size()
	m.offsets = make([]int, len(m.attributes))
	size := 0
	for a, d := range m.domains {
		m.offsets[a] = size
		size += nc * d.size()
	}
	m.counts = make([]int, size)
	m.classCounts = make([]int, nc)
	m.total = 0
}

func (m *FrequencyModel[V, C]) cell(a, c, v int) int {
	return m.offsets[a] + c*m.domains[a].size() + v
}

// Learn adds a batch of labeled observations to the counts.
func (m *FrequencyModel[V, C]) Learn(vectors [][]V, labels []C) error {
	_, err := m.LearnBatch(vectors, labels)
	return err
}

// LearnBatch is Learn that also reports applied and skipped observations.
//
// On the first call with an unallocated table the missing domains and class set are
// inferred from this batch. Every observation is resolved against the domains before
// any count changes, so a rejected call leaves the model untouched.
func (m *FrequencyModel[V, C]) LearnBatch(vectors [][]V, labels []C) (LearnResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(vectors) != len(labels) {
		return LearnResult{}, malformed("%d vectors but %d labels", len(vectors), len(labels))
	}
	for i, vec := range vectors {
		if len(vec) != len(m.attributes) {
			return LearnResult{}, malformed("row %d has %d values, want %d", i, len(vec), len(m.attributes))
		}
	}
	if len(vectors) == 0 {
		return LearnResult{}, nil
	}

	// Resolve domains without committing them yet
	domains := m.domains
	classes := m.classes
	if m.counts == nil {
		if !m.haveDomains {
			domains = make([]domain[V], len(m.attributes))
			column := make([]V, len(vectors))
			for a := range m.attributes {
				for i, vec := range vectors {
					column[i] = vec[a]
				}
				domains[a] = newDomain(column)
			}
		}
		if !m.haveClasses {
			classes = newDomain(labels)
		}
	}

	type resolved struct {
		class  int
		values []int
	}
	rows := make([]resolved, 0, len(vectors))
	skipped := 0

	for i, vec := range vectors {
		ci, ok := classes.index[labels[i]]
		if !ok {
			if m.policy == PolicySkip {
				skipped++
				continue
			}
			return LearnResult{}, &DomainError{Attribute: ClassAttribute, Value: labels[i], Row: i}
		}

		values := make([]int, len(vec))
		bad := false
		for a, v := range vec {
			vi, ok := domains[a].index[v]
			if !ok {
				if m.policy == PolicySkip {
					bad = true
					break
				}
				return LearnResult{}, &DomainError{Attribute: m.attributes[a], Value: v, Row: i}
			}
			values[a] = vi
		}
		if bad {
			skipped++
			continue
		}
		rows = append(rows, resolved{class: ci, values: values})
	}

	if m.counts == nil {
		m.domains = domains
		m.classes = classes
		m.haveDomains = true
		m.haveClasses = true
		m.allocate()
	}

	for _, row := range rows {
		m.classCounts[row.class]++
		for a, vi := range row.values {
			m.counts[m.cell(a, row.class, vi)]++
		}
	}
	m.total += len(rows)
	if len(rows) > 0 {
		m.lastTrained = time.Now()
	}

	return LearnResult{Applied: len(rows), Skipped: skipped}, nil
}

// Ready reports whether the count table has been allocated
func (m *FrequencyModel[V, C]) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts != nil
}

// Policy returns the unknown value policy
func (m *FrequencyModel[V, C]) Policy() UnknownValuePolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

// SetPolicy sets the unknown value policy
func (m *FrequencyModel[V, C]) SetPolicy(p UnknownValuePolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

// Attributes returns the attribute names in vector order
func (m *FrequencyModel[V, C]) Attributes() []string {
	return slices.Clone(m.attributes)
}

// Domain returns the sorted legal values of an attribute.
// It is empty when the domain has not been established yet.
func (m *FrequencyModel[V, C]) Domain(attribute string) ([]V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attrIndex[attribute]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
	if m.domains == nil {
		return nil, nil
	}
	return slices.Clone(m.domains[a].values), nil
}

// Classes returns the sorted class labels
func (m *FrequencyModel[V, C]) Classes() []C {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.classes.values)
}

// ClassCounts returns the number of observations learned per class
func (m *FrequencyModel[V, C]) ClassCounts() map[C]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[C]int, m.classes.size())
	for ci, c := range m.classes.values {
		if m.classCounts != nil {
			out[c] = m.classCounts[ci]
		} else {
			out[c] = 0
		}
	}
	return out
}

// Total returns the number of observations learned
func (m *FrequencyModel[V, C]) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// ValueCounts returns value -> count for one attribute and class.
// Every value of the domain is present, including zero counts.
func (m *FrequencyModel[V, C]) ValueCounts(attribute string, class C) (map[V]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attrIndex[attribute]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
	if m.counts == nil {
		return nil, fmt.Errorf("count table not allocated: %w", ErrEmptyModel)
	}
	ci, ok := m.classes.index[class]
	if !ok {
		return nil, &DomainError{Attribute: ClassAttribute, Value: class, Row: -1}
	}

	out := make(map[V]int, m.domains[a].size())
	for vi, v := range m.domains[a].values {
		out[v] = m.counts[m.cell(a, ci, vi)]
	}
	return out, nil
}

// Count returns the count for a single (attribute, class, value) cell
func (m *FrequencyModel[V, C]) Count(attribute string, class C, value V) (int, error) {
	counts, err := m.ValueCounts(attribute, class)
	if err != nil {
		return 0, err
	}
	n, ok := counts[value]
	if !ok {
		return 0, &DomainError{Attribute: attribute, Value: value, Row: -1}
	}
	return n, nil
}

// Snapshot returns a consistent copy of the counts
func (m *FrequencyModel[V, C]) Snapshot() *Counts[V, C] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Counts[V, C]{
		Attributes: slices.Clone(m.attributes),
		Classes:    slices.Clone(m.classes.values),
		Total:      m.total,
		Policy:     m.policy,
	}
	if m.counts == nil {
		return s
	}

	nc := m.classes.size()
	s.ClassCounts = slices.Clone(m.classCounts)
	s.Domains = make([][]V, len(m.attributes))
	s.Values = make([][][]int, len(m.attributes))
	for a, d := range m.domains {
		s.Domains[a] = slices.Clone(d.values)
		s.Values[a] = make([][]int, nc)
		for ci := 0; ci < nc; ci++ {
			start := m.cell(a, ci, 0)
			s.Values[a][ci] = slices.Clone(m.counts[start : start+d.size()])
		}
	}
	return s
}

// Reset clears all counts; established domains are kept
func (m *FrequencyModel[V, C]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counts != nil {
		clear(m.counts)
		clear(m.classCounts)
	}
	m.total = 0
	m.lastTrained = time.Time{}
}

// ValueStats describes how strongly one attribute value points at a class
type ValueStats[V cmp.Ordered] struct {
	Attribute  string
	Value      V
	Count      int
	RestCount  int
	Likelihood float64
	LogRatio   float64
}

// TopValues ranks attribute values by smoothed log likelihood ratio of class
// against all other classes combined.
func (m *FrequencyModel[V, C]) TopValues(class C, limit int) ([]ValueStats[V], error) {
	s := m.Snapshot()
	if s.Values == nil {
		return nil, fmt.Errorf("count table not allocated: %w", ErrEmptyModel)
	}
	ci, ok := slices.BinarySearch(s.Classes, class)
	if !ok {
		return nil, &DomainError{Attribute: ClassAttribute, Value: class, Row: -1}
	}

	inClass := s.ClassCounts[ci]
	rest := s.Total - inClass

	var stats []ValueStats[V]
	for a, values := range s.Domains {
		k := float64(len(values))
		for vi, v := range values {
			n := s.Values[a][ci][vi]
			others := 0
			for cj := range s.Classes {
				if cj != ci {
					others += s.Values[a][cj][vi]
				}
			}
			p := (float64(n) + 1) / (float64(inClass) + k)
			q := (float64(others) + 1) / (float64(rest) + k)
			stats = append(stats, ValueStats[V]{
				Attribute:  s.Attributes[a],
				Value:      v,
				Count:      n,
				RestCount:  others,
				Likelihood: p,
				LogRatio:   math.Log(p / q),
			})
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].LogRatio > stats[j].LogRatio
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// PrintStats prints model statistics
func (m *FrequencyModel[V, C]) PrintStats(w io.Writer) {
	s := m.Snapshot()

	m.mu.RLock()
	lastTrained := m.lastTrained
	m.mu.RUnlock()

	fmt.Fprintf(w, "Naive Bayes Frequency Model\n")
	fmt.Fprintf(w, "════════════════════════════════════════\n")
	fmt.Fprintf(w, "Attributes: %d\n", len(s.Attributes))
	fmt.Fprintf(w, "Observations: %d\n", s.Total)
	fmt.Fprintf(w, "Unknown values: %s\n", s.Policy)
	if !lastTrained.IsZero() {
		fmt.Fprintf(w, "Last trained: %s\n", lastTrained.Format("2006-01-02 15:04:05"))
	}

	if s.Values == nil {
		fmt.Fprintf(w, "\nCount table not allocated yet\n\n")
		return
	}

	cells := 0
	for _, d := range s.Domains {
		cells += len(d) * len(s.Classes)
	}
	fmt.Fprintf(w, "Count cells: %d\n", cells)

	fmt.Fprintf(w, "\nClasses:\n")
	for ci, c := range s.Classes {
		share := 0.0
		if s.Total > 0 {
			share = float64(s.ClassCounts[ci]) / float64(s.Total)
		}
		fmt.Fprintf(w, "  %-10v %6d (%.1f%%)\n", c, s.ClassCounts[ci], share*100)
	}

	if s.Total == 0 {
		fmt.Fprintf(w, "\n")
		return
	}

	for _, c := range s.Classes {
		top, err := m.TopValues(c, 10)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "\nTop values for class %v:\n", c)
		for i, vs := range top {
			fmt.Fprintf(w, "  %2d. %-15s = %-6v (%.3f log ratio, %d/%d)\n",
				i+1, vs.Attribute, vs.Value, vs.LogRatio, vs.Count, vs.RestCount)
		}
	}

	fmt.Fprintf(w, "\n")
}
