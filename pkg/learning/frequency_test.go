package learning

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	exampleAttributes = []string{"uno", "dos"}
	exampleDomains    = map[string][]int{"uno": {1, 2, 3, 4}, "dos": {10, 20}}
	exampleClasses    = []string{"N", "P"}

	exampleData   = [][]int{{1, 10}, {2, 10}, {3, 10}, {4, 10}, {1, 20}, {2, 20}, {3, 20}, {4, 20}}
	exampleLabels = []string{"N", "P", "P", "N", "N", "P", "N", "N"}
)

func newExampleModel(t testing.TB) *FrequencyModel[int, string] {
	t.Helper()
	m, err := NewFrequencyModel[int, string](exampleAttributes, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Learn(exampleData, exampleLabels))
	return m
}

func valueCounts(t testing.TB, m *FrequencyModel[int, string], attr, class string) map[int]int {
	t.Helper()
	counts, err := m.ValueCounts(attr, class)
	require.NoError(t, err)
	return counts
}

func TestNewFrequencyModelWithDomains(t *testing.T) {
	m, err := NewFrequencyModel(exampleAttributes, exampleDomains, exampleClasses)
	require.NoError(t, err)

	assert.True(t, m.Ready())
	assert.Equal(t, map[string]int{"N": 0, "P": 0}, m.ClassCounts())
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 0}, valueCounts(t, m, "uno", "N"))
	assert.Equal(t, 0, m.Total())
}

func TestNewFrequencyModelDeferred(t *testing.T) {
	m, err := NewFrequencyModel[int, string](exampleAttributes, nil, nil)
	require.NoError(t, err)

	assert.False(t, m.Ready())
	_, err = m.ValueCounts("uno", "N")
	assert.ErrorIs(t, err, ErrEmptyModel)

	domain, err := m.Domain("uno")
	require.NoError(t, err)
	assert.Empty(t, domain)
}

func TestNewFrequencyModelInvalid(t *testing.T) {
	tests := []struct {
		name       string
		attributes []string
		domains    map[string][]int
	}{
		{"no attributes", nil, nil},
		{"duplicate attribute", []string{"a", "a"}, nil},
		{"missing domain", []string{"a", "b"}, map[string][]int{"a": {1}, "c": {2}}},
		{"empty domain", []string{"a"}, map[string][]int{"a": {}}},
		{"too many domains", []string{"a"}, map[string][]int{"a": {1}, "b": {2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrequencyModel[int, string](tt.attributes, tt.domains, nil)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestLearnExample(t *testing.T) {
	m := newExampleModel(t)

	assert.Equal(t, map[string]int{"N": 5, "P": 3}, m.ClassCounts())
	assert.Equal(t, 8, m.Total())
	assert.Equal(t, map[int]int{1: 2, 2: 0, 3: 1, 4: 2}, valueCounts(t, m, "uno", "N"))
	assert.Equal(t, map[int]int{10: 2, 20: 1}, valueCounts(t, m, "dos", "P"))
	assert.Equal(t, map[int]int{10: 2, 20: 3}, valueCounts(t, m, "dos", "N"))

	n, err := m.Count("uno", "P", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLearnInfersOrderedDomains(t *testing.T) {
	m, err := NewFrequencyModel[int, string](exampleAttributes, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Learn([][]int{{4, 20}, {1, 10}, {4, 10}}, []string{"P", "N", "P"}))

	uno, err := m.Domain("uno")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, uno)
	assert.Equal(t, []string{"N", "P"}, m.Classes())
}

func TestLearnPartialSchema(t *testing.T) {
	// Domains given, classes inferred
	m, err := NewFrequencyModel[int, string](exampleAttributes, exampleDomains, nil)
	require.NoError(t, err)
	assert.False(t, m.Ready())

	require.NoError(t, m.Learn([][]int{{1, 10}}, []string{"N"}))
	assert.True(t, m.Ready())
	assert.Equal(t, map[int]int{1: 1, 2: 0, 3: 0, 4: 0}, valueCounts(t, m, "uno", "N"))

	// Classes given, domains inferred
	m, err = NewFrequencyModel[int, string](exampleAttributes, nil, []string{"P", "N"})
	require.NoError(t, err)
	require.NoError(t, m.Learn([][]int{{1, 10}}, []string{"N"}))
	assert.Equal(t, map[string]int{"N": 1, "P": 0}, m.ClassCounts())
	assert.Equal(t, map[int]int{1: 0}, valueCounts(t, m, "uno", "P"))
}

func TestLearnMalformed(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]int
		labels  []string
	}{
		{"label count mismatch", [][]int{{1, 10}, {2, 10}}, []string{"N"}},
		{"short vector", [][]int{{1, 10}, {2}}, []string{"N", "P"}},
		{"long vector", [][]int{{1, 10, 5}}, []string{"N"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newExampleModel(t)
			before := m.Snapshot()

			err := m.Learn(tt.vectors, tt.labels)
			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.Equal(t, before, m.Snapshot())
		})
	}
}

func TestLearnOutOfDomainRejected(t *testing.T) {
	m := newExampleModel(t)
	before := m.Snapshot()

	// The first row is valid; nothing may be applied when a later row fails
	err := m.Learn([][]int{{1, 10}, {5, 10}}, []string{"N", "N"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfDomain)

	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "uno", de.Attribute)
	assert.Equal(t, 5, de.Value)
	assert.Equal(t, 1, de.Row)
	assert.Equal(t, before, m.Snapshot())

	err = m.Learn([][]int{{1, 10}}, []string{"Q"})
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ClassAttribute, de.Attribute)
	assert.Equal(t, before, m.Snapshot())
}

func TestLearnRejectedFirstBatchKeepsModelUnallocated(t *testing.T) {
	m, err := NewFrequencyModel[int, string](exampleAttributes, exampleDomains, nil)
	require.NoError(t, err)

	err = m.Learn([][]int{{9, 10}}, []string{"N"})
	assert.ErrorIs(t, err, ErrOutOfDomain)
	assert.False(t, m.Ready())
	assert.Empty(t, m.Classes())
}

func TestLearnSkipPolicy(t *testing.T) {
	m := newExampleModel(t)
	m.SetPolicy(PolicySkip)

	res, err := m.LearnBatch([][]int{{1, 10}, {5, 10}, {2, 30}, {2, 20}}, []string{"N", "N", "P", "X"})
	require.NoError(t, err)
	assert.Equal(t, LearnResult{Applied: 1, Skipped: 3}, res)
	assert.Equal(t, map[string]int{"N": 6, "P": 3}, m.ClassCounts())
	assert.Equal(t, 9, m.Total())
	assertConservation(t, m)
}

func TestLearnEmptyBatch(t *testing.T) {
	m, err := NewFrequencyModel[int, string](exampleAttributes, nil, nil)
	require.NoError(t, err)

	res, err := m.LearnBatch(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, LearnResult{}, res)
	assert.False(t, m.Ready())
}

func TestLearnDomainsFixedAfterFirstBatch(t *testing.T) {
	m, err := NewFrequencyModel[int, string](exampleAttributes, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Learn(exampleData[:2], exampleLabels[:2]))

	// Value 3 was not seen in the first batch
	err = m.Learn(exampleData[2:3], exampleLabels[2:3])
	assert.ErrorIs(t, err, ErrOutOfDomain)
	assert.Equal(t, 2, m.Total())
}

func assertConservation(t *testing.T, m *FrequencyModel[int, string]) {
	t.Helper()
	classCounts := m.ClassCounts()
	total := 0
	for _, class := range m.Classes() {
		total += classCounts[class]
		for _, attr := range m.Attributes() {
			sum := 0
			for _, n := range valueCounts(t, m, attr, class) {
				sum += n
			}
			assert.Equal(t, classCounts[class], sum, "attribute %s class %s", attr, class)
		}
	}
	assert.Equal(t, m.Total(), total)
}

func randomBatch(r *rand.Rand, n int) ([][]int, []string) {
	uno := exampleDomains["uno"]
	dos := exampleDomains["dos"]
	vectors := make([][]int, n)
	labels := make([]string, n)
	for i := range vectors {
		vectors[i] = []int{uno[r.Intn(len(uno))], dos[r.Intn(len(dos))]}
		labels[i] = exampleClasses[r.Intn(len(exampleClasses))]
	}
	return vectors, labels
}

func TestCountConservation(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	m, err := NewFrequencyModel(exampleAttributes, exampleDomains, exampleClasses)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		vectors, labels := randomBatch(r, r.Intn(30))
		require.NoError(t, m.Learn(vectors, labels))
		assertConservation(t, m)
	}
}

func TestIncrementalMatchesSingleBatch(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	b1, l1 := randomBatch(r, 25)
	b2, l2 := randomBatch(r, 40)

	twice, err := NewFrequencyModel(exampleAttributes, exampleDomains, exampleClasses)
	require.NoError(t, err)
	require.NoError(t, twice.Learn(b1, l1))
	require.NoError(t, twice.Learn(b2, l2))

	once, err := NewFrequencyModel(exampleAttributes, exampleDomains, exampleClasses)
	require.NoError(t, err)
	require.NoError(t, once.Learn(append(append([][]int{}, b1...), b2...), append(append([]string{}, l1...), l2...)))

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestResetKeepsDomains(t *testing.T) {
	m := newExampleModel(t)
	m.Reset()

	assert.Equal(t, 0, m.Total())
	assert.Equal(t, map[string]int{"N": 0, "P": 0}, m.ClassCounts())
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 0}, valueCounts(t, m, "uno", "N"))

	require.NoError(t, m.Learn(exampleData, exampleLabels))
	assert.Equal(t, map[string]int{"N": 5, "P": 3}, m.ClassCounts())
}

func TestAccessorErrors(t *testing.T) {
	m := newExampleModel(t)

	_, err := m.ValueCounts("tres", "N")
	assert.ErrorIs(t, err, ErrUnknownAttribute)

	_, err = m.Domain("tres")
	assert.ErrorIs(t, err, ErrUnknownAttribute)

	_, err = m.ValueCounts("uno", "Q")
	assert.ErrorIs(t, err, ErrOutOfDomain)

	_, err = m.Count("uno", "N", 7)
	assert.ErrorIs(t, err, ErrOutOfDomain)
}

func TestTopValues(t *testing.T) {
	m := newExampleModel(t)

	top, err := m.TopValues("P", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	// uno=2 appears twice under P and never under N
	assert.Equal(t, "uno", top[0].Attribute)
	assert.Equal(t, 2, top[0].Value)
	assert.Equal(t, 2, top[0].Count)
	assert.Equal(t, 0, top[0].RestCount)
	assert.Greater(t, top[0].LogRatio, top[1].LogRatio)

	_, err = m.TopValues("Q", 2)
	assert.ErrorIs(t, err, ErrOutOfDomain)
}

func TestPrintStats(t *testing.T) {
	m := newExampleModel(t)

	var buf bytes.Buffer
	m.PrintStats(&buf)

	out := buf.String()
	assert.Contains(t, out, "Observations: 8")
	assert.Contains(t, out, "Top values for class P")
	assert.Contains(t, out, "Unknown values: reject")
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    UnknownValuePolicy
		wantErr bool
	}{
		{"", PolicyReject, false},
		{"reject", PolicyReject, false},
		{"SKIP", PolicySkip, false},
		{"expand", PolicyReject, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkLearn(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	vectors, labels := randomBatch(r, 1000)
	m, err := NewFrequencyModel(exampleAttributes, exampleDomains, exampleClasses)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Learn(vectors, labels)
	}
}
