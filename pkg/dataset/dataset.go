package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ErrLengthMismatch is returned when paired sequences differ in length
var ErrLengthMismatch = errors.New("length mismatch")

// Dataset is a matrix of attribute vectors with one label per row
type Dataset struct {
	Vectors [][]int
	Labels  []int
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Width returns the number of attributes per row
func (d *Dataset) Width() int {
	if len(d.Vectors) == 0 {
		return 0
	}
	return len(d.Vectors[0])
}

// Load reads a data file and its class file
func Load(dataPath, classPath string) (*Dataset, error) {
	vectors, labels, err := LoadData(dataPath, classPath)
	if err != nil {
		return nil, err
	}
	return &Dataset{Vectors: vectors, Labels: labels}, nil
}

// LoadData reads one comma-separated record per line from dataPath and the
// whitespace-separated labels on the first line of classPath.
func LoadData(dataPath, classPath string) ([][]int, []int, error) {
	df, err := os.Open(dataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer df.Close()

	vectors, err := ReadRecords(df)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", dataPath, err)
	}

	cf, err := os.Open(classPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open class file: %w", err)
	}
	defer cf.Close()

	labels, err := ReadLabels(cf)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", classPath, err)
	}

	if len(labels) != len(vectors) {
		return nil, nil, fmt.Errorf("%w: %d records but %d labels", ErrLengthMismatch, len(vectors), len(labels))
	}
	return vectors, labels, nil
}

// ReadRecords parses comma-separated integer records, one per line.
// A trailing comma is allowed and blank lines are skipped.
func ReadRecords(r io.Reader) ([][]int, error) {
	var records [][]int

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.Trim(strings.TrimSpace(scanner.Text()), ",")
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		record := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", lineNo, i+1, err)
			}
			record[i] = v
		}

		if len(records) > 0 && len(record) != len(records[0]) {
			return nil, fmt.Errorf("%w: line %d has %d values, want %d", ErrLengthMismatch, lineNo, len(record), len(records[0]))
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadLabels parses the whitespace-separated integer labels on the first line
func ReadLabels(r io.Reader) ([]int, error) {
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}

	fields := strings.Fields(line)
	labels := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i+1, err)
		}
		labels[i] = v
	}
	return labels, nil
}

// LoadVocabulary reads a word list where each line is "<index> <word>"
func LoadVocabulary(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	words, err := ReadVocabulary(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

// ReadVocabulary keeps the second field of every non-blank line
func ReadVocabulary(r io.Reader) ([]string, error) {
	var words []string

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want \"<index> <word>\", got %q", lineNo, scanner.Text())
		}
		words = append(words, fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// ErrorRate returns the fraction of positions where truth and predicted differ
func ErrorRate[C comparable](truth, predicted []C) (float64, error) {
	if len(truth) != len(predicted) {
		return 0, fmt.Errorf("%w: %d true labels but %d predictions", ErrLengthMismatch, len(truth), len(predicted))
	}
	if len(truth) == 0 {
		return 0, nil
	}

	wrong := 0
	for i := range truth {
		if truth[i] != predicted[i] {
			wrong++
		}
	}
	return float64(wrong) / float64(len(truth)), nil
}

// AttributeNames returns positional names x0, x1, ... for width attributes
func AttributeNames(width int) []string {
	names := make([]string, width)
	for i := range names {
		names[i] = "x" + strconv.Itoa(i)
	}
	return names
}

// Sample picks up to n random row indices whose label is class
func (d *Dataset) Sample(r *rand.Rand, class, n int) []int {
	var candidates []int
	for i, label := range d.Labels {
		if label == class {
			candidates = append(candidates, i)
		}
	}
	r.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// Words lists the vocabulary entries whose attribute value is 1 in row
func (d *Dataset) Words(row int, vocabulary []string) []string {
	var words []string
	for i, v := range d.Vectors[row] {
		if v == 1 && i < len(vocabulary) {
			words = append(words, vocabulary[i])
		}
	}
	return words
}

// Column returns the distinct values of attribute i, sorted
func (d *Dataset) Column(i int) []int {
	values := make([]int, 0, len(d.Vectors))
	for _, row := range d.Vectors {
		values = append(values, row[i])
	}
	slices.Sort(values)
	return slices.Compact(values)
}
