package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/config"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/learning"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/metrics"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/profiler"
)

// Model is the frequency model used for binary word-presence mail data
type Model = learning.FrequencyModel[int, int]

// Results contains the outcome of a train/test evaluation
type Results struct {
	RunID         string  `json:"run_id"`
	TrainSize     int     `json:"train_size"`
	TestSize      int     `json:"test_size"`
	Skipped       int     `json:"skipped"`
	TrainingError float64 `json:"training_error_pct"`
	TestError     float64 `json:"test_error_pct"`
}

// SpamFilter trains a Naive Bayes model on attribute vectors and labels mail.
// The model is created on the first Train call, once the vector width is known.
type SpamFilter struct {
	mu sync.Mutex

	config     *config.Config
	logger     *slog.Logger
	model      *Model
	classifier *learning.Classifier[int, int]
	policy     learning.UnknownValuePolicy
	mirror     *learning.RedisCountMirror
	metrics    *metrics.Metrics
	profiler   *profiler.Profiler
	runID      string
}

// NewSpamFilter creates a filter from configuration
func NewSpamFilter(cfg *config.Config, logger *slog.Logger) (*SpamFilter, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	policy, err := learning.ParsePolicy(cfg.Learning.UnknownValues)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	return &SpamFilter{
		config:   cfg,
		logger:   logger.With("run_id", runID),
		policy:   policy,
		metrics:  metrics.New(cfg.Metrics.Namespace),
		profiler: profiler.NewProfiler(),
		runID:    runID,
	}, nil
}

// RedisConfig converts the configuration into mirror settings
func RedisConfig(cfg *config.Config) *learning.RedisConfig {
	return &learning.RedisConfig{
		RedisURL:    cfg.Redis.RedisURL,
		KeyPrefix:   cfg.Redis.KeyPrefix,
		DatabaseNum: cfg.Redis.DatabaseNum,
		KeyTTL:      cfg.RedisKeyTTL(),
		BatchSize:   cfg.Redis.BatchSize,
	}
}

// AttachMirror publishes counts to mirror after every Train call
func (sf *SpamFilter) AttachMirror(mirror *learning.RedisCountMirror) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.mirror = mirror
}

// RunID identifies this filter's run in logs
func (sf *SpamFilter) RunID() string {
	return sf.runID
}

// Model returns the underlying model, nil before the first Train
func (sf *SpamFilter) Model() *Model {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.model
}

// Metrics returns the run metrics
func (sf *SpamFilter) Metrics() *metrics.Metrics {
	return sf.metrics
}

// Profiler returns the phase profiler
func (sf *SpamFilter) Profiler() *profiler.Profiler {
	return sf.profiler
}

// ensureModel creates the model for the width of ds; the caller holds mu.
// When ds is fed in several batches, domains and classes not fixed by the
// configuration are taken from all of ds so later batches fit the schema.
func (sf *SpamFilter) ensureModel(ds *dataset.Dataset, batched bool) error {
	width := ds.Width()
	if sf.model != nil {
		if got := len(sf.model.Attributes()); got != width {
			return fmt.Errorf("%w: data has %d attributes, model has %d", learning.ErrMalformedInput, width, got)
		}
		return nil
	}

	names := dataset.AttributeNames(width)

	var domains map[string][]int
	switch {
	case len(sf.config.Learning.Domain) > 0:
		domains = make(map[string][]int, width)
		for _, name := range names {
			domains[name] = sf.config.Learning.Domain
		}
	case batched:
		domains = make(map[string][]int, width)
		for i, name := range names {
			domains[name] = ds.Column(i)
		}
	}

	classes := sf.config.Learning.Classes
	if len(classes) == 0 && batched {
		classes = ds.Labels
	}

	model, err := learning.NewFrequencyModel(names, domains, classes)
	if err != nil {
		return err
	}
	model.SetPolicy(sf.policy)

	sf.model = model
	sf.classifier = learning.NewClassifier[int, int](model, sf.config.Learning.MissingValue)
	return nil
}

// Train adds a dataset to the model, in batches when learning.batch_size is set
func (sf *SpamFilter) Train(ctx context.Context, ds *dataset.Dataset) (learning.LearnResult, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	var total learning.LearnResult
	if ds.Len() == 0 {
		return total, nil
	}
	size := sf.config.Learning.BatchSize
	if size <= 0 {
		size = ds.Len()
	}

	if err := sf.ensureModel(ds, size < ds.Len()); err != nil {
		sf.metrics.RecordError(err)
		return total, err
	}

	timer := sf.profiler.Start(profiler.PhaseLearn)
	for start := 0; start < ds.Len(); start += size {
		end := min(start+size, ds.Len())

		res, err := sf.model.LearnBatch(ds.Vectors[start:end], ds.Labels[start:end])
		if err != nil {
			timer.Stop(total.Applied)
			sf.metrics.RecordError(err)
			sf.logger.Error("learn failed", "first_row", start, "applied_so_far", total.Applied, "error", err)
			return total, fmt.Errorf("learning rows %d-%d: %w", start, end-1, err)
		}

		total.Applied += res.Applied
		total.Skipped += res.Skipped
		sf.metrics.ObservationsLearned.Add(float64(res.Applied))
		sf.metrics.ObservationsSkipped.Add(float64(res.Skipped))
		if res.Skipped > 0 {
			sf.logger.Warn("skipped observations with unknown values", "first_row", start, "skipped", res.Skipped)
		}
	}
	d := timer.Stop(total.Applied)
	sf.metrics.PhaseDurationSeconds.WithLabelValues(profiler.PhaseLearn).Set(d.Seconds())

	sf.logger.Info("trained",
		"applied", total.Applied,
		"skipped", total.Skipped,
		"observations", sf.model.Total(),
		"duration", d,
	)

	if sf.mirror != nil {
		err := sf.profiler.Time(profiler.PhaseMirror, total.Applied, func() error {
			return learning.PublishCounts(ctx, sf.mirror, sf.model.Snapshot())
		})
		if err != nil {
			sf.metrics.RecordError(err)
			return total, fmt.Errorf("mirror: %w", err)
		}
		sf.logger.Debug("counts published to redis")
	}

	return total, nil
}

// Classify labels vectors with the trained model
func (sf *SpamFilter) Classify(vectors [][]int) ([]int, error) {
	sf.mu.Lock()
	classifier := sf.classifier
	sf.mu.Unlock()

	if classifier == nil {
		sf.metrics.RecordError(learning.ErrEmptyModel)
		return nil, learning.ErrEmptyModel
	}

	timer := sf.profiler.Start(profiler.PhaseClassify)
	labels, err := classifier.Classify(vectors)
	d := timer.Stop(len(labels))
	if err != nil {
		sf.metrics.RecordError(err)
		return nil, err
	}

	sf.metrics.ItemsClassified.Add(float64(len(labels)))
	sf.metrics.PhaseDurationSeconds.WithLabelValues(profiler.PhaseClassify).Set(d.Seconds())
	return labels, nil
}

// Scores returns per-class scores for one vector
func (sf *SpamFilter) Scores(vector []int) ([]learning.ClassScore[int], error) {
	sf.mu.Lock()
	classifier := sf.classifier
	sf.mu.Unlock()

	if classifier == nil {
		return nil, learning.ErrEmptyModel
	}
	return classifier.Scores(vector)
}

// ErrorPercent classifies ds and returns the percentage of wrong labels
func (sf *SpamFilter) ErrorPercent(ds *dataset.Dataset) (float64, error) {
	predicted, err := sf.Classify(ds.Vectors)
	if err != nil {
		return 0, err
	}
	rate, err := dataset.ErrorRate(ds.Labels, predicted)
	if err != nil {
		return 0, err
	}
	return rate * 100, nil
}

// Evaluate trains on train and reports the training and test error percentages
func (sf *SpamFilter) Evaluate(ctx context.Context, train, test *dataset.Dataset) (*Results, error) {
	if train == nil || train.Len() == 0 {
		return nil, errors.New("training set is empty")
	}

	res, err := sf.Train(ctx, train)
	if err != nil {
		return nil, err
	}

	results := &Results{
		RunID:     sf.runID,
		TrainSize: train.Len(),
		Skipped:   res.Skipped,
	}

	if results.TrainingError, err = sf.ErrorPercent(train); err != nil {
		return nil, fmt.Errorf("classifying training set: %w", err)
	}
	sf.metrics.ErrorRate.WithLabelValues("train").Set(results.TrainingError / 100)

	if test != nil && test.Len() > 0 {
		results.TestSize = test.Len()
		if results.TestError, err = sf.ErrorPercent(test); err != nil {
			return nil, fmt.Errorf("classifying test set: %w", err)
		}
		sf.metrics.ErrorRate.WithLabelValues("test").Set(results.TestError / 100)
	}

	sf.logger.Info("evaluated",
		"train_size", results.TrainSize,
		"test_size", results.TestSize,
		"training_error_pct", results.TrainingError,
		"test_error_pct", results.TestError,
	)
	return results, nil
}

// WriteMetrics writes the textfile when metrics are enabled
func (sf *SpamFilter) WriteMetrics() error {
	if !sf.config.Metrics.Enabled {
		return nil
	}
	if err := sf.metrics.WriteTextfile(sf.config.Metrics.Textfile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	sf.logger.Debug("metrics written", "path", sf.config.Metrics.Textfile)
	return nil
}
