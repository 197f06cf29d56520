package filter

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/config"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/learning"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/profiler"
)

// Spam rows mention "free" (x0), ham rows mention "meeting" (x1)
func mailData() *dataset.Dataset {
	return &dataset.Dataset{
		Vectors: [][]int{
			{1, 0, 1}, {1, 0, 0}, {1, 1, 1}, {1, 0, 1},
			{0, 1, 0}, {0, 1, 1}, {0, 1, 0}, {1, 1, 0},
		},
		Labels: []int{1, 1, 1, 1, 0, 0, 0, 0},
	}
}

func newTestFilter(t *testing.T, mutate func(*config.Config)) *SpamFilter {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	sf, err := NewSpamFilter(cfg, nil)
	require.NoError(t, err)
	return sf
}

func TestNewSpamFilter(t *testing.T) {
	sf, err := NewSpamFilter(nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sf.RunID())
	assert.Nil(t, sf.Model())

	cfg := config.DefaultConfig()
	cfg.Learning.UnknownValues = "grow"
	_, err = NewSpamFilter(cfg, nil)
	assert.Error(t, err)
}

func TestTrainAndClassify(t *testing.T) {
	sf := newTestFilter(t, nil)

	res, err := sf.Train(context.Background(), mailData())
	require.NoError(t, err)
	assert.Equal(t, 8, res.Applied)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 8, sf.Model().Total())
	assert.Equal(t, []string{"x0", "x1", "x2"}, sf.Model().Attributes())

	labels, err := sf.Classify([][]int{{1, 0, 0}, {0, 1, 0}, {-1, -1, -1}})
	require.NoError(t, err)
	assert.Equal(t, 1, labels[0])
	assert.Equal(t, 0, labels[1])
	// All missing: equal priors, tie goes to the smallest class
	assert.Equal(t, 0, labels[2])

	assert.Equal(t, 3.0, testutil.ToFloat64(sf.Metrics().ItemsClassified))
	assert.Equal(t, 8.0, testutil.ToFloat64(sf.Metrics().ObservationsLearned))
}

func TestClassifyBeforeTrain(t *testing.T) {
	sf := newTestFilter(t, nil)

	_, err := sf.Classify([][]int{{1, 0, 0}})
	assert.ErrorIs(t, err, learning.ErrEmptyModel)

	_, err = sf.Scores([]int{1, 0, 0})
	assert.ErrorIs(t, err, learning.ErrEmptyModel)
}

func TestTrainInBatchesMatchesSingleBatch(t *testing.T) {
	whole := newTestFilter(t, nil)
	batched := newTestFilter(t, func(cfg *config.Config) { cfg.Learning.BatchSize = 3 })

	_, err := whole.Train(context.Background(), mailData())
	require.NoError(t, err)
	_, err = batched.Train(context.Background(), mailData())
	require.NoError(t, err)

	assert.Equal(t, whole.Model().Snapshot(), batched.Model().Snapshot())
	assert.Equal(t, 8, batched.Profiler().GetStats(profiler.PhaseLearn).Items)
}

func TestTrainWidthMismatch(t *testing.T) {
	sf := newTestFilter(t, nil)
	_, err := sf.Train(context.Background(), mailData())
	require.NoError(t, err)

	_, err = sf.Train(context.Background(), &dataset.Dataset{Vectors: [][]int{{1, 0}}, Labels: []int{1}})
	assert.ErrorIs(t, err, learning.ErrMalformedInput)
	assert.Equal(t, 8, sf.Model().Total())
}

func TestTrainUnknownValues(t *testing.T) {
	extra := &dataset.Dataset{Vectors: [][]int{{2, 0, 0}, {1, 0, 0}}, Labels: []int{1, 1}}

	t.Run("reject", func(t *testing.T) {
		sf := newTestFilter(t, nil)
		_, err := sf.Train(context.Background(), mailData())
		require.NoError(t, err)

		_, err = sf.Train(context.Background(), extra)
		assert.ErrorIs(t, err, learning.ErrOutOfDomain)
		assert.Equal(t, 8, sf.Model().Total())
		assert.Equal(t, 1.0, testutil.ToFloat64(sf.Metrics().Errors.WithLabelValues("out_of_domain")))
	})

	t.Run("skip", func(t *testing.T) {
		sf := newTestFilter(t, func(cfg *config.Config) { cfg.Learning.UnknownValues = "skip" })
		_, err := sf.Train(context.Background(), mailData())
		require.NoError(t, err)

		res, err := sf.Train(context.Background(), extra)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Applied)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 9, sf.Model().Total())
		assert.Equal(t, 1.0, testutil.ToFloat64(sf.Metrics().ObservationsSkipped))
	})
}

func TestExplicitDomainAndClasses(t *testing.T) {
	sf := newTestFilter(t, func(cfg *config.Config) {
		cfg.Learning.Domain = []int{0, 1}
		cfg.Learning.Classes = []int{0, 1, 2}
	})

	_, err := sf.Train(context.Background(), mailData())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, sf.Model().Classes())

	labels, err := sf.Classify([][]int{{1, 0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, labels)
}

func TestEvaluate(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.DefaultConfig()
	sf, err := NewSpamFilter(cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)

	test := &dataset.Dataset{
		Vectors: [][]int{{1, 0, 0}, {0, 1, 0}, {0, 1, 1}},
		Labels:  []int{1, 0, 1},
	}

	results, err := sf.Evaluate(context.Background(), mailData(), test)
	require.NoError(t, err)
	assert.Equal(t, sf.RunID(), results.RunID)
	assert.Equal(t, 8, results.TrainSize)
	assert.Equal(t, 3, results.TestSize)
	assert.GreaterOrEqual(t, results.TrainingError, 0.0)
	assert.LessOrEqual(t, results.TrainingError, 100.0)
	assert.InDelta(t, 100.0/3, results.TestError, 1e-9)

	assert.InDelta(t, results.TestError/100, testutil.ToFloat64(sf.Metrics().ErrorRate.WithLabelValues("test")), 1e-12)
	assert.Contains(t, logs.String(), "run_id="+sf.RunID())
	assert.Contains(t, logs.String(), "evaluated")
}

func TestEvaluateWithoutTestSet(t *testing.T) {
	sf := newTestFilter(t, nil)

	results, err := sf.Evaluate(context.Background(), mailData(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, results.TestSize)

	_, err = newTestFilter(t, nil).Evaluate(context.Background(), &dataset.Dataset{}, nil)
	assert.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nbayes.prom")
	sf := newTestFilter(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = path
	})
	_, err := sf.Train(context.Background(), mailData())
	require.NoError(t, err)
	require.NoError(t, sf.WriteMetrics())

	got, err := testutil.GatherAndCount(sf.Metrics().Registry(), "nbayes_observations_learned_total")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	disabled := newTestFilter(t, nil)
	assert.NoError(t, disabled.WriteMetrics())
}

func TestRedisConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.KeyPrefix = "mail"
	rc := RedisConfig(cfg)
	assert.Equal(t, "mail", rc.KeyPrefix)
	assert.Equal(t, "redis://localhost:6379", rc.RedisURL)
	assert.Equal(t, 168*time.Hour, rc.KeyTTL)
}
