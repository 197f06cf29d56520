package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/filter"
)

var (
	benchmarkTrainData    string
	benchmarkTrainClasses string
	benchmarkData         string
	benchmarkClasses      string
	benchmarkRuns         int
	benchmarkConcurrent   int
	benchmarkProfile      bool
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Performance benchmark and analysis",
	Long: `Train once, then classify every mail of a labeled dataset one at a time with
a pool of workers and report latency percentiles, throughput and error rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := setupRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		train, err := env.load(
			orDefault(benchmarkTrainData, env.cfg.Data.TrainData),
			orDefault(benchmarkTrainClasses, env.cfg.Data.TrainClasses),
		)
		if err != nil {
			return fmt.Errorf("failed to load training data: %w", err)
		}
		test, err := env.load(
			orDefault(benchmarkData, env.cfg.Data.TestData),
			orDefault(benchmarkClasses, env.cfg.Data.TestClasses),
		)
		if err != nil {
			return fmt.Errorf("failed to load benchmark data: %w", err)
		}

		fmt.Printf("🚀 nbayes Performance Benchmark\n")
		fmt.Printf("📚 Training mails: %d\n", train.Len())
		fmt.Printf("📧 Benchmark mails: %d\n", test.Len())
		fmt.Printf("🔄 Benchmark runs: %d\n", benchmarkRuns)
		fmt.Printf("⚡ Concurrent workers: %d\n", benchmarkConcurrent)
		fmt.Printf("\n")

		trainStart := time.Now()
		if _, err := env.filter.Train(ctx, train); err != nil {
			return fmt.Errorf("training failed: %w", err)
		}
		fmt.Printf("🧠 Trained in %v\n\n", time.Since(trainStart))

		b := NewBenchmark(env.filter)
		result := b.Run(ctx, test, benchmarkRuns, benchmarkConcurrent)
		displayBenchmarkResults(result)

		if benchmarkProfile {
			env.filter.Profiler().PrintReport(os.Stdout)
		}
		return nil
	},
}

// BenchmarkResult contains performance metrics
type BenchmarkResult struct {
	TotalMails     int
	TotalTime      time.Duration
	AvgTimePerMail float64 // ms
	MinTime        time.Duration
	MaxTime        time.Duration
	MedianTime     time.Duration
	P95Time        time.Duration
	P99Time        time.Duration
	MailsPerSecond float64

	// Classification results
	SpamDetected int
	HamDetected  int
	Mislabeled   int
	ErrorRate    float64 // percent of classified mails

	// Individual mail times
	MailTimes []time.Duration

	// Failed classify calls
	Errors int
}

// Benchmark handles performance testing
type Benchmark struct {
	filter *filter.SpamFilter
}

// NewBenchmark creates a new benchmark instance over a trained filter
func NewBenchmark(sf *filter.SpamFilter) *Benchmark {
	return &Benchmark{filter: sf}
}

// Run classifies every mail of ds runs times using concurrent workers
func (b *Benchmark) Run(ctx context.Context, ds *dataset.Dataset, runs int, concurrent int) *BenchmarkResult {
	result := &BenchmarkResult{
		TotalMails: ds.Len() * runs,
		MailTimes:  make([]time.Duration, 0, ds.Len()*runs),
	}
	if concurrent < 1 {
		concurrent = 1
	}

	fmt.Printf("🏃 Running benchmark...\n")

	var mu sync.Mutex
	var wg sync.WaitGroup

	// Channel to control concurrency
	semaphore := make(chan struct{}, concurrent)

	start := time.Now()

loop:
	for run := 0; run < runs; run++ {
		for row := range ds.Vectors {
			if ctx.Err() != nil {
				break loop
			}
			wg.Add(1)

			go func(row int) {
				defer wg.Done()

				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				mailStart := time.Now()
				labels, err := b.filter.Classify(ds.Vectors[row : row+1])
				mailDuration := time.Since(mailStart)

				mu.Lock()
				defer mu.Unlock()
				result.MailTimes = append(result.MailTimes, mailDuration)

				if err != nil {
					result.Errors++
					return
				}
				if labels[0] == 1 {
					result.SpamDetected++
				} else {
					result.HamDetected++
				}
				if labels[0] != ds.Labels[row] {
					result.Mislabeled++
				}
			}(row)
		}
	}

	wg.Wait()
	result.TotalTime = time.Since(start)

	calculateStatistics(result)
	return result
}

// calculateStatistics computes performance statistics
func calculateStatistics(result *BenchmarkResult) {
	if len(result.MailTimes) == 0 {
		return
	}

	// Sort times for percentile calculations
	times := make([]time.Duration, len(result.MailTimes))
	copy(times, result.MailTimes)
	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	var totalNanos int64
	for _, t := range times {
		totalNanos += t.Nanoseconds()
	}

	result.AvgTimePerMail = float64(totalNanos) / float64(len(times)) / 1e6
	result.MinTime = times[0]
	result.MaxTime = times[len(times)-1]

	result.MedianTime = times[len(times)/2]
	result.P95Time = times[int(float64(len(times))*0.95)]
	result.P99Time = times[int(float64(len(times))*0.99)]

	if result.TotalTime > 0 {
		result.MailsPerSecond = float64(len(times)) / result.TotalTime.Seconds()
	}

	if classified := len(times) - result.Errors; classified > 0 {
		result.ErrorRate = float64(result.Mislabeled) / float64(classified) * 100
	}
}

// displayBenchmarkResults shows formatted benchmark results
func displayBenchmarkResults(result *BenchmarkResult) {
	fmt.Printf("📊 Benchmark Results\n")
	fmt.Printf("═══════════════════════════════════════\n\n")

	fmt.Printf("⚡ Performance Metrics:\n")
	fmt.Printf("  Total mails processed: %d\n", result.TotalMails)
	fmt.Printf("  Total time: %v\n", result.TotalTime)
	fmt.Printf("  Average time per mail: %.3f ms\n", result.AvgTimePerMail)
	fmt.Printf("  Mails per second: %.0f\n", result.MailsPerSecond)
	fmt.Printf("\n")

	fmt.Printf("📈 Time Distribution:\n")
	fmt.Printf("  Min time: %.3f ms\n", float64(result.MinTime.Nanoseconds())/1e6)
	fmt.Printf("  Max time: %.3f ms\n", float64(result.MaxTime.Nanoseconds())/1e6)
	fmt.Printf("  Median time: %.3f ms\n", float64(result.MedianTime.Nanoseconds())/1e6)
	fmt.Printf("  95th percentile: %.3f ms\n", float64(result.P95Time.Nanoseconds())/1e6)
	fmt.Printf("  99th percentile: %.3f ms\n", float64(result.P99Time.Nanoseconds())/1e6)
	fmt.Printf("\n")

	fmt.Printf("🎯 Classification Results:\n")
	fmt.Printf("  Spam detected: %d\n", result.SpamDetected)
	fmt.Printf("  Ham detected: %d\n", result.HamDetected)
	fmt.Printf("  Mislabeled: %d (%.2f%%)\n", result.Mislabeled, result.ErrorRate)
	if result.Errors > 0 {
		fmt.Printf("  Failed: %d\n", result.Errors)
	}
	fmt.Printf("\n")
}

func init() {
	benchmarkCmd.Flags().StringVar(&benchmarkTrainData, "train-data", "", "Training data file (default from config)")
	benchmarkCmd.Flags().StringVar(&benchmarkTrainClasses, "train-classes", "", "Training class file (default from config)")
	benchmarkCmd.Flags().StringVarP(&benchmarkData, "data", "d", "", "Labeled data to classify (default: test data from config)")
	benchmarkCmd.Flags().StringVar(&benchmarkClasses, "classes", "", "Class file for --data (default: test classes from config)")
	benchmarkCmd.Flags().IntVarP(&benchmarkRuns, "runs", "r", 3, "Number of benchmark runs")
	benchmarkCmd.Flags().IntVarP(&benchmarkConcurrent, "concurrent", "j", 1, "Number of concurrent workers")
	benchmarkCmd.Flags().BoolVar(&benchmarkProfile, "profile", false, "Print phase timings")
}
