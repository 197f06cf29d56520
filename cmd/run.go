package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/config"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/filter"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/learning"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/logging"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/profiler"
)

// runEnv holds what every data command needs
type runEnv struct {
	cfg    *config.Config
	log    *logging.Logger
	filter *filter.SpamFilter
	mirror *learning.RedisCountMirror
}

// setupRun loads configuration and builds the logger, filter and optional Redis mirror
func setupRun(ctx context.Context) (*runEnv, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	sf, err := filter.NewSpamFilter(cfg, log.Logger)
	if err != nil {
		log.Close()
		return nil, err
	}

	env := &runEnv{cfg: cfg, log: log, filter: sf}

	if cfg.Redis.Enabled {
		mirror, err := learning.NewRedisCountMirror(ctx, filter.RedisConfig(cfg))
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to connect to Redis mirror: %w", err)
		}
		sf.AttachMirror(mirror)
		env.mirror = mirror
		log.Debug("redis mirror attached", "url", cfg.Redis.RedisURL, "prefix", cfg.Redis.KeyPrefix)
	}

	return env, nil
}

// load reads a data/class file pair as the load phase
func (e *runEnv) load(dataPath, classPath string) (*dataset.Dataset, error) {
	var ds *dataset.Dataset
	err := e.filter.Profiler().Time(profiler.PhaseLoad, 0, func() error {
		var err error
		ds, err = dataset.Load(dataPath, classPath)
		return err
	})
	if err != nil {
		e.filter.Metrics().RecordError(err)
		return nil, err
	}
	e.log.Debug("dataset loaded", "data", dataPath, "classes", classPath, "rows", ds.Len(), "width", ds.Width())
	return ds, nil
}

// Close writes metrics and releases the mirror and the log file
func (e *runEnv) Close() error {
	var errs []error
	if err := e.filter.WriteMetrics(); err != nil {
		errs = append(errs, err)
	}
	if e.mirror != nil {
		if err := e.mirror.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.log.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// orDefault returns flag unless it is empty
func orDefault(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

// attributeIndex parses a positional attribute name such as "x12"
func attributeIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "x")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	return i, err == nil
}
