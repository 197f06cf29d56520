package learning

import (
	"cmp"
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCountMirror publishes frequency tables to Redis so that other processes can
// inspect training progress. It never feeds counts back into a model.
//
// Layout under KeyPrefix:
//
//	<prefix>:meta                    total, attributes, classes, policy, last_trained
//	<prefix>:classes                 class -> count
//	<prefix>:counts:<attr>:<class>   value -> count
type RedisCountMirror struct {
	client *redis.Client
	config *RedisConfig
}

// RedisConfig holds Redis mirror configuration
type RedisConfig struct {
	RedisURL    string        `json:"redis_url" yaml:"redis_url"`
	KeyPrefix   string        `json:"key_prefix" yaml:"key_prefix"`
	DatabaseNum int           `json:"database_num" yaml:"database_num"`
	KeyTTL      time.Duration `json:"key_ttl" yaml:"key_ttl"`
	BatchSize   int           `json:"batch_size" yaml:"batch_size"`
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		RedisURL:    "redis://localhost:6379",
		KeyPrefix:   "nbayes",
		DatabaseNum: 0,
		KeyTTL:      7 * 24 * time.Hour,
		BatchSize:   500,
	}
}

// MirrorStats is what the mirror currently holds
type MirrorStats struct {
	Total       int            `json:"total"`
	Attributes  int            `json:"attributes"`
	Classes     map[string]int `json:"classes"`
	Policy      string         `json:"policy"`
	LastTrained time.Time      `json:"last_trained"`
}

// NewRedisCountMirror connects to Redis and verifies the connection
func NewRedisCountMirror(ctx context.Context, config *RedisConfig) (*RedisCountMirror, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.DB = config.DatabaseNum
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCountMirror{client: client, config: config}, nil
}

// PublishCounts writes a full snapshot to the mirror in one pipeline.
// Writing absolute values keeps the mirror equal to the model whatever was skipped.
func PublishCounts[V, C cmp.Ordered](ctx context.Context, rm *RedisCountMirror, counts *Counts[V, C]) error {
	if counts.Values == nil {
		return nil
	}

	pipe := rm.client.Pipeline()
	queued := 0
	flush := func() error {
		if queued == 0 {
			return nil
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("publishing counts failed: %w", err)
		}
		queued = 0
		return nil
	}

	classKey := rm.classesKey()
	for ci, c := range counts.Classes {
		pipe.HSet(ctx, classKey, fmt.Sprint(c), counts.ClassCounts[ci])
	}
	rm.expire(ctx, pipe, classKey)

	for a, attr := range counts.Attributes {
		for ci, c := range counts.Classes {
			key := rm.countsKey(attr, fmt.Sprint(c))
			fields := make([]any, 0, 2*len(counts.Domains[a]))
			for vi, v := range counts.Domains[a] {
				fields = append(fields, fmt.Sprint(v), counts.Values[a][ci][vi])
			}
			pipe.HSet(ctx, key, fields...)
			rm.expire(ctx, pipe, key)
			queued++
		}
		if queued >= rm.batchSize() {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	classNames := make([]string, len(counts.Classes))
	for i, c := range counts.Classes {
		classNames[i] = fmt.Sprint(c)
	}
	metaKey := rm.metaKey()
	pipe.HSet(ctx, metaKey,
		"total", counts.Total,
		"attributes", len(counts.Attributes),
		"classes", strings.Join(classNames, ","),
		"policy", counts.Policy.String(),
		"last_trained", time.Now().Unix(),
	)
	rm.expire(ctx, pipe, metaKey)
	queued++

	return flush()
}

func (rm *RedisCountMirror) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if rm.config.KeyTTL > 0 {
		pipe.Expire(ctx, key, rm.config.KeyTTL)
	}
}

func (rm *RedisCountMirror) batchSize() int {
	if rm.config.BatchSize > 0 {
		return rm.config.BatchSize
	}
	return 500
}

// Stats reads totals and class counts back from the mirror
func (rm *RedisCountMirror) Stats(ctx context.Context) (*MirrorStats, error) {
	meta, err := rm.client.HGetAll(ctx, rm.metaKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror meta: %w", err)
	}
	classes, err := rm.client.HGetAll(ctx, rm.classesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror classes: %w", err)
	}

	total, _ := strconv.Atoi(meta["total"])
	attributes, _ := strconv.Atoi(meta["attributes"])
	lastTrained, _ := strconv.ParseInt(meta["last_trained"], 10, 64)

	stats := &MirrorStats{
		Total:      total,
		Attributes: attributes,
		Classes:    make(map[string]int, len(classes)),
		Policy:     meta["policy"],
	}
	if lastTrained > 0 {
		stats.LastTrained = time.Unix(lastTrained, 0)
	}
	for c, n := range classes {
		stats.Classes[c], _ = strconv.Atoi(n)
	}
	return stats, nil
}

// ValueCounts reads value -> count for one attribute and class
func (rm *RedisCountMirror) ValueCounts(ctx context.Context, attribute, class string) (map[string]int, error) {
	raw, err := rm.client.HGetAll(ctx, rm.countsKey(attribute, class)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}
	out := make(map[string]int, len(raw))
	for v, n := range raw {
		out[v], _ = strconv.Atoi(n)
	}
	return out, nil
}

// SortedClasses returns the class names of stats in ascending order
func (s *MirrorStats) SortedClasses() []string {
	names := make([]string, 0, len(s.Classes))
	for c := range s.Classes {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// Reset deletes every key under the mirror prefix
func (rm *RedisCountMirror) Reset(ctx context.Context) error {
	iter := rm.client.Scan(ctx, 0, rm.config.KeyPrefix+":*", 1000).Iterator()

	pipe := rm.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++

		if count >= rm.batchSize() {
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			count = 0
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if count > 0 {
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}

// Close closes the Redis connection
func (rm *RedisCountMirror) Close() error {
	return rm.client.Close()
}

func (rm *RedisCountMirror) metaKey() string {
	return rm.config.KeyPrefix + ":meta"
}

func (rm *RedisCountMirror) classesKey() string {
	return rm.config.KeyPrefix + ":classes"
}

func (rm *RedisCountMirror) countsKey(attribute, class string) string {
	// Hash long attribute names to keep key size manageable
	if len(attribute) > 64 {
		h := sha1.Sum([]byte(attribute))
		attribute = fmt.Sprintf("hash_%x", h)
	}
	return fmt.Sprintf("%s:counts:%s:%s", rm.config.KeyPrefix, attribute, class)
}
