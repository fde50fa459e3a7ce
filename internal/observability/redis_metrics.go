package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisInstrumentationOnce sync.Once

// RedisKeyspace names a key prefix so command metrics can be split by the
// subsystem that owns the keys (OTP records, rate limit windows).
type RedisKeyspace struct {
	Name   string
	Prefix string
}

// InstrumentRedisClient installs the command metrics hook once per process.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger, keyspaces ...RedisKeyspace) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	redisInstrumentationOnce.Do(func() {
		hook, err := newRedisMetricsHook(otel.Meter(meterName), client, keyspaces)
		if err != nil {
			logger.Warn("redis observability instrumentation disabled", "error", err)
			return
		}
		client.AddHook(hook)
		logger.Info("redis observability instrumentation enabled", "keyspaces", len(keyspaces))
	})
}

type redisMetricsHook struct {
	cmdTotal       metric.Int64Counter
	cmdErrors      metric.Int64Counter
	cmdLatency     metric.Float64Histogram
	keyspaceHits   metric.Int64Counter
	keyspaceMisses metric.Int64Counter
	keyspaces      []RedisKeyspace

	cmdTotalAtomic  atomic.Int64
	cmdErrorAtomic  atomic.Int64
	poolStatsReader func() *redis.PoolStats
}

func newRedisMetricsHook(meter metric.Meter, client redis.UniversalClient, keyspaces []RedisKeyspace) (*redisMetricsHook, error) {
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	hook := &redisMetricsHook{
		cmdTotal:       counter("redis.command.total", "Total number of Redis commands executed"),
		cmdErrors:      counter("redis.command.errors", "Total number of Redis command errors"),
		keyspaceHits:   counter("redis.keyspace.hits", "Redis lookups that found a record"),
		keyspaceMisses: counter("redis.keyspace.misses", "Redis lookups that found nothing"),
		keyspaces:      keyspaces,
		poolStatsReader: func() *redis.PoolStats {
			return client.PoolStats()
		},
	}
	latency, err := meter.Float64Histogram("redis.command.duration", metric.WithUnit("s"), metric.WithDescription("Redis command latency in seconds"))
	errs = append(errs, err)
	hook.cmdLatency = latency

	saturation, err := meter.Float64ObservableGauge("redis.pool.saturation", metric.WithUnit("1"), metric.WithDescription("Redis pool saturation ratio (used_conns / total_conns)"))
	errs = append(errs, err)
	errorRate, err := meter.Float64ObservableGauge("redis.command.error_rate", metric.WithUnit("1"), metric.WithDescription("Redis command error rate (errors / total commands)"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		if stats := hook.poolStatsReader(); stats != nil && stats.TotalConns > 0 {
			used := stats.TotalConns - stats.IdleConns
			observer.ObserveFloat64(saturation, clampRatio(float64(used)/float64(stats.TotalConns)))
		}
		if total := hook.cmdTotalAtomic.Load(); total > 0 {
			observer.ObserveFloat64(errorRate, clampRatio(float64(hook.cmdErrorAtomic.Load())/float64(total)))
		}
		return nil
	}, saturation, errorRate)
	if err != nil {
		return nil, err
	}
	return hook, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, cmd.Err(), time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.cmdLatency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("command", "pipeline"),
			attribute.String("keyspace", "mixed"),
			attribute.String("status", redisCommandStatus(err)),
		))
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err(), 0)
		}
		return err
	}
}

// observe records one command. A zero duration skips the latency histogram
// for commands already timed as part of a pipeline.
func (h *redisMetricsHook) observe(ctx context.Context, cmd redis.Cmder, err error, duration time.Duration) {
	command := strings.ToLower(cmd.Name())
	keyspace := h.keyspaceOf(cmd)
	status := redisCommandStatus(err)

	h.cmdTotalAtomic.Add(1)
	h.cmdTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("keyspace", keyspace),
		attribute.String("status", status),
	))
	if err != nil && err != redis.Nil {
		h.cmdErrorAtomic.Add(1)
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("error_type", classifyRedisError(err)),
		))
	}
	if duration > 0 {
		h.cmdLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("keyspace", keyspace),
			attribute.String("status", status),
		))
	}

	hit, ok := classifyLookup(cmd)
	if !ok {
		return
	}
	attrs := metric.WithAttributes(attribute.String("keyspace", keyspace))
	if hit {
		h.keyspaceHits.Add(ctx, 1, attrs)
	} else {
		h.keyspaceMisses.Add(ctx, 1, attrs)
	}
}

func (h *redisMetricsHook) keyspaceOf(cmd redis.Cmder) string {
	key := commandKey(cmd)
	if key == "" {
		return "none"
	}
	for _, ks := range h.keyspaces {
		if strings.HasPrefix(key, ks.Prefix) {
			return ks.Name
		}
	}
	return "other"
}

// commandKey returns the first key a command touches. Scripts carry their
// keys after the script body and key count.
func commandKey(cmd redis.Cmder) string {
	args := cmd.Args()
	idx := 1
	switch strings.ToLower(cmd.Name()) {
	case "eval", "evalsha", "eval_ro", "evalsha_ro":
		idx = 3
	case "ping", "info", "select", "hello", "client":
		return ""
	}
	if len(args) <= idx {
		return ""
	}
	key, _ := args[idx].(string)
	return key
}

func redisCommandStatus(err error) string {
	switch err {
	case nil:
		return "success"
	case redis.Nil:
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "connection"):
		return "connection"
	default:
		return "other"
	}
}

// classifyLookup reports whether a read command found its key.
func classifyLookup(cmd redis.Cmder) (hit bool, ok bool) {
	switch c := cmd.(type) {
	case *redis.MapStringStringCmd:
		if c.Err() != nil {
			return false, false
		}
		return len(c.Val()) > 0, true
	case *redis.StringCmd:
		if strings.ToLower(cmd.Name()) != "get" {
			return false, false
		}
		switch c.Err() {
		case nil:
			return true, true
		case redis.Nil:
			return false, true
		default:
			return false, false
		}
	case *redis.IntCmd:
		if strings.ToLower(cmd.Name()) != "exists" || c.Err() != nil {
			return false, false
		}
		return c.Val() > 0, true
	default:
		return false, false
	}
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
