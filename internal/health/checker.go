package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whitecard/whitecard-backend/internal/observability"
)

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner runs the readiness checks concurrently, each under its own
// timeout. Results keep the registration order.
type ProbeRunner struct {
	checkers    []Checker
	timeout     time.Duration
	gracePeriod time.Duration
	startedAt   time.Time
	now         func() time.Time
}

func NewProbeRunner(timeout, gracePeriod time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	active := make([]Checker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			active = append(active, c)
		}
	}
	return &ProbeRunner{
		checkers:    active,
		timeout:     timeout,
		gracePeriod: gracePeriod,
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

func (r *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	if r == nil {
		return true, nil
	}
	if r.gracePeriod > 0 && r.now().Sub(r.startedAt) < r.gracePeriod {
		observability.RecordHealthCheckResult(ctx, "startup_grace", "unready")
		return false, []CheckResult{{Name: "startup_grace", Healthy: false, Error: "startup grace period active"}}
	}

	results := make([]CheckResult, len(r.checkers))
	var g errgroup.Group
	for i, c := range r.checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			start := r.now()
			res := c.Check(checkCtx)
			elapsed := r.now().Sub(start)
			res.LatencyMS = elapsed.Milliseconds()
			if res.Healthy && checkCtx.Err() != nil {
				res.Healthy = false
				res.Error = checkCtx.Err().Error()
			}
			outcome := "healthy"
			if !res.Healthy {
				outcome = "unhealthy"
			}
			observability.RecordHealthCheckResult(ctx, res.Name, outcome)
			observability.RecordHealthCheckDuration(ctx, res.Name, elapsed)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	allHealthy := true
	for _, res := range results {
		if !res.Healthy {
			allHealthy = false
		}
	}
	return allHealthy, results
}
