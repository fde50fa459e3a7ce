package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	// CardID is scanned by the healthy half of the traffic. When empty
	// every card request targets an unknown card.
	CardID string
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status4xx     int64
	Status429     int64
	Status5xx     int64
}

type request struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	requests := requestsForProfile(cfg.Profile, cfg.CardID, rand.New(rand.NewSource(cfg.Seed)))
	if len(requests) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}
	client := &http.Client{Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var res Result
	jobs := make(chan request, cfg.Concurrency*2)
	var g errgroup.Group
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for job := range jobs {
				status, err := send(ctx, client, cfg.BaseURL, job)
				if err != nil {
					atomic.AddInt64(&res.Failures, 1)
					continue
				}
				atomic.AddInt64(&res.TotalRequests, 1)
				switch {
				case status >= 200 && status < 300:
					atomic.AddInt64(&res.Status2xx, 1)
				case status == http.StatusTooManyRequests:
					atomic.AddInt64(&res.Status429, 1)
					atomic.AddInt64(&res.Status4xx, 1)
				case status >= 400 && status < 500:
					atomic.AddInt64(&res.Status4xx, 1)
				case status >= 500:
					atomic.AddInt64(&res.Status5xx, 1)
				}
			}
			return nil
		})
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			_ = g.Wait()
			return res, nil
		case <-ticker.C:
			select {
			case jobs <- requests[i%len(requests)]:
			case <-ctx.Done():
			}
		}
	}
}

func send(ctx context.Context, client *http.Client, baseURL string, job request) (int, error) {
	var body io.Reader = http.NoBody
	if job.body != nil {
		raw, err := json.Marshal(job.body)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, job.method, strings.TrimRight(baseURL, "/")+job.path, body)
	if err != nil {
		return 0, err
	}
	if job.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func scan(cardID string) request {
	return request{method: http.MethodGet, path: "/api/v1/cards/scan?card=" + url.QueryEscape(cardID)}
}

// Profiles lists the traffic mixes requestsForProfile understands.
var Profiles = []string{"mixed", "scan", "error-heavy"}

func verifyPIN(cardID, pin string) request {
	return request{method: http.MethodPost, path: "/api/v1/cards/verify-pin", body: map[string]string{"id": cardID, "pin": pin}}
}

// requestsForProfile builds a fixed rotation so runs with the same seed
// replay the same traffic.
func requestsForProfile(profile, cardID string, rng *rand.Rand) []request {
	unknown := func() string { return fmt.Sprintf("00000000-0000-4000-8000-%012d", rng.Int63n(1e12)) }
	wrongPIN := func() string { return fmt.Sprintf("%04d", rng.Intn(10000)) }
	known := cardID
	if known == "" {
		known = unknown()
	}

	switch strings.ToLower(profile) {
	case "", "mixed":
		return []request{
			scan(known),
			{method: http.MethodGet, path: "/health/ready"},
			scan(unknown()),
			verifyPIN(known, wrongPIN()),
			{method: http.MethodGet, path: "/health/live"},
		}
	case "scan":
		return []request{scan(known), scan(known), scan(unknown())}
	case "error-heavy":
		return []request{
			scan(unknown()),
			verifyPIN(unknown(), wrongPIN()),
			verifyPIN(known, wrongPIN()),
			{method: http.MethodPost, path: "/api/v1/redemptions/otp", body: map[string]string{"brand": "load"}},
		}
	default:
		return nil
	}
}
