package loadgen

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRunClassifiesResponses(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method+" "+r.URL.Path]++
		mu.Unlock()
		switch {
		case strings.HasPrefix(r.URL.Path, "/health"):
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/v1/cards/verify-pin":
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected json body on verify-pin")
			}
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	res, err := Run(context.Background(), Config{
		BaseURL:     srv.URL,
		Profile:     "mixed",
		Duration:    400 * time.Millisecond,
		RPS:         50,
		Concurrency: 2,
		Seed:        7,
		CardID:      "card-1",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TotalRequests == 0 {
		t.Fatalf("expected traffic, got %+v", res)
	}
	if res.Status2xx == 0 || res.Status4xx == 0 {
		t.Fatalf("expected both 2xx and 4xx, got %+v", res)
	}
	if res.Status5xx != 0 {
		t.Fatalf("unexpected 5xx: %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen["GET /api/v1/cards/scan"] == 0 {
		t.Fatalf("expected scan requests, saw %v", seen)
	}
}

func TestRunRejectsUnknownProfile(t *testing.T) {
	if _, err := Run(context.Background(), Config{Profile: "nope"}); err == nil {
		t.Fatal("expected unknown profile error")
	}
}

func TestRequestsForProfileIsSeeded(t *testing.T) {
	a := requestsForProfile("error-heavy", "", rand.New(rand.NewSource(3)))
	b := requestsForProfile("error-heavy", "", rand.New(rand.NewSource(3)))
	if len(a) != len(b) || len(a) == 0 {
		t.Fatalf("unexpected rotation lengths %d %d", len(a), len(b))
	}
	for i := range a {
		if a[i].method != b[i].method || a[i].path != b[i].path {
			t.Fatalf("rotation differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestValidateRejectsBadFlags(t *testing.T) {
	good := Config{BaseURL: "http://localhost:8080", Profile: "Scan"}
	if err := validate(good); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	bad := []Config{
		{BaseURL: "http://localhost:8080", Profile: "burst"},
		{BaseURL: "localhost:8080", Profile: "mixed"},
		{BaseURL: "http://localhost:8080", Profile: "mixed", RPS: -1},
	}
	for _, cfg := range bad {
		if err := validate(cfg); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}

func TestSummarizeListsEveryCounter(t *testing.T) {
	lines := summarize(Result{TotalRequests: 10, Status2xx: 7, Status4xx: 2, Status429: 1})
	if len(lines) != 6 || lines[0] != "total_requests=10" || lines[4] != "status_429=1" {
		t.Fatalf("unexpected summary: %v", lines)
	}
}
