// Package bench repeats the order lifecycle with a pool of workers and
// summarizes latency and failures.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/nazeru/shopctl-go/internal/routine"
	"github.com/nazeru/shopctl-go/internal/shop/client"
)

type Result struct {
	Timestamp          string         `json:"timestamp"`
	CatalogURL         string         `json:"catalog_url"`
	Runs               int            `json:"runs"`
	Concurrency        int            `json:"concurrency"`
	TransitionsPerRun  int            `json:"transitions_per_run"`
	SuccessfulRuns     int            `json:"successful_runs"`
	FailedRuns         int            `json:"failed_runs"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRunsPerS float64        `json:"throughput_runs_per_s"`
	StatusCounts       map[string]int `json:"status_counts"`
	ErrorClasses       map[string]int `json:"error_classes"`
	FirstError         string         `json:"first_error"`
}

type Options struct {
	Total       int
	Concurrency int
	CatalogURL  string
	Lifecycle   routine.LifecycleInput
}

type metrics struct {
	mu           sync.Mutex
	success      int
	errors       int
	total        time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latenciesMs  []float64
	statusCounts map[string]int
	errorClasses map[string]int
	firstError   string
}

func newMetrics() *metrics {
	return &metrics{
		statusCounts: make(map[string]int),
		errorClasses: make(map[string]int),
	}
}

func (m *metrics) record(latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.errors++
		m.errorClasses[client.Classify(err)]++
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) {
			m.statusCounts[strconv.Itoa(httpErr.StatusCode)]++
		}
		if m.firstError == "" {
			m.firstError = err.Error()
		}
		return
	}
	m.success++
	m.statusCounts["ok"]++
	m.total += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
}

// Run executes opts.Total lifecycles, at most opts.Concurrency at a time.
// Individual run failures are counted, not returned.
func Run(ctx context.Context, runner *routine.Runner, opts Options) (Result, error) {
	if opts.Total <= 0 {
		return Result{}, fmt.Errorf("total must be > 0")
	}
	if opts.Concurrency <= 0 {
		return Result{}, fmt.Errorf("concurrency must be > 0")
	}
	transitions := opts.Lifecycle.Transitions
	if transitions == nil {
		transitions = routine.DefaultTransitions()
	}

	m := newMetrics()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	start := time.Now()
	for i := 0; i < opts.Total; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t0 := time.Now()
			_, err := runner.OrderLifecycle(gctx, opts.Lifecycle)
			m.record(time.Since(t0), err)
			return nil
		})
	}
	_ = g.Wait()
	duration := time.Since(start)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	avg, minL, maxL := 0.0, 0.0, 0.0
	if m.success > 0 {
		avg = float64(m.total.Milliseconds()) / float64(m.success)
		minL = float64(m.minLatency.Milliseconds())
		maxL = float64(m.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)

	return Result{
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		CatalogURL:         opts.CatalogURL,
		Runs:               opts.Total,
		Concurrency:        opts.Concurrency,
		TransitionsPerRun:  len(transitions),
		SuccessfulRuns:     m.success,
		FailedRuns:         m.errors,
		DurationSeconds:    duration.Seconds(),
		AvgLatencyMs:       avg,
		MinLatencyMs:       minL,
		MaxLatencyMs:       maxL,
		P50LatencyMs:       p50,
		P90LatencyMs:       p90,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		ThroughputRunsPerS: float64(m.success) / duration.Seconds(),
		StatusCounts:       m.statusCounts,
		ErrorClasses:       m.errorClasses,
		FirstError:         m.firstError,
	}, nil
}

func Encode(w io.Writer, result Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func WriteJSON(path string, result Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func calcPercentiles(values []float64) (float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	return percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
