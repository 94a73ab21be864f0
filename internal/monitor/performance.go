package monitor

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/answerlab/go-grader/internal/domain"
)

const (
	// recentWindow bounds the ring buffer of recent request samples used
	// for throughput and average latency.
	recentWindow = 1000

	// degradedAvgResponse and unhealthyAvgResponse are the average
	// response times over the recent window at which the reported status
	// drops to degraded and unhealthy.
	degradedAvgResponse  = 2 * time.Second
	unhealthyAvgResponse = 5 * time.Second
)

// Performance tracks request counts, concurrency, recent latency and
// per-stage timing aggregates. All methods are safe for concurrent use.
type Performance struct {
	started time.Time

	total  atomic.Int64
	active atomic.Int64
	peak   atomic.Int64

	mu     sync.Mutex
	recent []requestSample
	next   int
	filled bool

	stagesMu sync.RWMutex
	stages   map[string]*stageAgg
}

type requestSample struct {
	at      time.Time
	elapsed time.Duration
}

// stageAgg aggregates one stage's timings without locks.
type stageAgg struct {
	count atomic.Int64
	sum   atomic.Int64 // nanoseconds
	min   atomic.Int64
	max   atomic.Int64
}

// StageSnapshot is a point-in-time view of one stage's aggregate.
type StageSnapshot struct {
	Count int64   `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
}

// RuntimeSnapshot reports process-level runtime statistics.
type RuntimeSnapshot struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64 `json:"heap_sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
}

// PerformanceSnapshot is a point-in-time view of the whole tracker.
type PerformanceSnapshot struct {
	Status            string                   `json:"status"`
	UptimeSeconds     float64                  `json:"uptime_seconds"`
	TotalRequests     int64                    `json:"total_requests"`
	ActiveRequests    int64                    `json:"active_requests"`
	MaxConcurrent     int64                    `json:"max_concurrent_requests"`
	RequestsPerMinute int                      `json:"requests_per_minute"`
	AvgResponseMs     float64                  `json:"avg_response_time_ms"`
	Stages            map[string]StageSnapshot `json:"stages"`
	Runtime           RuntimeSnapshot          `json:"runtime"`
}

// NewPerformance builds an empty tracker anchored at the current time.
func NewPerformance() *Performance {
	return &Performance{
		started: time.Now(),
		recent:  make([]requestSample, recentWindow),
		stages:  make(map[string]*stageAgg),
	}
}

// StartRequest registers an in-flight request and returns the function
// that must be called when it finishes.
func (p *Performance) StartRequest() (finish func()) {
	start := time.Now()
	p.total.Add(1)

	active := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if active <= peak || p.peak.CompareAndSwap(peak, active) {
			break
		}
	}

	return func() {
		p.active.Add(-1)
		p.record(time.Since(start))
	}
}

// RecordStage feeds one stage timing into that stage's aggregate.
func (p *Performance) RecordStage(stage string, elapsed time.Duration) {
	agg := p.stage(stage)
	nanos := elapsed.Nanoseconds()

	agg.count.Add(1)
	agg.sum.Add(nanos)
	for {
		cur := agg.min.Load()
		if nanos >= cur || agg.min.CompareAndSwap(cur, nanos) {
			break
		}
	}
	for {
		cur := agg.max.Load()
		if nanos <= cur || agg.max.CompareAndSwap(cur, nanos) {
			break
		}
	}
}

// Snapshot assembles the current view of the tracker.
func (p *Performance) Snapshot() PerformanceSnapshot {
	perMinute, avg := p.recentStats()

	p.stagesMu.RLock()
	stages := make(map[string]StageSnapshot, len(p.stages))
	for name, agg := range p.stages {
		count := agg.count.Load()
		snap := StageSnapshot{Count: count}
		if count > 0 {
			snap.AvgMs = roundMs(time.Duration(agg.sum.Load() / count))
			snap.MinMs = roundMs(time.Duration(agg.min.Load()))
			snap.MaxMs = roundMs(time.Duration(agg.max.Load()))
		}
		stages[name] = snap
	}
	p.stagesMu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return PerformanceSnapshot{
		Status:            statusFor(avg),
		UptimeSeconds:     domain.RoundTo(time.Since(p.started).Seconds(), 2),
		TotalRequests:     p.total.Load(),
		ActiveRequests:    p.active.Load(),
		MaxConcurrent:     p.peak.Load(),
		RequestsPerMinute: perMinute,
		AvgResponseMs:     roundMs(avg),
		Stages:            stages,
		Runtime: RuntimeSnapshot{
			Goroutines:     runtime.NumGoroutine(),
			HeapAllocBytes: mem.HeapAlloc,
			HeapSysBytes:   mem.HeapSys,
			NumGC:          mem.NumGC,
		},
	}
}

func (p *Performance) record(elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recent[p.next] = requestSample{at: time.Now(), elapsed: elapsed}
	p.next++
	if p.next == len(p.recent) {
		p.next = 0
		p.filled = true
	}
}

// recentStats reports requests seen in the last minute and the average
// latency over the retained window.
func (p *Performance) recentStats() (perMinute int, avg time.Duration) {
	cutoff := time.Now().Add(-time.Minute)

	p.mu.Lock()
	defer p.mu.Unlock()

	stored := p.next
	if p.filled {
		stored = len(p.recent)
	}
	if stored == 0 {
		return 0, 0
	}

	var sum time.Duration
	for i := 0; i < stored; i++ {
		sample := p.recent[i]
		sum += sample.elapsed
		if sample.at.After(cutoff) {
			perMinute++
		}
	}
	return perMinute, sum / time.Duration(stored)
}

func (p *Performance) stage(name string) *stageAgg {
	p.stagesMu.RLock()
	agg, ok := p.stages[name]
	p.stagesMu.RUnlock()
	if ok {
		return agg
	}

	p.stagesMu.Lock()
	defer p.stagesMu.Unlock()
	if agg, ok = p.stages[name]; ok {
		return agg
	}
	agg = &stageAgg{}
	agg.min.Store(math.MaxInt64)
	p.stages[name] = agg
	return agg
}

func statusFor(avg time.Duration) string {
	switch {
	case avg > unhealthyAvgResponse:
		return "unhealthy"
	case avg > degradedAvgResponse:
		return "degraded"
	default:
		return "healthy"
	}
}

func roundMs(d time.Duration) float64 {
	return domain.RoundTo(d.Seconds()*1000, 2)
}
