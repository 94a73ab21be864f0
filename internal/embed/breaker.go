package embed

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a request because
// the embedding backend is considered down.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// State is the breaker's position in its state machine.
type State int32

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen blocks all requests until the open timeout passes.
	StateOpen
	// StateHalfOpen allows a single probe request.
	StateHalfOpen
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a minimal circuit breaker for the embedding backend:
// consecutive failures open it, the open timeout admits one probe, and
// enough probe successes close it again. All transitions are lock-free.
type Breaker struct {
	state     atomic.Int32
	failures  atomic.Int32
	successes atomic.Int32
	probe     atomic.Int32
	openedAt  atomic.Int64

	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	logger           *slog.Logger
}

// NewBreaker builds a Breaker. Thresholds below 1 are raised to 1.
func NewBreaker(failureThreshold, successThreshold int, openTimeout time.Duration, logger *slog.Logger) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		logger:           logger,
	}
}

// Allow reports whether a request may proceed. The returned release
// function must be called when the request finishes; it frees the
// half-open probe slot.
func (b *Breaker) Allow() (release func(), err error) {
	noop := func() {}

	switch State(b.state.Load()) {
	case StateClosed:
		return noop, nil

	case StateOpen:
		opened := time.Unix(0, b.openedAt.Load())
		if time.Since(opened) <= b.openTimeout {
			return noop, ErrCircuitOpen
		}
		b.transition(StateOpen, StateHalfOpen)
		return b.acquireProbe()

	case StateHalfOpen:
		return b.acquireProbe()

	default:
		return noop, ErrCircuitOpen
	}
}

// RecordSuccess feeds a successful request into the state machine.
func (b *Breaker) RecordSuccess() {
	for {
		state := State(b.state.Load())
		switch state {
		case StateClosed:
			b.failures.Store(0)
			return

		case StateHalfOpen:
			if int(b.successes.Add(1)) >= b.successThreshold {
				if b.transition(StateHalfOpen, StateClosed) {
					return
				}
				b.successes.Add(-1)
				continue
			}
			return

		default:
			return
		}
	}
}

// RecordFailure feeds a failed request into the state machine.
func (b *Breaker) RecordFailure() {
	b.openedAt.Store(time.Now().UnixNano())

	for {
		state := State(b.state.Load())
		switch state {
		case StateClosed:
			if int(b.failures.Add(1)) >= b.failureThreshold {
				if b.transition(StateClosed, StateOpen) {
					return
				}
				continue
			}
			return

		case StateHalfOpen:
			if b.transition(StateHalfOpen, StateOpen) {
				return
			}
			continue

		default:
			return
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) acquireProbe() (func(), error) {
	if !b.probe.CompareAndSwap(0, 1) {
		return func() {}, ErrCircuitOpen
	}
	return func() { b.probe.Store(0) }, nil
}

func (b *Breaker) transition(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	b.failures.Store(0)
	b.successes.Store(0)
	b.probe.Store(0)
	b.logger.Info("embedding circuit breaker state transition",
		"from", from.String(),
		"to", to.String())
	return true
}
