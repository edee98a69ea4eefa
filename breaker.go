package goldenpath

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"k8s.io/utils/clock"

	"github.com/relaykit/goldenpath/internal/metrics"
)

type BreakerState int

const (
	BreakerClosed   BreakerState = 0
	BreakerOpen     BreakerState = 1
	BreakerHalfOpen BreakerState = 2
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("BreakerState(%d)", s)
	}
}

// BreakerConfig tunes a single named circuit breaker. It is immutable once the
// breaker has been created via BreakerRegistry.GetOrCreate.
type BreakerConfig struct {
	// FailureThreshold is the number of accumulated failures that trips the
	// breaker open. The counter is not windowed: successes while closed do not
	// decay it. Values below 1 are treated as 1.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before the next call is
	// allowed through as a half open trial. The check is lazy - a breaker that
	// receives no further calls stays open.
	ResetTimeout time.Duration
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	}
}

// Breaker is a three state failure guard for one named operation class. All
// state transitions happen under the mutex so that concurrent pipeline runs
// sharing the breaker cannot lose updates or double transition.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        clock.PassiveClock
	logger       *logger

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
}

// Name returns the step name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the breaker.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// FailureCount returns the accumulated failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.failureCount
}

// Execute invokes op through the breaker. When the breaker is open and the
// reset timeout has not elapsed since the last failure the call fails fast
// with ErrCircuitOpen and op is not invoked. When the reset timeout has
// elapsed the breaker moves to half open and op is invoked on this same call
// as the recovery trial.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()

	if b.state == BreakerOpen {
		if b.clock.Since(b.lastFailureTime) > b.resetTimeout {
			b.transition(ctx, BreakerHalfOpen)
		} else {
			b.mu.Unlock()
			metrics.BreakerFastFails.WithLabelValues(b.name).Inc()

			return errors.Wrap(ErrCircuitOpen, "", j.MKV{
				"breaker":       b.name,
				"failure_count": fmt.Sprintf("%d", b.failureCount),
			})
		}
	}

	b.mu.Unlock()

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailureTime = b.clock.Now()

		if b.state == BreakerHalfOpen {
			// Failed recovery trial - back to open.
			b.transition(ctx, BreakerOpen)
		} else if b.state == BreakerClosed && b.failureCount >= b.threshold {
			b.transition(ctx, BreakerOpen)
		}

		return err
	}

	if b.state == BreakerHalfOpen {
		// Successful recovery trial resets the accumulated failures. This is
		// the only place the counter resets - successes while closed leave it
		// untouched.
		b.failureCount = 0
		b.transition(ctx, BreakerClosed)
	}

	return nil
}

// transition must be called while holding b.mu.
func (b *Breaker) transition(ctx context.Context, to BreakerState) {
	from := b.state
	b.state = to

	metrics.BreakerStates.WithLabelValues(b.name).Set(float64(to))

	b.logger.maybeDebug(ctx, "circuit breaker state change", MKV{
		"breaker":       b.name,
		"from":          from.String(),
		"to":            to.String(),
		"failure_count": fmt.Sprintf("%d", b.failureCount),
	})
}

// BreakerRegistry holds one Breaker per step name. It is safe for concurrent
// use and is intended to be shared across all pipelines in a process so that
// failures seen by one pipeline fast-fail other callers of the same step name.
type BreakerRegistry struct {
	clock  clock.PassiveClock
	logger *logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

type RegistryOption func(r *BreakerRegistry)

// WithRegistryClock replaces the clock used by all breakers created by the
// registry. Intended for tests.
func WithRegistryClock(c clock.PassiveClock) RegistryOption {
	return func(r *BreakerRegistry) {
		r.clock = c
	}
}

// WithRegistryLogger makes breaker state transitions visible on the provided
// logger.
func WithRegistryLogger(l Logger) RegistryOption {
	return func(r *BreakerRegistry) {
		r.logger = &logger{inner: l, debugMode: true}
	}
}

func NewBreakerRegistry(opts ...RegistryOption) *BreakerRegistry {
	r := &BreakerRegistry{
		clock:    clock.RealClock{},
		logger:   &logger{},
		breakers: make(map[string]*Breaker),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetOrCreate returns the breaker for name, creating it with config on first
// use. The config of an existing breaker is never replaced, so the first
// caller to name the breaker fixes its tuning for the process lifetime.
func (r *BreakerRegistry) GetOrCreate(name string, config BreakerConfig) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()

	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if b, ok = r.breakers[name]; ok {
		return b
	}

	threshold := config.FailureThreshold
	if threshold < 1 {
		threshold = 1
	}

	b = &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: config.ResetTimeout,
		clock:        r.clock,
		logger:       r.logger,
		state:        BreakerClosed,
	}
	r.breakers[name] = b

	return b
}

// State returns the state of the named breaker and whether it exists.
func (r *BreakerRegistry) State(name string) (BreakerState, bool) {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()

	if !ok {
		return BreakerClosed, false
	}

	return b.State(), true
}

// Reset forces the named breaker back to closed with a zeroed failure count.
// It is an operational hook and is never called by the runner itself.
func (r *BreakerRegistry) Reset(name string) {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()

	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.transition(context.Background(), BreakerClosed)
}

// globalRegistry backs DefaultBreakerRegistry. Pipelines share it unless they
// are built with WithBreakers, which keeps breaker state process-global across
// every pipeline that references the same step name.
var globalRegistry = NewBreakerRegistry()

func DefaultBreakerRegistry() *BreakerRegistry {
	return globalRegistry
}
