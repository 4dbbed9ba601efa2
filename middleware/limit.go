package middleware

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/metrics"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
)

// LimitDecision is the outcome of a ConcurrentPolicy check.
type LimitDecision int

const (
	// LimitReady means the request may proceed immediately, holding a
	// guard that must be released when the request completes.
	LimitReady LimitDecision = iota
	// LimitAbort means the request must fail now.
	LimitAbort
	// LimitRetry means the kernel should re-check the policy after a
	// policy-chosen delay.
	LimitRetry
)

// LimitState mirrors the state machine named in the spec: a policy
// transitions between Available, AtCapacity and Draining.
type LimitState int

const (
	StateAvailable LimitState = iota
	StateAtCapacity
	StateDraining
)

// Release reports the outcome of a request that was admitted by a
// ConcurrentPolicy, so policies that track success/failure (a circuit
// breaker) can update their state; policies that only track a count
// ignore err.
type Release func(err error)

// ConcurrentPolicy decides how a Limit layer should treat an arriving
// request given the current in-flight count.
type ConcurrentPolicy interface {
	// Check is called on request arrival. On LimitReady it must return a
	// non-nil Release to be called exactly once when the request
	// completes, with the error (if any) the guarded call produced.
	Check(ctx Cancellable) (decision LimitDecision, release Release, retryAfter time.Duration)
	State() LimitState
}

// Cancellable is the subset of racontext.Context a policy needs to respect
// shutdown/cancellation while retrying.
type Cancellable interface {
	Cancelled() <-chan struct{}
}

// maxPolicy rejects any request arriving once max concurrent requests are
// already in flight.
type maxPolicy struct {
	max     int
	current chan struct{}
	drain   chan struct{}
}

// NewMaxPolicy returns a ConcurrentPolicy that allows at most max concurrent
// requests and aborts (rather than queuing) any arrival beyond that. max==0
// rejects every request.
func NewMaxPolicy(max int) ConcurrentPolicy {
	return &maxPolicy{max: max, current: make(chan struct{}, maxInt(max, 0)), drain: make(chan struct{})}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *maxPolicy) Check(_ Cancellable) (LimitDecision, Release, time.Duration) {
	select {
	case <-p.drain:
		return LimitAbort, nil, 0
	default:
	}
	if p.max <= 0 {
		return LimitAbort, nil, 0
	}
	select {
	case p.current <- struct{}{}:
		return LimitReady, func(error) { <-p.current }, 0
	default:
		return LimitAbort, nil, 0
	}
}

func (p *maxPolicy) State() LimitState {
	select {
	case <-p.drain:
		return StateDraining
	default:
	}
	if len(p.current) >= p.max {
		return StateAtCapacity
	}
	return StateAvailable
}

// Drain puts the policy into Draining state, rejecting all new arrivals.
func (p *maxPolicy) Drain() {
	select {
	case <-p.drain:
	default:
		close(p.drain)
	}
}

// backoffPolicy behaves like maxPolicy but instructs the kernel to retry
// after a fixed backoff instead of aborting outright when at capacity.
type backoffPolicy struct {
	inner   *maxPolicy
	backoff time.Duration
}

// NewBackoffPolicy wraps max(n) so arrivals at capacity are retried after
// backoff instead of aborted.
func NewBackoffPolicy(n int, backoff time.Duration) ConcurrentPolicy {
	return &backoffPolicy{inner: NewMaxPolicy(n).(*maxPolicy), backoff: backoff}
}

func (p *backoffPolicy) Check(c Cancellable) (LimitDecision, Release, time.Duration) {
	decision, release, _ := p.inner.Check(c)
	if decision == LimitAbort && p.inner.State() != StateDraining {
		return LimitRetry, nil, p.backoff
	}
	return decision, release, 0
}

func (p *backoffPolicy) State() LimitState { return p.inner.State() }

// LimitOption configures a Limit layer's observability. The zero value
// (no options) leaves Limit unmetered.
type LimitOption func(*limitConfig)

type limitConfig struct {
	metrics *metrics.Registry
	name    string
}

// WithLimitMetrics feeds policy.State() into reg's LimitState gauge after
// every Check, labeled name (e.g. the policy's role: "inbound",
// "upstream-dial"). Nil reg disables instrumentation.
func WithLimitMetrics(reg *metrics.Registry, name string) LimitOption {
	return func(c *limitConfig) {
		c.metrics = reg
		c.name = name
	}
}

// Limit wraps inner with a ConcurrentPolicy, looping on LimitRetry,
// returning immediately on LimitAbort, and serving with the guard held on
// LimitReady. The guarded call's error is reported back to the policy's
// Release so outcome-aware policies (a circuit breaker) can react to it.
func Limit[S, Req, Resp any](policy ConcurrentPolicy, opts ...LimitOption) layer.Layer[S, Req, Resp] {
	cfg := limitConfig{name: "default"}
	for _, opt := range opts {
		opt(&cfg)
	}
	observe := func() {
		if cfg.metrics != nil {
			cfg.metrics.LimitState.WithLabelValues(cfg.name).Set(float64(policy.State()))
		}
	}
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			var zero Resp
			for {
				decision, release, retryAfter := policy.Check(ctx)
				observe()
				switch decision {
				case LimitReady:
					resp, err := inner.Serve(ctx, req)
					release(err)
					observe()
					return resp, err
				case LimitAbort:
					return zero, rerror.New(rerror.KindPolicy, "concurrency limit exceeded")
				case LimitRetry:
					timer := time.NewTimer(retryAfter)
					select {
					case <-timer.C:
						continue
					case <-ctx.Cancelled():
						timer.Stop()
						return zero, rerror.New(rerror.KindCancelled, "shutdown while waiting for capacity")
					}
				}
			}
		})
	})
}

// rateLimitedPolicy backs a ConcurrentPolicy with a token-bucket rate
// limiter (golang.org/x/time/rate), rejecting bursts above the configured
// rate rather than counting strictly-concurrent in-flight requests. Useful
// for upstream-protective rate limiting rather than local-resource
// concurrency limiting.
type rateLimitedPolicy struct {
	limiter *rate.Limiter
}

// NewRateLimitedPolicy returns a ConcurrentPolicy backed by a token-bucket
// limiter admitting r requests/sec with the given burst.
func NewRateLimitedPolicy(r float64, burst int) ConcurrentPolicy {
	return &rateLimitedPolicy{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

func (p *rateLimitedPolicy) Check(_ Cancellable) (LimitDecision, Release, time.Duration) {
	if p.limiter.Allow() {
		return LimitReady, func(error) {}, 0
	}
	return LimitAbort, nil, 0
}

func (p *rateLimitedPolicy) State() LimitState {
	if p.limiter.Tokens() <= 0 {
		return StateAtCapacity
	}
	return StateAvailable
}

// circuitBreakerPolicy rejects arrivals outright once an upstream has
// tripped a gobreaker.CircuitBreaker open, rather than counting either
// concurrency or raw request rate. StateOpen and StateHalfOpen both read
// back as Draining/AtCapacity respectively, since in both cases new work
// is being deliberately shed while the failure condition clears.
type circuitBreakerPolicy struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreakerPolicy returns a ConcurrentPolicy backed by a
// sony/gobreaker circuit breaker named name, tripping open after
// consecutiveFailures failures in a row and probing half-open after
// openTimeout.
func NewCircuitBreakerPolicy(name string, consecutiveFailures uint32, openTimeout time.Duration) ConcurrentPolicy {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	})
	return &circuitBreakerPolicy{cb: cb}
}

func (p *circuitBreakerPolicy) Check(_ Cancellable) (LimitDecision, Release, time.Duration) {
	if p.cb.State() == gobreaker.StateOpen {
		return LimitAbort, nil, 0
	}
	return LimitReady, func(err error) {
		_, _ = p.cb.Execute(func() (struct{}, error) { return struct{}{}, err })
	}, 0
}

func (p *circuitBreakerPolicy) State() LimitState {
	switch p.cb.State() {
	case gobreaker.StateOpen:
		return StateDraining
	case gobreaker.StateHalfOpen:
		return StateAtCapacity
	default:
		return StateAvailable
	}
}
