package middleware

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/metrics"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
)

// RetryPolicy decides, after a failed attempt, whether the request should
// be retried and after how long.
type RetryPolicy[Resp any] interface {
	ShouldRetry(attempt int, resp Resp, err error) (retry bool, backoff time.Duration)
}

// RetryPolicyFunc adapts a function to RetryPolicy.
type RetryPolicyFunc[Resp any] func(attempt int, resp Resp, err error) (bool, time.Duration)

func (f RetryPolicyFunc[Resp]) ShouldRetry(attempt int, resp Resp, err error) (bool, time.Duration) {
	return f(attempt, resp, err)
}

// Budget caps the rate at which retries (as opposed to first attempts) may
// be spent, so a persistent upstream failure cannot turn every inbound
// request into an unbounded retry storm. It is backed by a token bucket:
// each retry consumes one token, first attempts never do.
type Budget struct {
	limiter *rate.Limiter
}

// NewBudget returns a Budget allowing retriesPerSecond retries/sec with the
// given burst of immediately available retries.
func NewBudget(retriesPerSecond float64, burst int) *Budget {
	return &Budget{limiter: rate.NewLimiter(rate.Limit(retriesPerSecond), burst)}
}

// Withdraw reports whether a retry may be spent right now, consuming a
// token if so.
func (b *Budget) Withdraw() bool {
	if b == nil {
		return true
	}
	return b.limiter.Allow()
}

// RetryOption configures a Retry layer's observability. The zero value (no
// options) leaves Retry unmetered.
type RetryOption func(*retryConfig)

type retryConfig struct {
	metrics *metrics.Registry
}

// WithRetryMetrics feeds reg's RetryAttemptsTotal (labeled "retried" or
// "exhausted") and RetryBudgetExhausted counters from every Retry
// decision. Nil reg disables instrumentation.
func WithRetryMetrics(reg *metrics.Registry) RetryOption {
	return func(c *retryConfig) { c.metrics = reg }
}

// Retry wraps inner, re-invoking it per policy.ShouldRetry after a failed
// attempt, so long as budget still has tokens available. A nil budget
// means retries are unbounded by rate (still bounded by policy).
func Retry[S, Req, Resp any](policy RetryPolicy[Resp], budget *Budget, opts ...RetryOption) layer.Layer[S, Req, Resp] {
	var cfg retryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			attempt := 0
			for {
				resp, err := inner.Serve(ctx, req)
				if err == nil {
					return resp, nil
				}
				if rerror.Is(err, rerror.KindCancelled) {
					return resp, err
				}
				retry, backoff := policy.ShouldRetry(attempt, resp, err)
				if !retry {
					return resp, err
				}
				if !budget.Withdraw() {
					if cfg.metrics != nil {
						cfg.metrics.RetryBudgetExhausted.Inc()
						cfg.metrics.RetryAttemptsTotal.WithLabelValues("exhausted").Inc()
					}
					return resp, rerror.Wrap(rerror.KindPolicy, err, "retry budget exhausted")
				}
				if cfg.metrics != nil {
					cfg.metrics.RetryAttemptsTotal.WithLabelValues("retried").Inc()
				}
				attempt++
				if backoff > 0 {
					timer := time.NewTimer(backoff)
					select {
					case <-timer.C:
					case <-ctx.Cancelled():
						timer.Stop()
						return resp, rerror.New(rerror.KindCancelled, "shutdown while waiting to retry")
					}
				}
			}
		})
	})
}

// MaxAttempts returns a RetryPolicy that retries any non-nil error up to
// max times with a fixed backoff between attempts.
func MaxAttempts[Resp any](max int, backoff time.Duration) RetryPolicy[Resp] {
	return RetryPolicyFunc[Resp](func(attempt int, _ Resp, err error) (bool, time.Duration) {
		if err == nil || attempt >= max {
			return false, 0
		}
		return true, backoff
	})
}
