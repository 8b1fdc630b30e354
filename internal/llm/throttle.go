package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// CallObserver receives one notification per outbound gateway call.
type CallObserver interface {
	ObserveGatewayCall(outcome string, elapsed time.Duration)
}

// Call outcomes reported to a CallObserver.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeBreaker = "breaker_open"
)

// coalesceKey is the single in-flight slot. Every caller shares it, so a call
// made while another is pending receives that call's result.
const coalesceKey = "complete"

// Throttled wraps a Gateway with the one-request-at-a-time discipline:
//   - calls are spaced at least MinInterval apart (suspending, never failing)
//   - a call issued while another is in flight joins it and gets the same result
//   - repeated failures open a circuit breaker so a dead upstream fails fast
//
// One Throttled belongs to one session. Sharing it across sessions would
// make unrelated sessions coalesce onto each other's requests.
type Throttled struct {
	next     Gateway
	limiter  *rate.Limiter
	group    singleflight.Group
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
	observer CallObserver
}

// ThrottleOption configures a Throttled gateway.
type ThrottleOption func(*Throttled)

// WithLogger sets the logger used for breaker transitions and failures.
func WithLogger(l *zap.Logger) ThrottleOption {
	return func(t *Throttled) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithObserver reports every outbound call to o.
func WithObserver(o CallObserver) ThrottleOption {
	return func(t *Throttled) { t.observer = o }
}

// NewThrottled wraps next. interval <= 0 uses DefaultMinInterval.
func NewThrottled(next Gateway, interval time.Duration, opts ...ThrottleOption) *Throttled {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	t := &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gateway/" + next.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("gateway breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return t
}

// Name returns the wrapped gateway's name.
func (t *Throttled) Name() string {
	return t.next.Name()
}

// Complete issues req, or joins the call already in flight.
func (t *Throttled) Complete(ctx context.Context, req Request) (*Response, error) {
	v, err, shared := t.group.Do(coalesceKey, func() (interface{}, error) {
		return t.issue(ctx, req)
	})
	if shared {
		t.logger.Debug("gateway call coalesced", zap.String("model", req.Model))
	}
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

func (t *Throttled) issue(ctx context.Context, req Request) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &GatewayError{Detail: "throttle wait aborted", Err: err}
	}

	start := time.Now()
	v, err := t.breaker.Execute(func() (interface{}, error) {
		return t.next.Complete(ctx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = OutcomeBreaker
			err = &GatewayError{Detail: "circuit open", Err: err}
		}
		t.observe(outcome, elapsed)
		t.logger.Warn("gateway call failed",
			zap.String("gateway", t.next.Name()),
			zap.String("model", req.Model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	resp, ok := v.(*Response)
	if !ok || resp == nil {
		t.observe(OutcomeError, elapsed)
		return nil, fmt.Errorf("gateway %s: %w", t.next.Name(), ErrEmptyResponse)
	}
	t.observe(OutcomeOK, elapsed)
	return resp, nil
}

func (t *Throttled) observe(outcome string, elapsed time.Duration) {
	if t.observer != nil {
		t.observer.ObserveGatewayCall(outcome, elapsed)
	}
}
