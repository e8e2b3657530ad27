package substrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the dispatch circuit breaker.
type BreakerConfig struct {
	Name        string        // Breaker name used in log lines
	MaxFailures uint32        // Consecutive failed tasks before the breaker opens (default 5)
	OpenTimeout time.Duration // Time spent open before probing again (default 30s)
	MaxProbes   uint32        // Dispatches allowed while half-open (default 3)
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "dispatch",
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		MaxProbes:   3,
	}
}

// Breaker wraps a Substrate and refuses dispatches after repeated task failures,
// so a batch against a broken command fails fast instead of timing out unit by unit.
// Cooperative cancellations do not count as failures.
type Breaker struct {
	Substrate
	cb *gobreaker.TwoStepCircuitBreaker
}

// WithBreaker decorates s with a circuit breaker.
func WithBreaker(s Substrate, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.MaxProbes == 0 {
		cfg.MaxProbes = def.MaxProbes
	}

	maxFailures := cfg.MaxFailures
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxProbes,
		Interval:    0,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
	})

	return &Breaker{Substrate: s, cb: cb}
}

// BreakerFactory wraps every substrate opened by next with a breaker.
func BreakerFactory(next Factory, cfg BreakerConfig) Factory {
	return func(ctx context.Context) (Substrate, error) {
		s, err := next(ctx)
		if err != nil {
			return nil, err
		}
		return WithBreaker(s, cfg), nil
	}
}

// Submit dispatches through the breaker. The task's outcome is reported to the
// breaker when its future resolves.
func (b *Breaker) Submit(ctx context.Context, task Task) (*Future, error) {
	done, err := b.cb.Allow()
	if err != nil {
		return nil, fmt.Errorf("dispatch rejected: %w", err)
	}

	f, err := b.Substrate.Submit(ctx, task)
	if err != nil {
		done(false)
		return nil, err
	}

	go func() {
		<-f.Done()
		_, taskErr := f.Result()
		done(taskSucceeded(taskErr))
	}()

	return f, nil
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func taskSucceeded(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
