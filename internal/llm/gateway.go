package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

// GuardConfig configures the resilience wrapper shared by Gateway and Guarded.
type GuardConfig struct {
	// Timeout bounds every call. Default: 30s
	Timeout time.Duration

	// RequestsPerSec limits the call rate. 0 disables limiting.
	RequestsPerSec float64

	// Burst is the limiter burst size. Default: 1
	Burst int

	Breaker CircuitBreakerConfig
}

// guard applies rate limiting, a timeout and a circuit breaker around a call.
type guard struct {
	service string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *CircuitBreaker
}

func newGuard(service string, cfg GuardConfig, logger logrus.FieldLogger) *guard {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = service
	}

	g := &guard{
		service: service,
		timeout: cfg.Timeout,
		breaker: NewCircuitBreakerWithConfig(cfg.Breaker, logger),
	}
	if cfg.RequestsPerSec > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst)
	}
	return g
}

// do runs fn and maps failures to *TimeoutError or *ExternalServiceError.
func (g *guard) do(ctx context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &ExternalServiceError{Service: g.service, Operation: operation, Err: NewTransientError(err)}
		}
	}

	result, err := WithTimeout(ctx, g.service+" "+operation, g.timeout, func(callCtx context.Context) (interface{}, error) {
		return g.breaker.Execute(callCtx, func() (interface{}, error) {
			return fn(callCtx)
		})
	})
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return nil, te
		}
		if errors.Is(err, ErrCircuitOpen) {
			err = NewTransientError(err)
		}
		return nil, &ExternalServiceError{Service: g.service, Operation: operation, Err: err}
	}
	return result, nil
}

// Gateway is the embedding capability used by the duplicate detector, the
// frequency tracker and the reuse gate. It converts provider vectors to
// float64 and isolates provider failures behind typed errors.
type Gateway struct {
	gen    EmbeddingGenerator
	guard  *guard
	logger logrus.FieldLogger
}

// NewGateway wraps gen with the given guard settings.
func NewGateway(gen EmbeddingGenerator, cfg GuardConfig, logger logrus.FieldLogger) *Gateway {
	logger = logging.OrDiscard(logger)
	return &Gateway{
		gen:    gen,
		guard:  newGuard("embedding:"+gen.GetModel(), cfg, logger),
		logger: logger,
	}
}

// EmbedText returns the embedding of text.
func (g *Gateway) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, &ExternalServiceError{Service: g.guard.service, Operation: "embed", Err: NewFatalError(errors.New("empty text"))}
	}

	result, err := g.guard.do(ctx, "embed", func(callCtx context.Context) (interface{}, error) {
		return g.gen.Embed(callCtx, text)
	})
	if err != nil {
		return nil, err
	}

	raw := result.([]float32)
	if len(raw) == 0 {
		return nil, &ExternalServiceError{Service: g.guard.service, Operation: "embed", Err: fmt.Errorf("empty embedding")}
	}
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}

// Model returns the underlying embedding model name.
func (g *Gateway) Model() string {
	return g.gen.GetModel()
}

// BreakerState exposes the breaker state for health reporting.
func (g *Gateway) BreakerState() string {
	return g.guard.breaker.State()
}

var _ Embedder = (*Gateway)(nil)

// Guarded wraps a TextGenerator with the same timeout, rate limit and breaker
// treatment as Gateway.
type Guarded struct {
	gen   TextGenerator
	guard *guard
}

// NewGuarded wraps gen.
func NewGuarded(gen TextGenerator, cfg GuardConfig, logger logrus.FieldLogger) *Guarded {
	return &Guarded{
		gen:   gen,
		guard: newGuard("llm:"+gen.GetModel(), cfg, logging.OrDiscard(logger)),
	}
}

// GenerateCompletion forwards to the wrapped generator.
func (g *Guarded) GenerateCompletion(ctx context.Context, req CompletionRequest) (string, error) {
	result, err := g.guard.do(ctx, "complete", func(callCtx context.Context) (interface{}, error) {
		return g.gen.GenerateCompletion(callCtx, req)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// GetModel returns the wrapped model name.
func (g *Guarded) GetModel() string {
	return g.gen.GetModel()
}

var _ TextGenerator = (*Guarded)(nil)
