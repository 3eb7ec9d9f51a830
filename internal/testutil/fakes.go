// Package testutil provides deterministic fakes of the external
// capabilities (embedding, completion) shared by package tests.
package testutil

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
)

// ErrUnavailable is returned by fakes configured to fail.
var ErrUnavailable = errors.New("service unavailable")

// Embedder returns fixed vectors keyed by exact input text.
type Embedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	Default []float64 // returned for unknown text; nil makes unknown text fail
	Err     error     // when set, every call fails
	calls   int
}

// NewEmbedder creates an Embedder with no vectors.
func NewEmbedder() *Embedder {
	return &Embedder{vectors: map[string][]float64{}}
}

// Set registers the vector returned for text.
func (e *Embedder) Set(text string, v []float64) *Embedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = v
	return e
}

// EmbedText implements llm.Embedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Err != nil {
		return nil, e.Err
	}
	if v, ok := e.vectors[text]; ok {
		return append([]float64(nil), v...), nil
	}
	if e.Default != nil {
		return append([]float64(nil), e.Default...), nil
	}
	return nil, ErrUnavailable
}

// Calls returns how many times EmbedText ran.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Provider adapts e to llm.EmbeddingGenerator, for wiring that expects a
// raw provider client in front of the gateway.
func (e *Embedder) Provider() llm.EmbeddingGenerator { return embeddingProvider{e} }

type embeddingProvider struct{ e *Embedder }

func (p embeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := p.e.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out, nil
}

func (embeddingProvider) GetModel() string { return "fake-embed" }

// Generator answers completions through a caller-supplied function.
type Generator struct {
	mu      sync.Mutex
	Model   string
	Respond func(ctx context.Context, req llm.CompletionRequest) (string, error)
	calls   []llm.CompletionRequest
}

// NewGenerator returns a Generator that always replies with reply.
func NewGenerator(reply string) *Generator {
	return &Generator{
		Model: "fake",
		Respond: func(context.Context, llm.CompletionRequest) (string, error) {
			return reply, nil
		},
	}
}

// SetReply makes every later call reply with text.
func (g *Generator) SetReply(text string) {
	g.SetRespond(func(context.Context, llm.CompletionRequest) (string, error) {
		return text, nil
	})
}

// SetRespond swaps the response function.
func (g *Generator) SetRespond(fn func(ctx context.Context, req llm.CompletionRequest) (string, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Respond = fn
}

// FailingGenerator returns a Generator whose every call fails with err.
func FailingGenerator(err error) *Generator {
	return &Generator{
		Model: "fake",
		Respond: func(context.Context, llm.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// BlockingGenerator waits for the context to end and returns its error.
func BlockingGenerator() *Generator {
	return &Generator{
		Model: "fake",
		Respond: func(ctx context.Context, _ llm.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// GenerateCompletion implements llm.TextGenerator.
func (g *Generator) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	respond := g.Respond
	g.mu.Unlock()
	return respond(ctx, req)
}

// GetModel implements llm.TextGenerator.
func (g *Generator) GetModel() string { return g.Model }

// Calls returns the requests received so far.
func (g *Generator) Calls() []llm.CompletionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.CompletionRequest(nil), g.calls...)
}

// UnitVector returns a vector whose cosine similarity with UnitVector(1)
// is sim up to rounding. Boundary tests should not depend on it.
func UnitVector(sim float64) []float64 {
	if sim >= 1 {
		return []float64{1, 0}
	}
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
