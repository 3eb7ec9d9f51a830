package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEmbedder) GetModel() string { return "mock-embed" }

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateCompletion(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) GetModel() string { return "mock-llm" }

func TestGateway_EmbedText_ConvertsToFloat64(t *testing.T) {
	gen := new(mockEmbedder)
	gen.On("Embed", mock.Anything, "hello").Return([]float32{0.5, -1}, nil)

	gw := NewGateway(gen, GuardConfig{Timeout: time.Second}, nil)
	vec, err := gw.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1}, vec)
	assert.Equal(t, "mock-embed", gw.Model())
	gen.AssertExpectations(t)
}

func TestGateway_EmbedText_WrapsFailure(t *testing.T) {
	gen := new(mockEmbedder)
	gen.On("Embed", mock.Anything, "hello").Return(nil, NewTransientError(errors.New("503")))

	gw := NewGateway(gen, GuardConfig{Timeout: time.Second}, nil)
	_, err := gw.EmbedText(context.Background(), "hello")
	require.Error(t, err)

	var svcErr *ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "embed", svcErr.Operation)
	assert.True(t, IsTransient(err))
}

func TestGateway_EmbedText_Timeout(t *testing.T) {
	gen := new(mockEmbedder)
	gen.On("Embed", mock.Anything, "slow").Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded)

	gw := NewGateway(gen, GuardConfig{Timeout: 20 * time.Millisecond}, nil)
	_, err := gw.EmbedText(context.Background(), "slow")
	assert.True(t, IsTimeout(err))
}

func TestGateway_BreakerOpensAfterFailures(t *testing.T) {
	gen := new(mockEmbedder)
	gen.On("Embed", mock.Anything, "x").Return(nil, errors.New("down"))

	gw := NewGateway(gen, GuardConfig{
		Timeout: time.Second,
		Breaker: CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute},
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := gw.EmbedText(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, "open", gw.BreakerState())

	_, err := gw.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	gen.AssertNumberOfCalls(t, "Embed", 2)
}

func TestGateway_EmptyText(t *testing.T) {
	gen := new(mockEmbedder)
	gw := NewGateway(gen, GuardConfig{}, nil)
	_, err := gw.EmbedText(context.Background(), "")
	assert.True(t, IsFatal(err))
	gen.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestGuarded_GenerateCompletion(t *testing.T) {
	gen := new(mockGenerator)
	req := CompletionRequest{SystemPrompt: "sys", UserPrompt: "hi"}
	gen.On("GenerateCompletion", mock.Anything, req).Return("ok", nil).Once()
	gen.On("GenerateCompletion", mock.Anything, req).Return("", errors.New("bad")).Once()

	g := NewGuarded(gen, GuardConfig{Timeout: time.Second}, nil)
	out, err := g.GenerateCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = g.GenerateCompletion(context.Background(), req)
	var svcErr *ExternalServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "mock-llm", g.GetModel())
}
