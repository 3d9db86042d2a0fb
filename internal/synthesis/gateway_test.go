package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	failures int // invocations that fail before succeeding
	err      error
	calls    int
	text     string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Invoke(_ context.Context, _ Request) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return f.text, nil
}

var errPermanent = errors.New("bad request")

func TestGenerateFirstSuccessWins(t *testing.T) {
	a := &fakeProvider{name: "openai", text: "answer from openai"}
	b := &fakeProvider{name: "claude", text: "answer from claude"}
	g := NewGateway(a, b)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "")
	require.NoError(t, err)
	assert.Equal(t, "answer from openai", res.Text)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, 1, a.calls)
	assert.Zero(t, b.calls, "later candidates must not be invoked after a success")
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	a := &fakeProvider{name: "openai", failures: 99, err: errPermanent}
	b := &fakeProvider{name: "claude", text: "fallback answer"}
	c := &fakeProvider{name: "local", text: "never used"}
	g := NewGateway(a, b, c)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "")
	require.NoError(t, err)
	assert.Equal(t, "claude", res.Provider)
	assert.Equal(t, "fallback answer", res.Text)
	assert.Equal(t, 1, a.calls, "permanent failures get no retry")
	assert.Zero(t, c.calls)
}

func TestGenerateAllProvidersFailed(t *testing.T) {
	a := &fakeProvider{name: "openai", failures: 99, err: errPermanent}
	b := &fakeProvider{name: "claude", failures: 99, err: errPermanent}
	g := NewGateway(a, b)

	_, err := g.Generate(context.Background(), "q", "evidence", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, errPermanent)
}

func TestGenerateNoProvidersConfigured(t *testing.T) {
	g := NewGateway()
	_, err := g.Generate(context.Background(), "q", "evidence", "", "")
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestGenerateTransientFailureRetriedOnce(t *testing.T) {
	a := &fakeProvider{name: "openai", failures: 1, err: context.DeadlineExceeded, text: "second try"}
	g := NewGateway(a)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "")
	require.NoError(t, err)
	assert.Equal(t, "second try", res.Text)
	assert.Equal(t, 2, a.calls)
}

func TestGenerateTransientRetryBudgetIsOne(t *testing.T) {
	a := &fakeProvider{name: "openai", failures: 99, err: context.DeadlineExceeded}
	b := &fakeProvider{name: "claude", text: "fallback"}
	g := NewGateway(a, b)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "")
	require.NoError(t, err)
	assert.Equal(t, "claude", res.Provider)
	assert.Equal(t, 2, a.calls, "one call plus one retry, then fall through")
}

func TestGenerateModelHintRotatesChain(t *testing.T) {
	a := &fakeProvider{name: "openai", text: "from openai"}
	b := &fakeProvider{name: "claude", text: "from claude"}
	g := NewGateway(a, b)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", res.Provider)
	assert.Zero(t, a.calls)
}

func TestGenerateHintedProviderFailureFallsBackToChain(t *testing.T) {
	a := &fakeProvider{name: "openai", text: "from openai"}
	b := &fakeProvider{name: "claude", failures: 99, err: errPermanent}
	g := NewGateway(a, b)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "claude")
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, 1, b.calls)
}

func TestGenerateUnknownHintIgnored(t *testing.T) {
	a := &fakeProvider{name: "openai", text: "from openai"}
	g := NewGateway(a)

	res, err := g.Generate(context.Background(), "q", "evidence", "", "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
}
