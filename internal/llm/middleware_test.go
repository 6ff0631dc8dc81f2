package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls   atomic.Int64
	failFor int64
	err     error
	resp    string
}

func (c *countingClient) Name() string { return "counting" }
func (c *countingClient) Close() error { return nil }
func (c *countingClient) Generate(ctx context.Context, prompt string) (string, error) {
	n := c.calls.Add(1)
	if n <= c.failFor {
		return "", c.err
	}
	return c.resp, nil
}

func TestRetryRecovers(t *testing.T) {
	inner := &countingClient{failFor: 2, err: errors.New("transient"), resp: "ok"}
	client := Wrap(inner, Retry(3, time.Millisecond))

	resp, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.EqualValues(t, 3, inner.calls.Load())
}

func TestRetryExhausts(t *testing.T) {
	wantErr := errors.New("still down")
	inner := &countingClient{failFor: 10, err: wantErr}
	client := Wrap(inner, Retry(2, time.Millisecond))

	_, err := client.Generate(context.Background(), "p")
	require.ErrorIs(t, err, wantErr)
	require.EqualValues(t, 2, inner.calls.Load())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &countingClient{failFor: 10, err: NewPermanentError(errors.New("bad api key"))}
	client := Wrap(inner, Retry(5, time.Millisecond))

	_, err := client.Generate(context.Background(), "p")
	var pErr *PermanentError
	require.ErrorAs(t, err, &pErr)
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mw := func(label string) Middleware {
		return func(next Client) Client {
			return clientFunc(func(ctx context.Context, prompt string) (string, error) {
				order = append(order, label)
				return next.Generate(ctx, prompt)
			})
		}
	}
	inner := &countingClient{resp: "ok"}
	client := Wrap(inner, mw("outer"), mw("inner"))
	_, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, []string{"outer", "inner"}, order)
}

type clientFunc func(ctx context.Context, prompt string) (string, error)

func (f clientFunc) Name() string { return "func" }
func (f clientFunc) Close() error { return nil }
func (f clientFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestCacheHitsSkipInner(t *testing.T) {
	inner := &countingClient{resp: "cached"}
	client := Wrap(inner, WithCache(8))
	ctx := WithStage(context.Background(), "test_designer")

	for i := 0; i < 3; i++ {
		resp, err := client.Generate(ctx, "same prompt")
		require.NoError(t, err)
		require.Equal(t, "cached", resp)
	}
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestCachePartitionsByStage(t *testing.T) {
	inner := &countingClient{resp: "r"}
	client := Wrap(inner, WithCache(8))

	_, err := client.Generate(WithStage(context.Background(), "a"), "p")
	require.NoError(t, err)
	_, err = client.Generate(WithStage(context.Background(), "b"), "p")
	require.NoError(t, err)
	require.EqualValues(t, 2, inner.calls.Load())
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	inner := &countingClient{failFor: 1, err: errors.New("once"), resp: "ok"}
	client := Wrap(inner, WithCache(8))
	ctx := WithStage(context.Background(), "s")

	_, err := client.Generate(ctx, "p")
	require.Error(t, err)
	resp, err := client.Generate(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestRateLimitHonorsContextCancel(t *testing.T) {
	inner := &countingClient{resp: "ok"}
	client := Wrap(inner, RateLimit(0.001, 1))

	ctx := context.Background()
	_, err := client.Generate(ctx, "first") // consumes the only token
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, "second")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFakeClientScriptsFIFO(t *testing.T) {
	fake := NewFakeClient()
	fake.Enqueue("test_case_writer", "not json at all")
	fake.Enqueue("test_case_writer", `{"test_cases": []}`)
	ctx := WithStage(context.Background(), "test_case_writer")

	first, err := fake.Generate(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "not json at all", first)

	second, err := fake.Generate(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, `{"test_cases": []}`, second)

	require.Equal(t, 2, fake.Calls("test_case_writer"))
}

func TestFakeClientDefaultsCoverAllStages(t *testing.T) {
	fake := NewFakeClient()
	for _, stage := range []string{"requirement_analyst", "test_designer", "test_case_writer", "quality_assurance"} {
		resp, err := fake.Generate(WithStage(context.Background(), stage), "p")
		require.NoError(t, err)
		require.NotEqual(t, "{}", resp, "stage %s should have a canned payload", stage)
	}
}
