package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitDelaysSecondToken(t *testing.T) {
	t.Parallel()

	l := New(Config{Default: Rate{RPS: 10, Burst: 1}})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "adzuna"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "adzuna"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterBucketsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{Default: Rate{RPS: 0.001, Burst: 1}})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "adzuna"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "jsearch"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterOverridesAndUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{
		Default:   Rate{RPS: 0.001, Burst: 1},
		Overrides: map[string]Rate{"arbeitnow": {RPS: 0}},
	})
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(ctx, "arbeitnow"))
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(Config{Default: Rate{RPS: 0.001, Burst: 1}})
	require.NoError(t, l.Wait(context.Background(), "jsearch"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "jsearch"))
}

func TestTransportWaitsBeforeRoundTrip(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	l := New(Config{Default: Rate{RPS: 0.001, Burst: 1}})
	client := &http.Client{Transport: l.Transport(nil, "jsearch")}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
}
