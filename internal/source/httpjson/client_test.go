package httpjson

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsweep/internal/ratelimit"
)

func TestGetDecodesAndForwardsParams(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "react", r.URL.Query().Get("what"))
		require.Equal(t, "secret", r.Header.Get("X-Key"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 2}`))
	}))
	defer server.Close()

	c := New("adzuna", nil, ratelimit.New(ratelimit.Config{}))
	var out struct {
		Count int `json:"count"`
	}
	err := c.Get(context.Background(), server.URL, url.Values{"what": {"react"}}, map[string]string{"X-Key": "secret"}, &out)
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
}

func TestGetRejectsNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer server.Close()

	var out map[string]any
	err := New("jsearch", nil, nil).Get(context.Background(), server.URL, nil, nil, &out)
	require.ErrorIs(t, err, ErrStatus)
	require.Contains(t, err.Error(), "429")
	require.Contains(t, err.Error(), "quota exhausted")
}

func TestGetRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := New("arbeitnow", nil, nil).Get(context.Background(), server.URL, nil, nil, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode arbeitnow response")
}

func TestGetHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out map[string]any
	require.Error(t, New("adzuna", nil, nil).Get(ctx, server.URL, nil, nil, &out))
}
