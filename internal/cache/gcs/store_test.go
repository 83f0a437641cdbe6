package gcs_test

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/jobsweep/internal/cache/gcs"
	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// fakeBucket simulates the subset of the GCS JSON and XML APIs the store uses.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	updated time.Time
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/b/test-bucket/o") {
		name := r.URL.Query().Get("name")
		media, err := readMedia(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[name] = media
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":%q,"bucket":"test-bucket","updated":%q}`, name, f.updated.Format(time.RFC3339Nano))
		return
	}

	name := r.URL.Path
	if i := strings.Index(name, "/o/"); i >= 0 {
		name = name[i+len("/o/"):]
	} else {
		name = strings.TrimPrefix(name, "/test-bucket/")
	}
	data, ok := f.objects[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"No such object"}}`)
		return
	}
	if strings.Contains(r.URL.Path, "/o/") && r.URL.Query().Get("alt") != "media" {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":%q,"bucket":"test-bucket","generation":"1","updated":%q,"size":"%d"}`,
			name, f.updated.Format(time.RFC3339Nano), len(data))
		return
	}
	w.Header().Set("X-Goog-Generation", "1")
	w.Header().Set("Last-Modified", f.updated.Format(http.TimeFormat))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// readMedia returns the last part of a multipart upload, which carries the object bytes.
func readMedia(r *http.Request) ([]byte, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	var media []byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return media, nil
		}
		if err != nil {
			return nil, err
		}
		if media, err = io.ReadAll(part); err != nil {
			return nil, err
		}
	}
}

func newTestStore(t *testing.T, bucket *fakeBucket) *gcs.Store {
	t.Helper()

	server := httptest.NewServer(bucket)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket", Prefix: "/cache/"})
	require.NoError(t, err)
	return store
}

func TestStoreWriteThenRead(t *testing.T) {
	t.Parallel()

	updated := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	bucket := &fakeBucket{objects: map[string][]byte{}, updated: updated}
	store := newTestStore(t, bucket)

	require.NoError(t, store.Write(context.Background(), "abc", []byte(`[{"id":"1"}]`)))
	bucket.mu.Lock()
	_, ok := bucket.objects["cache/abc.json"]
	bucket.mu.Unlock()
	require.True(t, ok, "object written under prefix")

	data, created, err := store.Read(context.Background(), "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(data))
	assert.True(t, created.Equal(updated), "created %v", created)
}

func TestStoreReadMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &fakeBucket{objects: map[string][]byte{}, updated: time.Now()})
	_, _, err := store.Read(context.Background(), "nope")
	require.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestStoreWriteError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.Error(t, store.Write(ctx, "k", []byte("[]")))
	require.Error(t, store.Write(ctx, "", []byte("[]")))
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)
}
