package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// UsageRecord is one API's counter for a calendar month ("YYYY-MM").
type UsageRecord struct {
	Period    string `json:"current_period"`
	CallsUsed int    `json:"usage"`
}

// UnmarshalJSON also accepts the older "current_month" key.
func (r *UsageRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Period       string `json:"current_period"`
		CurrentMonth string `json:"current_month"`
		CallsUsed    int    `json:"usage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode usage record: %w", err)
	}
	r.Period = raw.Period
	if r.Period == "" {
		r.Period = raw.CurrentMonth
	}
	r.CallsUsed = max(0, raw.CallsUsed)
	return nil
}

// Backend loads and stores the full set of usage records.
type Backend interface {
	Load(ctx context.Context) (map[string]UsageRecord, error)
	Save(ctx context.Context, records map[string]UsageRecord) error
}

// Counter is implemented by backends shared between processes. When the
// backend is a Counter the ledger reads and increments through it instead of
// trusting its local records.
type Counter interface {
	Consume(ctx context.Context, api, period string, n, limit int) (used int, applied bool, err error)
}

// FileBackend stores the ledger as one JSON document on disk.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend persisting to path. Parent directories are
// created on first save.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	return &FileBackend{path: filepath.Clean(path)}, nil
}

// Path returns the ledger file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads the ledger file. A missing file is an empty ledger.
func (b *FileBackend) Load(_ context.Context) (map[string]UsageRecord, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]UsageRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", b.path, err)
	}
	records := map[string]UsageRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", b.path, err)
	}
	return records, nil
}

// Save writes the ledger through a temp file and rename.
func (b *FileBackend) Save(_ context.Context, records map[string]UsageRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// MemoryBackend keeps records in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]UsageRecord
	saves   int
}

// NewMemoryBackend returns a backend seeded with records.
func NewMemoryBackend(records map[string]UsageRecord) *MemoryBackend {
	b := &MemoryBackend{records: map[string]UsageRecord{}}
	for k, v := range records {
		b.records[k] = v
	}
	return b
}

// Load returns a copy of the stored records.
func (b *MemoryBackend) Load(_ context.Context) (map[string]UsageRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]UsageRecord, len(b.records))
	for k, v := range b.records {
		out[k] = v
	}
	return out, nil
}

// Save replaces the stored records.
func (b *MemoryBackend) Save(_ context.Context, records map[string]UsageRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = make(map[string]UsageRecord, len(records))
	for k, v := range records {
		b.records[k] = v
	}
	b.saves++
	return nil
}

// Saves reports how many times Save was called.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}
