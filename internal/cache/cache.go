// Package cache is the content-addressed, time-boxed result cache that keeps
// repeated queries from re-spending quota.
//
// Entries are addressed by a SHA-256 digest of the canonical (source, query,
// params) tuple and expire lazily: an entry older than its source kind's TTL
// reads as a miss. Corrupt entries also read as misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// DefaultTTL applies when a source kind has no explicit TTL.
const DefaultTTL = 24 * time.Hour

// Store keeps encoded entries. Read returns the entry's creation time and
// jobs.ErrNotFound when the key is absent.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, time.Time, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Pruner is implemented by stores that can drop expired entries eagerly.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// ErrPruneUnsupported is returned by Prune when the store cannot prune.
var ErrPruneUnsupported = errors.New("cache store does not support pruning")

// Config sets per source kind lifetimes.
type Config struct {
	APITTL     time.Duration
	ScraperTTL time.Duration
}

// Cache implements jobs.ResultCache over a Store.
type Cache struct {
	store  Store
	hasher jobs.Hasher
	clock  jobs.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Cache.
func New(store Store, hasher jobs.Hasher, clock jobs.Clock, cfg Config, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if hasher == nil {
		return nil, errors.New("cache hasher is required")
	}
	if clock == nil {
		return nil, errors.New("cache clock is required")
	}
	if cfg.APITTL <= 0 {
		cfg.APITTL = DefaultTTL
	}
	if cfg.ScraperTTL <= 0 {
		cfg.ScraperTTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, hasher: hasher, clock: clock, cfg: cfg, logger: logger.Named("cache")}, nil
}

// KeyFor derives the cache key for a (source, query, params) tuple. Source
// and query are case-folded, params are serialized with sorted keys.
func (c *Cache) KeyFor(source, query string, params map[string]any) string {
	digest, err := c.hasher.Hash(Canonical(source, query, params))
	if err != nil {
		c.logger.Error("hash cache key failed", zap.String("source", source), zap.Error(err))
		return ""
	}
	return digest
}

// Prune removes entries older than the longest TTL, which no Get can still
// return, and reports how many were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	p, ok := c.store.(Pruner)
	if !ok {
		return 0, ErrPruneUnsupported
	}
	cutoff := c.clock.Now().Add(-max(c.cfg.APITTL, c.cfg.ScraperTTL))
	removed, err := p.Prune(ctx, cutoff)
	if err != nil {
		return removed, fmt.Errorf("prune cache: %w", err)
	}
	c.logger.Info("cache pruned", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	return removed, nil
}

// Get returns the cached payload for key when it is younger than kind's TTL.
func (c *Cache) Get(ctx context.Context, key string, kind jobs.SourceKind) ([]jobs.NormalizedJob, bool) {
	if key == "" {
		return nil, false
	}
	data, created, err := c.store.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, jobs.ErrNotFound) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if age := c.clock.Now().Sub(created); age >= c.ttl(kind) {
		c.logger.Debug("cache entry expired", zap.String("key", key), zap.Duration("age", age))
		return nil, false
	}
	var payload []jobs.NormalizedJob
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if payload == nil {
		payload = []jobs.NormalizedJob{}
	}
	return payload, true
}

// Put overwrites the entry for key.
func (c *Cache) Put(ctx context.Context, key string, payload []jobs.NormalizedJob) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if payload == nil {
		payload = []jobs.NormalizedJob{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.store.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

func (c *Cache) ttl(kind jobs.SourceKind) time.Duration {
	if kind == jobs.KindScraper {
		return c.cfg.ScraperTTL
	}
	return c.cfg.APITTL
}

// Canonical renders the byte string a cache key is hashed from.
func Canonical(source, query string, params map[string]any) []byte {
	var b strings.Builder
	b.WriteString(`{"source":`)
	b.WriteString(strconv.Quote(strings.ToLower(strings.TrimSpace(source))))
	b.WriteString(`,"query":`)
	b.WriteString(strconv.Quote(strings.ToLower(strings.Join(strings.Fields(query), " "))))
	b.WriteString(`,"params":{`)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(strings.ToLower(k)))
		b.WriteByte(':')
		b.WriteString(canonicalValue(params[k]))
	}
	b.WriteString("}}")
	return []byte(b.String())
}

func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(strings.ToLower(strings.TrimSpace(t)))
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case float32:
		return canonicalFloat(float64(t))
	case float64:
		return canonicalFloat(t)
	case []string:
		parts := make([]string, len(t))
		for i, s := range t {
			parts[i] = canonicalValue(s)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return strconv.Quote(fmt.Sprint(t))
		}
		return string(data)
	}
}

func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
