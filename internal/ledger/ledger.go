// Package ledger tracks per-API monthly call counters and answers quota
// questions for the planner and coordinator.
//
// Every operation runs under one mutex. The first touch of an API in a new
// calendar month resets its counter inside the same critical section, and
// every mutation is persisted through the Backend before the call returns.
// Persistence failures are logged and the in-memory counters stay
// authoritative.
//
// A Backend that also implements Counter is shared with other processes:
// reads and increments go through its atomic Consume and the local records
// only serve as a fallback when the backend is unreachable.
package ledger

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/metrics"
)

// Unlimited is returned by Remaining for APIs without a quota.
const Unlimited = math.MaxInt

const periodLayout = "2006-01"

// Status levels reported by Status.
const (
	LevelHealthy  = "healthy"
	LevelModerate = "moderate"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Config controls quota limits and warning thresholds.
type Config struct {
	Quotas         map[string]int
	LowWater       int
	Notice         int
	ScarceCeiling  int
	PersistTimeout time.Duration
}

// QuotaStatus summarizes one API's standing for the current period.
type QuotaStatus struct {
	Used        int     `json:"used"`
	Limit       int     `json:"limit"`
	Remaining   int     `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	Level       string  `json:"level"`
	Period      string  `json:"period"`
}

// Ledger is the process-wide usage ledger.
type Ledger struct {
	mu      sync.Mutex
	backend Backend
	counter Counter
	clock   jobs.Clock
	cfg     Config
	records map[string]UsageRecord
	logger  *zap.Logger
}

// New loads persisted usage from backend and returns a ready Ledger. A load
// failure is logged and the ledger starts empty.
func New(ctx context.Context, backend Backend, clock jobs.Clock, cfg Config, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LowWater <= 0 {
		cfg.LowWater = 20
	}
	if cfg.Notice <= 0 {
		cfg.Notice = 50
	}
	if cfg.Notice < cfg.LowWater {
		cfg.Notice = cfg.LowWater
	}
	if cfg.ScarceCeiling <= 0 {
		cfg.ScarceCeiling = 500
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	quotas := make(map[string]int, len(cfg.Quotas))
	for api, q := range cfg.Quotas {
		quotas[api] = q
	}
	cfg.Quotas = quotas

	l := &Ledger{
		backend: backend,
		clock:   clock,
		cfg:     cfg,
		records: map[string]UsageRecord{},
		logger:  logger.Named("ledger"),
	}
	if c, ok := backend.(Counter); ok {
		l.counter = c
	}
	if backend != nil {
		records, err := backend.Load(ctx)
		if err != nil {
			l.logger.Error("load usage ledger failed, starting empty", zap.Error(err))
		} else if records != nil {
			l.records = records
		}
	}
	for api := range l.cfg.Quotas {
		metrics.SetQuotaRemaining(api, l.Remaining(api))
	}
	return l
}

// CanUse reports whether n more calls fit within api's quota.
func (l *Ledger) CanUse(api string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canUseLocked(api, n)
}

// Remaining returns the calls left this period, or Unlimited.
func (l *Ledger) Remaining(api string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked(api)
}

// Used returns the calls spent this period.
func (l *Ledger) Used(api string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLocked(api).CallsUsed
}

// LogUsage records n successful calls against api and persists the ledger.
func (l *Ledger) LogUsage(api string, n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, _ := l.consumeLocked(api, n, -1)
	l.reportLocked(api, rec)
}

// TryConsume reserves n calls if they fit, as one critical section.
func (l *Ledger) TryConsume(api string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return l.canUseLocked(api, n)
	}
	limit, metered := l.cfg.Quotas[api]
	if !metered {
		limit = -1
	}
	rec, ok := l.consumeLocked(api, n, limit)
	if ok {
		l.reportLocked(api, rec)
	}
	return ok
}

// Status reports every metered API's standing for the current period.
func (l *Ledger) Status() map[string]QuotaStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]QuotaStatus, len(l.cfg.Quotas))
	for api, limit := range l.cfg.Quotas {
		rec := l.currentLocked(api)
		st := QuotaStatus{
			Used:      rec.CallsUsed,
			Limit:     limit,
			Remaining: max(0, limit-rec.CallsUsed),
			Period:    rec.Period,
		}
		if limit > 0 {
			st.PercentUsed = float64(rec.CallsUsed) / float64(limit) * 100
		} else {
			st.PercentUsed = 100
		}
		st.Level = levelFor(st.PercentUsed)
		out[api] = st
	}
	return out
}

// Snapshot returns a copy of every record, rolled to the current period.
func (l *Ledger) Snapshot() map[string]UsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	apis := make([]string, 0, len(l.records)+len(l.cfg.Quotas))
	for api := range l.records {
		apis = append(apis, api)
	}
	for api := range l.cfg.Quotas {
		if _, ok := l.records[api]; !ok {
			apis = append(apis, api)
		}
	}
	sort.Strings(apis)
	out := make(map[string]UsageRecord, len(apis))
	for _, api := range apis {
		out[api] = l.currentLocked(api)
	}
	return out
}

// Quota returns api's monthly limit and whether it is metered.
func (l *Ledger) Quota(api string) (int, bool) {
	q, ok := l.cfg.Quotas[api]
	return q, ok
}

func (l *Ledger) canUseLocked(api string, n int) bool {
	limit, metered := l.cfg.Quotas[api]
	if !metered {
		return true
	}
	return l.currentLocked(api).CallsUsed+n <= limit
}

func (l *Ledger) remainingLocked(api string) int {
	limit, metered := l.cfg.Quotas[api]
	if !metered {
		return Unlimited
	}
	return max(0, limit-l.currentLocked(api).CallsUsed)
}

// consumeLocked adds n calls to api when the result stays within limit. A
// negative limit is unbounded and n of zero only reads. It returns the
// resulting record and whether n was applied.
func (l *Ledger) consumeLocked(api string, n, limit int) (UsageRecord, bool) {
	period := l.period()
	if l.counter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.PersistTimeout)
		used, applied, err := l.counter.Consume(ctx, api, period, n, limit)
		cancel()
		if err == nil {
			rec := UsageRecord{Period: period, CallsUsed: used}
			l.records[api] = rec
			return rec, applied
		}
		l.logger.Error("shared usage counter failed, using local records",
			zap.String("api", api), zap.Error(err))
	}
	rec := l.localLocked(api, period)
	if limit >= 0 && rec.CallsUsed+n > limit {
		return rec, false
	}
	if n > 0 {
		rec.CallsUsed += n
		l.records[api] = rec
		if l.counter == nil {
			l.persistLocked()
		}
	}
	return rec, true
}

func (l *Ledger) reportLocked(api string, rec UsageRecord) {
	limit, metered := l.cfg.Quotas[api]
	if !metered {
		l.logger.Debug("usage logged", zap.String("api", api), zap.Int("used", rec.CallsUsed))
		return
	}
	remaining := max(0, limit-rec.CallsUsed)
	metrics.SetQuotaRemaining(api, remaining)
	l.logger.Debug("usage logged",
		zap.String("api", api),
		zap.Int("used", rec.CallsUsed),
		zap.Int("limit", limit),
		zap.Int("remaining", remaining),
	)
	if limit > l.cfg.ScarceCeiling {
		return
	}
	switch {
	case remaining <= l.cfg.LowWater:
		metrics.ObserveQuotaLowWater(api)
		l.logger.Warn("quota low",
			zap.String("api", api),
			zap.Int("remaining", remaining),
			zap.Int("limit", limit),
		)
	case remaining <= l.cfg.Notice:
		l.logger.Info("quota running down",
			zap.String("api", api),
			zap.Int("remaining", remaining),
		)
	}
}

// currentLocked returns api's record for the current period.
func (l *Ledger) currentLocked(api string) UsageRecord {
	if l.counter != nil {
		rec, _ := l.consumeLocked(api, 0, -1)
		return rec
	}
	return l.localLocked(api, l.period())
}

// localLocked reads api's local record, resetting and persisting it when
// the month has rolled over.
func (l *Ledger) localLocked(api, period string) UsageRecord {
	rec, ok := l.records[api]
	if ok && rec.Period == period {
		return rec
	}
	rec = UsageRecord{Period: period}
	if ok {
		l.records[api] = rec
		l.logger.Info("usage period rolled over", zap.String("api", api), zap.String("period", period))
		if l.counter == nil {
			l.persistLocked()
		}
	}
	return rec
}

func (l *Ledger) period() string {
	return l.clock.Now().UTC().Format(periodLayout)
}

func (l *Ledger) persistLocked() {
	if l.backend == nil {
		return
	}
	snapshot := make(map[string]UsageRecord, len(l.records))
	for api, rec := range l.records {
		snapshot[api] = rec
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.PersistTimeout)
	defer cancel()
	if err := l.backend.Save(ctx, snapshot); err != nil {
		l.logger.Error("persist usage ledger failed", zap.Error(err))
	}
}

func levelFor(percent float64) string {
	switch {
	case percent >= 90:
		return LevelCritical
	case percent >= 75:
		return LevelWarning
	case percent >= 50:
		return LevelModerate
	default:
		return LevelHealthy
	}
}
