// Package coordinator executes strategy plans: cache first, then the source
// call, then the ledger, cache write-through, merge, storage and
// notification, one step at a time.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/metrics"
)

// DefaultCallTimeout bounds one source call.
const DefaultCallTimeout = 30 * time.Second

// ErrEmptyQuery is returned when a non-empty plan is executed without a query.
var ErrEmptyQuery = errors.New("empty query")

// ErrSourceNotRegistered marks steps naming a source the registry does not hold.
var ErrSourceNotRegistered = errors.New("source not registered")

// ErrSourcePanicked marks a step whose source panicked while fetching or
// normalizing.
var ErrSourcePanicked = errors.New("source panicked")

// Config controls the Coordinator.
type Config struct {
	CallTimeout time.Duration
	// Topic receives one notification per step with results; empty disables.
	Topic string
}

// Coordinator runs plans against the registered sources.
type Coordinator struct {
	sources   jobs.SourceLookup
	cache     jobs.ResultCache
	usage     jobs.UsageLogger
	store     jobs.JobStore
	publisher jobs.Publisher
	clock     jobs.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Coordinator. cache, store and publisher may be nil.
func New(
	sources jobs.SourceLookup,
	cache jobs.ResultCache,
	usage jobs.UsageLogger,
	store jobs.JobStore,
	publisher jobs.Publisher,
	clock jobs.Clock,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sources:   sources,
		cache:     cache,
		usage:     usage,
		store:     store,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("coordinator"),
	}
}

// Execute runs plan in order. A failing step yields zero results and the
// plan continues. The returned map holds an entry, possibly empty, for every
// platform the plan targets.
func (c *Coordinator) Execute(
	ctx context.Context,
	plan []jobs.StrategyStep,
	req jobs.SearchRequest,
) (map[string][]jobs.NormalizedJob, []jobs.StepReport, error) {
	results := make(map[string][]jobs.NormalizedJob, len(plan))
	if len(plan) == 0 {
		return results, []jobs.StepReport{}, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, nil, ErrEmptyQuery
	}

	reports := make([]jobs.StepReport, 0, len(plan))
	for _, step := range plan {
		platform := strings.ToLower(step.TargetPlatform)
		if _, ok := results[platform]; !ok {
			results[platform] = []jobs.NormalizedJob{}
		}
		report, found := c.runStep(ctx, step, platform, req)
		results[platform] = append(results[platform], found...)
		reports = append(reports, report)
	}

	for platform, found := range results {
		if len(found) == 0 {
			c.logger.Warn("no results for platform", zap.String("platform", platform), zap.String("query", req.Query))
		}
	}
	return results, reports, nil
}

func (c *Coordinator) runStep(
	ctx context.Context,
	step jobs.StrategyStep,
	platform string,
	req jobs.SearchRequest,
) (jobs.StepReport, []jobs.NormalizedJob) {
	start := c.clock.Now()
	report := jobs.StepReport{Step: step, State: jobs.StepPending}
	logger := c.logger.With(zap.String("source", step.SourceName), zap.String("platform", platform))
	finish := func(outcome string) jobs.StepReport {
		c.advance(&report, jobs.StepDone, logger)
		report.Duration = c.clock.Now().Sub(start)
		metrics.ObserveStep(step.SourceName, platform, outcome)
		return report
	}

	src, ok := c.sources.Lookup(step.SourceName)
	if !ok {
		c.advance(&report, jobs.StepCalling, logger)
		c.fail(&report, ErrSourceNotRegistered, logger)
		return finish(metrics.OutcomeFailed), nil
	}
	desc := src.Descriptor()

	key := ""
	if c.cache != nil {
		key = c.cache.KeyFor(desc.Name, req.Query, cacheParams(desc, req, platform))
		cached, hit := c.cache.Get(ctx, key, desc.Kind)
		metrics.ObserveCacheLookup(desc.Name, hit)
		if hit {
			c.advance(&report, jobs.StepCacheHit, logger)
			report.CacheHit = true
			report.Results = len(cached)
			c.publish(ctx, req, step, platform, len(cached), true, logger)
			logger.Debug("cache hit", zap.Int("results", len(cached)))
			return finish(metrics.OutcomeCacheHit), cached
		}
	}

	c.advance(&report, jobs.StepCalling, logger)
	raws, found, err := c.call(ctx, src, req, platform, logger)
	if err != nil {
		c.fail(&report, fmt.Errorf("%s search: %w", desc.Name, err), logger)
		return finish(metrics.OutcomeFailed), nil
	}

	c.advance(&report, jobs.StepSuccess, logger)
	report.Results = len(found)
	if len(found) == 0 {
		logger.Info("step returned no results", zap.Int("raw", len(raws)))
		return finish(metrics.OutcomeEmpty), nil
	}

	if desc.Kind == jobs.KindAPI && c.usage != nil {
		c.usage.LogUsage(desc.Name, step.EstimatedCalls)
	}
	if c.cache != nil {
		if err := c.cache.Put(ctx, key, found); err != nil {
			logger.Warn("cache write failed", zap.Error(err))
		}
	}
	c.persist(ctx, desc.Name, found, logger)
	c.publish(ctx, req, step, platform, len(found), false, logger)
	logger.Info("step succeeded", zap.Int("results", len(found)))
	return finish(metrics.OutcomeSuccess), found
}

// call fetches from src under the per-call timeout and normalizes the
// records. A panic in either is returned as ErrSourcePanicked.
func (c *Coordinator) call(
	ctx context.Context,
	src jobs.Source,
	req jobs.SearchRequest,
	platform string,
	logger *zap.Logger,
) (raws []jobs.RawJob, found []jobs.NormalizedJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("source panicked", zap.Any("panic", r), zap.Stack("stack"))
			raws, found, err = nil, nil, fmt.Errorf("%w: %v", ErrSourcePanicked, r)
		}
	}()
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	raws, err = src.Fetch(callCtx, req, platform)
	if err != nil {
		return nil, nil, err
	}
	return raws, c.normalize(src, raws, logger), nil
}

func (c *Coordinator) normalize(src jobs.Source, raws []jobs.RawJob, logger *zap.Logger) []jobs.NormalizedJob {
	now := c.clock.Now()
	out := make([]jobs.NormalizedJob, 0, len(raws))
	for _, raw := range raws {
		job, err := src.Normalize(raw, now)
		if err != nil {
			logger.Debug("record dropped", zap.Error(err))
			continue
		}
		out = append(out, job)
	}
	return out
}

func (c *Coordinator) persist(ctx context.Context, source string, found []jobs.NormalizedJob, logger *zap.Logger) {
	if c.store == nil {
		return
	}
	for _, job := range found {
		_, err := c.store.AddJob(ctx, job)
		metrics.ObserveJobStored(source, err)
		if err != nil {
			logger.Error("store job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (c *Coordinator) publish(
	ctx context.Context,
	req jobs.SearchRequest,
	step jobs.StrategyStep,
	platform string,
	results int,
	cacheHit bool,
	logger *zap.Logger,
) {
	if c.cfg.Topic == "" || c.publisher == nil {
		return
	}
	payload := map[string]any{
		"query":     req.Query,
		"source":    step.SourceName,
		"platform":  platform,
		"results":   results,
		"cache_hit": cacheHit,
		"timestamp": c.clock.Now().Format(time.RFC3339),
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.Topic, payload); err != nil {
		logger.Warn("publish step failed", zap.Error(err))
	}
}

func (c *Coordinator) fail(report *jobs.StepReport, err error, logger *zap.Logger) {
	c.advance(report, jobs.StepFailed, logger)
	report.Error = err.Error()
	logger.Warn("step failed", zap.Error(err))
}

func (c *Coordinator) advance(report *jobs.StepReport, next jobs.StepState, logger *zap.Logger) {
	if err := transition(report, next); err != nil {
		logger.Error("invalid step transition", zap.Error(err))
	}
}

// cacheParams are the request parameters that distinguish cached payloads.
func cacheParams(desc jobs.SourceDescriptor, req jobs.SearchRequest, platform string) map[string]any {
	params := map[string]any{
		"location":    req.Location,
		"remote_only": req.RemoteOnly,
		"max_results": req.MaxResults,
		"platform":    platform,
	}
	if desc.Kind == jobs.KindScraper {
		params["max_pages"] = req.MaxPages
	}
	return params
}
