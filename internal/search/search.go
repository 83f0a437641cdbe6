// Package search runs a complete search: plan, execute, then fall back to
// scrapers for platforms the APIs left empty.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/planner"
)

// ErrEmptyQuery is returned for searches without a query.
var ErrEmptyQuery = errors.New("query is required")

// Planner builds strategy plans.
type Planner interface {
	Priority(query string) jobs.Priority
	Plan(query string, platforms []string, maxResults int) []jobs.StrategyStep
	FallbackPlan(platforms []string) []jobs.StrategyStep
	Recommendations(query string, platforms []string) []string
}

// Executor runs strategy plans.
type Executor interface {
	Execute(ctx context.Context, plan []jobs.StrategyStep, req jobs.SearchRequest) (map[string][]jobs.NormalizedJob, []jobs.StepReport, error)
}

// Defaults fill request fields the caller left unset.
type Defaults struct {
	Platforms  []string
	MaxResults int `mapstructure:"max_results"`
	MaxPages   int `mapstructure:"max_pages"`
}

// Preview is a dry-run plan.
type Preview struct {
	Query           string              `json:"query"`
	Priority        jobs.Priority       `json:"priority"`
	Platforms       []string            `json:"platforms"`
	Plan            []jobs.StrategyStep `json:"plan"`
	Unfulfilled     []string            `json:"unfulfilled"`
	Recommendations []string            `json:"recommendations"`
}

// Result is the outcome of one search.
type Result struct {
	Query           string                          `json:"query"`
	Priority        jobs.Priority                   `json:"priority"`
	Plan            []jobs.StrategyStep             `json:"plan"`
	Fallback        []jobs.StrategyStep             `json:"fallback"`
	Jobs            map[string][]jobs.NormalizedJob `json:"jobs"`
	Reports         []jobs.StepReport               `json:"reports"`
	Unfulfilled     []string                        `json:"unfulfilled"`
	Recommendations []string                        `json:"recommendations"`
}

// Total counts the jobs across platforms.
func (r Result) Total() int {
	n := 0
	for _, found := range r.Jobs {
		n += len(found)
	}
	return n
}

// Service serializes searches so planning and quota logging of overlapping
// requests never interleave. A search waiting for its turn gives up when its
// context ends.
type Service struct {
	slot     chan struct{}
	planner  Planner
	executor Executor
	defaults Defaults
	logger   *zap.Logger
}

// New constructs a Service.
func New(p Planner, executor Executor, defaults Defaults, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.MaxResults <= 0 {
		defaults.MaxResults = 50
	}
	if defaults.MaxPages <= 0 {
		defaults.MaxPages = 3
	}
	return &Service{
		slot:     make(chan struct{}, 1),
		planner:  p,
		executor: executor,
		defaults: defaults,
		logger:   logger.Named("search"),
	}
}

// Preview plans req without executing it.
func (s *Service) Preview(req jobs.SearchRequest) (Preview, error) {
	req, err := s.prepare(req)
	if err != nil {
		return Preview{}, err
	}
	if err := s.acquire(context.Background()); err != nil {
		return Preview{}, err
	}
	defer s.release()

	plan := s.planner.Plan(req.Query, req.Platforms, req.MaxResults)
	return Preview{
		Query:           req.Query,
		Priority:        s.planner.Priority(req.Query),
		Platforms:       req.Platforms,
		Plan:            plan,
		Unfulfilled:     planner.Unfulfilled(req.Platforms, plan),
		Recommendations: s.planner.Recommendations(req.Query, req.Platforms),
	}, nil
}

// Search plans and executes req. Platforms whose API steps all came back
// empty are retried once against the scrapers that cover them.
func (s *Service) Search(ctx context.Context, req jobs.SearchRequest) (Result, error) {
	req, err := s.prepare(req)
	if err != nil {
		return Result{}, err
	}
	if err := s.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.release()

	res := Result{
		Query:           req.Query,
		Priority:        s.planner.Priority(req.Query),
		Recommendations: s.planner.Recommendations(req.Query, req.Platforms),
		Fallback:        []jobs.StrategyStep{},
	}
	res.Plan = s.planner.Plan(req.Query, req.Platforms, req.MaxResults)
	found, reports, err := s.executor.Execute(ctx, res.Plan, req)
	if err != nil {
		return Result{}, err
	}
	res.Jobs = found
	res.Reports = reports

	if empty := emptyAPIPlatforms(res.Plan, found); len(empty) > 0 {
		res.Fallback = s.planner.FallbackPlan(empty)
		if len(res.Fallback) > 0 {
			s.logger.Info("falling back to scrapers", zap.Strings("platforms", empty))
			more, moreReports, err := s.executor.Execute(ctx, res.Fallback, req)
			if err != nil {
				return Result{}, err
			}
			for platform, jobsFound := range more {
				res.Jobs[platform] = append(res.Jobs[platform], jobsFound...)
			}
			res.Reports = append(res.Reports, moreReports...)
		}
	}

	for _, platform := range req.Platforms {
		if _, ok := res.Jobs[platform]; !ok {
			res.Jobs[platform] = []jobs.NormalizedJob{}
		}
	}
	res.Unfulfilled = planner.Unfulfilled(req.Platforms, append(append([]jobs.StrategyStep{}, res.Plan...), res.Fallback...))
	s.logger.Info("search finished",
		zap.String("query", req.Query),
		zap.Stringer("priority", res.Priority),
		zap.Int("steps", len(res.Reports)),
		zap.Int("jobs", res.Total()),
		zap.Strings("unfulfilled", res.Unfulfilled),
	)
	return res, nil
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running search: %w", ctx.Err())
	}
}

func (s *Service) release() {
	<-s.slot
}

func (s *Service) prepare(req jobs.SearchRequest) (jobs.SearchRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, ErrEmptyQuery
	}
	req.Platforms = planner.Platforms(req.Platforms)
	if len(req.Platforms) == 0 {
		req.Platforms = planner.Platforms(s.defaults.Platforms)
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.defaults.MaxResults
	}
	if req.MaxPages <= 0 {
		req.MaxPages = s.defaults.MaxPages
	}
	return req, nil
}

// emptyAPIPlatforms lists, in plan order, the platforms targeted by API
// steps that produced no results.
func emptyAPIPlatforms(plan []jobs.StrategyStep, found map[string][]jobs.NormalizedJob) []string {
	seen := make(map[string]bool, len(plan))
	out := make([]string, 0)
	for _, step := range plan {
		platform := strings.ToLower(step.TargetPlatform)
		if step.EstimatedCalls == 0 || seen[platform] {
			continue
		}
		seen[platform] = true
		if len(found[platform]) == 0 {
			out = append(out, platform)
		}
	}
	return out
}
