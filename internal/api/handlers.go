package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/ledger"
	"github.com/JakeFAU/jobsweep/internal/search"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
	readTimeout     = 3 * time.Second

	maxSearchBody    = 64 << 10
	maxSearchResults = 200
	maxSearchPages   = 10
)

type searchRequest struct {
	Query      string   `json:"query"`
	Location   string   `json:"location"`
	Platforms  []string `json:"platforms"`
	RemoteOnly *bool    `json:"remote_only"`
	MaxResults int      `json:"max_results"`
	MaxPages   int      `json:"max_pages"`
}

// search handles POST /v1/search. It returns the full result on success, 400
// for malformed bodies or an empty query, 413 for oversized bodies, or 500 if
// the search fails. max_results and max_pages are clamped to the server's
// ceilings.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSearchBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req := jobs.SearchRequest{
		Query:      body.Query,
		Location:   body.Location,
		Platforms:  body.Platforms,
		RemoteOnly: boolOrDefault(body.RemoteOnly, s.cfg.Search.RemoteOnly),
		MaxResults: min(body.MaxResults, max(maxSearchResults, s.cfg.Search.MaxResults)),
		MaxPages:   min(body.MaxPages, max(maxSearchPages, s.cfg.Search.MaxPages)),
	}
	res, err := s.deps.Search.Search(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// plan handles GET /v1/plan?query=&platforms=a,b&location=. No quota is spent.
func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := jobs.SearchRequest{
		Query:      q.Get("query"),
		Location:   q.Get("location"),
		Platforms:  splitList(q.Get("platforms")),
		RemoteOnly: s.cfg.Search.RemoteOnly,
	}
	preview, err := s.deps.Search.Preview(req)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type quotaDTO struct {
	API string `json:"api"`
	ledger.QuotaStatus
}

// quota handles GET /v1/quota, sorted by API name.
func (s *Server) quota(w http.ResponseWriter, _ *http.Request) {
	status := s.deps.Quota.Status()
	out := make([]quotaDTO, 0, len(status))
	for api, st := range status {
		out = append(out, quotaDTO{API: api, QuotaStatus: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].API < out[j].API })
	writeJSON(w, http.StatusOK, map[string]any{"quotas": out})
}

// sources handles GET /v1/sources in manifest order.
func (s *Server) sources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.deps.Sources.All()})
}

// listJobs handles GET /v1/jobs?source=&limit=. Returns {"jobs": [...]}, 400
// for an invalid limit, 503 when no store is wired, or 500 on store errors.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	limit, err := parseLimit(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	found, err := s.deps.Store.ListJobs(ctx, strings.TrimSpace(r.URL.Query().Get("source")), limit)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if found == nil {
		found = []jobs.NormalizedJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": found})
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("search failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "search failed")
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}
