package evalrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"sceneforge/internal/config"
	"sceneforge/internal/generation"
	"sceneforge/internal/logging"
	"sceneforge/internal/media"
	"sceneforge/internal/oracle"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

// Mode selects where evaluation cases come from.
type Mode string

const (
	// ModeCases replays a fixed fixture file of prompts.
	ModeCases Mode = "cases"
	// ModeProd samples recent applied requests from the ledger.
	ModeProd Mode = "prod"
)

// Options configures one evaluation run.
type Options struct {
	Mode        Mode
	FixturePath string
	// Limit caps evaluated cases; 0 means all (cases) or 20 per project (prod).
	Limit   int
	FocusID string
	OutPath string
	// SkipPlanPolicy overrides every case's cross-project policy when set.
	SkipPlanPolicy string
	Workers        int
}

// Runner evaluates cases against the resolver and the oracle. It never
// mutates project state.
type Runner struct {
	store   *store.Store
	decider oracle.Decider
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRunner wires an evaluation runner. A nil logger disables logging.
func NewRunner(st *store.Store, decider oracle.Decider, cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:   st,
		decider: decider,
		cfg:     cfg,
		logger:  logger.With(logging.String(logging.FieldComponent, "evalrun")),
	}
}

// Run executes one evaluation pass and returns the per-case results in
// input order plus the aggregate summary. Only one run may be active
// per data directory at a time.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, []CaseResult, error) {
	lock := flock.New(filepath.Join(r.cfg.Paths.DataDir, "evalrun.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("acquire eval lock: %w", err)
	}
	if !ok {
		return nil, nil, services.Wrap(services.ErrConflict, "evalrun", "run", "another evaluation run is in progress", nil)
	}
	defer func() { _ = lock.Unlock() }()

	cases, err := r.collectCases(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	started := time.Now()
	results := make([]CaseResult, len(cases))

	cacheSize := r.cfg.Eval.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	caches, err := newRunCaches(cacheSize)
	if err != nil {
		return nil, nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = r.cfg.Eval.Workers
	}
	if workers <= 0 {
		workers = 4
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := range cases {
		group.Go(func() error {
			results[i] = r.evalCase(groupCtx, cases[i], opts, caches)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	summary := summarize(opts.Mode, results, time.Since(started))
	if opts.OutPath != "" {
		if err := writeResults(opts.OutPath, results); err != nil {
			return nil, nil, err
		}
	}
	r.logger.Info("evaluation run finished",
		logging.Int("cases", summary.Total),
		logging.Int("operation_matches", summary.OperationMatches),
		logging.Int("media_matches", summary.MediaMatches),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, results, nil
}

func (r *Runner) collectCases(ctx context.Context, opts Options) ([]Case, error) {
	var cases []Case
	var err error
	switch opts.Mode {
	case ModeCases:
		if strings.TrimSpace(opts.FixturePath) == "" {
			return nil, services.Wrap(services.ErrValidation, "evalrun", "run", "cases mode requires a fixture file", nil)
		}
		cases, err = loadFixtureCases(opts.FixturePath)
	case ModeProd:
		perProject := opts.Limit
		if perProject <= 0 {
			perProject = 20
		}
		cases, err = sampleProductionCases(ctx, r.store, perProject)
	default:
		return nil, services.Wrap(services.ErrValidation, "evalrun", "run", fmt.Sprintf("unknown mode %q", opts.Mode), nil)
	}
	if err != nil {
		return nil, err
	}

	if focus := strings.TrimSpace(opts.FocusID); focus != "" {
		filtered := cases[:0]
		for _, c := range cases {
			if c.ID == focus {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			return nil, services.Wrap(services.ErrValidation, "evalrun", "run", fmt.Sprintf("no case matches focus id %q", focus), nil)
		}
		cases = filtered
	}
	if opts.Limit > 0 && len(cases) > opts.Limit {
		cases = cases[:opts.Limit]
	}
	return cases, nil
}

// runCaches hold per-run project and scene lookups so repeated cases
// against the same project do not re-query the store. They are created
// per Run and never shared across runs.
type runCaches struct {
	mu       sync.Mutex
	projects *lru.Cache[string, *store.Project]
	scenes   *lru.Cache[string, []*store.Scene]
}

func newRunCaches(size int) (*runCaches, error) {
	projects, err := lru.New[string, *store.Project](size)
	if err != nil {
		return nil, fmt.Errorf("project cache: %w", err)
	}
	scenes, err := lru.New[string, []*store.Scene](size)
	if err != nil {
		return nil, fmt.Errorf("scene cache: %w", err)
	}
	return &runCaches{projects: projects, scenes: scenes}, nil
}

func (c *runCaches) project(ctx context.Context, st *store.Store, id string) (*store.Project, error) {
	c.mu.Lock()
	cached, ok := c.projects.Get(id)
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	project, err := st.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.projects.Add(id, project)
	c.mu.Unlock()
	return project, nil
}

func (c *runCaches) liveScenes(ctx context.Context, st *store.Store, projectID string) ([]*store.Scene, error) {
	c.mu.Lock()
	cached, ok := c.scenes.Get(projectID)
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	scenes, err := st.ListScenes(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.scenes.Add(projectID, scenes)
	c.mu.Unlock()
	return scenes, nil
}

func (r *Runner) evalCase(ctx context.Context, c Case, opts Options, caches *runCaches) CaseResult {
	started := time.Now()
	result := CaseResult{ID: c.ID, ProjectID: c.Request.ProjectID}
	finish := func() CaseResult {
		result.ElapsedMs = time.Since(started).Milliseconds()
		return result
	}

	req := c.Request
	if policy := strings.TrimSpace(strings.ToLower(opts.SkipPlanPolicy)); policy != "" {
		req.CrossProjectPolicy = policy
	}

	if _, err := caches.project(ctx, r.store, req.ProjectID); err != nil {
		result.Error = err.Error()
		return finish()
	}
	scenes, err := caches.liveScenes(ctx, r.store, req.ProjectID)
	if err != nil {
		result.Error = err.Error()
		return finish()
	}

	norm, resolved, report, err := generation.ResolveOnly(req, r.cfg.Orchestrator.DefaultCrossProjectPolicy, scenes)
	if report != nil {
		result.Report = report
	}
	if err != nil {
		var skip *media.CrossProjectSkipError
		if errors.As(err, &skip) {
			result.SkippedCrossProject = true
		}
		result.Error = err.Error()
		return finish()
	}

	result.ResolvedURLs = resolved.URLs()
	result.ImageAction = string(resolved.ImageAction)

	decision, err := r.decider.Decide(ctx, norm, resolved, generation.SceneSummaries(scenes))
	if err != nil {
		result.Error = err.Error()
		return finish()
	}
	result.Operation = string(decision.Operation)
	result.Reasoning = decision.Reasoning

	score(&result, c.Expected)
	return finish()
}

func score(result *CaseResult, expected Expected) {
	if expected.Operation != "" {
		match := strings.EqualFold(expected.Operation, result.Operation)
		result.OperationMatch = &match
	}
	if expected.MediaURLs != nil {
		match := sameURLSet(expected.MediaURLs, result.ResolvedURLs)
		result.MediaMatch = &match
	}
	if expected.ImageAction != "" {
		match := strings.EqualFold(expected.ImageAction, result.ImageAction)
		result.ActionMatch = &match
	}
}

func sameURLSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
