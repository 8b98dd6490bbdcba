package generation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sceneforge/internal/config"
	"sceneforge/internal/logging"
	"sceneforge/internal/media"
	"sceneforge/internal/oracle"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

// Orchestrator drives one generation request through the pipeline.
// It is safe for concurrent use; requests share nothing but the store.
type Orchestrator struct {
	store   *store.Store
	decider oracle.Decider
	cfg     *config.Config
	logger  *slog.Logger
}

// New wires an orchestrator. A nil logger disables logging.
func New(st *store.Store, decider oracle.Decider, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:   st,
		decider: decider,
		cfg:     cfg,
		logger:  logger.With(logging.String(logging.FieldComponent, "orchestrator")),
	}
}

// Handle runs the full sequence for one request: normalize, resolve
// media, begin-or-replay on the ledger, consult the oracle, apply the
// operation, finalize. Before finalization no scene mutation is
// visible; after it the result is permanent and replay-safe.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	norm, err := normalizeRequest(req, o.cfg.Orchestrator.DefaultCrossProjectPolicy)
	if err != nil {
		return nil, err
	}
	ctx = services.WithProjectID(ctx, norm.ProjectID)
	logger := o.logger.With(
		logging.String(logging.FieldProjectID, norm.ProjectID),
		logging.String(logging.FieldIdempotencyKey, norm.IdempotencyKey),
	)

	project, err := o.store.GetProject(ctx, norm.ProjectID)
	if err != nil {
		return nil, err
	}
	liveScenes, err := o.store.ListScenes(ctx, norm.ProjectID, false)
	if err != nil {
		return nil, err
	}

	resolved, report, err := media.Resolve(norm.mediaRequest(), norm.History, sceneRefs(liveScenes))
	if err != nil {
		logger.Warn("media resolution failed", logging.Error(err))
		return nil, err
	}
	var warnings []string
	if norm.Policy == media.PolicyWarn && !report.Empty() {
		for _, url := range report.SampleURLs {
			warnings = append(warnings, "foreign media kept by warn policy: "+url)
		}
		logger.Warn("cross-project media kept",
			logging.Int("hits", report.SkippedPlanHits))
	}

	payload, err := norm.payloadJSON()
	if err != nil {
		return nil, err
	}
	outcome, err := o.store.BeginOrReplay(ctx, norm.ProjectID, norm.IdempotencyKey, payload, o.pendingLease())
	if err != nil {
		return nil, err
	}
	if outcome.Replayed {
		logger.Info("replaying stored result",
			logging.String(logging.FieldEventType, "ledger_replay"))
		return decodeResult(outcome.Record)
	}
	reservation := outcome.Reservation

	decision, err := o.decider.Decide(ctx, oracleRequest(norm), resolved, sceneSummaries(liveScenes))
	if err != nil {
		if services.IsRetryable(err) {
			// Leave the reservation pending: the lease makes a later
			// identical submission adopt and retry it.
			logger.Warn("oracle unavailable, reservation left pending", logging.Error(err))
			return nil, err
		}
		o.abandon(ctx, logger, norm, reservation, err)
		return nil, err
	}
	if err := validateDecision(decision); err != nil {
		o.abandon(ctx, logger, norm, reservation, err)
		return nil, err
	}

	result, err := o.executeWithRetry(ctx, logger, norm, project.Revision, decision, resolved, warnings, reservation)
	if err != nil {
		return nil, err
	}
	result.Adopted = reservation.Adopted
	logger.Info("operation applied",
		logging.String("operation", result.Operation),
		logging.String(logging.FieldSceneID, result.SceneID),
		logging.Int64(logging.FieldRevision, result.RevisionAfter))
	return result, nil
}

// executeWithRetry applies the decision, re-reading the project revision
// after each optimistic-concurrency loss up to the configured bound.
func (o *Orchestrator) executeWithRetry(
	ctx context.Context,
	logger *slog.Logger,
	norm normalized,
	expectedRevision int64,
	decision oracle.Decision,
	resolved *media.ResolvedSet,
	warnings []string,
	reservation *store.Reservation,
) (*Result, error) {
	maxRetries := o.cfg.Orchestrator.MaxRevisionRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	for attempt := 0; ; attempt++ {
		result, err := o.apply(ctx, norm, expectedRevision, decision, resolved, warnings, reservation)
		if err == nil {
			return result, nil
		}

		var conflict *store.RevisionConflictError
		if errors.As(err, &conflict) {
			if attempt >= maxRetries {
				// Terminal for this call, but the condition is transient:
				// the reservation stays pending so a retry can adopt it.
				return nil, services.Wrap(services.ErrConflict, "orchestrator", "execute",
					"revision conflicts exhausted retries", err)
			}
			expectedRevision = conflict.Actual
			logger.Warn("revision conflict, retrying",
				logging.Int("attempt", attempt+1),
				logging.Int64(logging.FieldRevision, conflict.Actual))
			continue
		}

		if services.IsRetryable(err) {
			return nil, err
		}
		o.abandon(ctx, logger, norm, reservation, err)
		return nil, err
	}
}

// abandon finalizes the reservation as failed so replays of the same
// submission return the stored failure instead of re-running it.
func (o *Orchestrator) abandon(ctx context.Context, logger *slog.Logger, norm normalized, reservation *store.Reservation, cause error) {
	failure := &Result{
		ProjectID:      norm.ProjectID,
		IdempotencyKey: norm.IdempotencyKey,
		Status:         statusFailed,
		Error:          cause.Error(),
		CompletedAt:    time.Now().UTC(),
	}
	encoded, err := failure.encode()
	if err != nil {
		logger.Error("encode failure result", logging.Error(err))
		return
	}
	if err := o.store.AbandonReservation(ctx, reservation, encoded); err != nil {
		logger.Error("abandon reservation", logging.Error(err))
	}
}

func (o *Orchestrator) pendingLease() time.Duration {
	seconds := o.cfg.Orchestrator.PendingLeaseSeconds
	if seconds <= 0 {
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}

func validateDecision(decision oracle.Decision) error {
	switch decision.Operation {
	case store.OperationCreate:
		if decision.Parameters.Content == nil && decision.Parameters.Name == nil {
			return services.Wrap(services.ErrOracle, "orchestrator", "validate decision",
				"create decision carries neither name nor content", nil)
		}
	case store.OperationEdit:
		if decision.Parameters.SceneID == "" {
			return services.Wrap(services.ErrOracle, "orchestrator", "validate decision",
				"edit decision carries no sceneId", nil)
		}
		if decision.Parameters.Name == nil && decision.Parameters.Content == nil && decision.Parameters.DurationMs == nil {
			return services.Wrap(services.ErrOracle, "orchestrator", "validate decision",
				"edit decision changes nothing", nil)
		}
	case store.OperationDelete:
		if decision.Parameters.SceneID == "" {
			return services.Wrap(services.ErrOracle, "orchestrator", "validate decision",
				"delete decision carries no sceneId", nil)
		}
	default:
		return services.Wrap(services.ErrOracle, "orchestrator", "validate decision",
			"unknown operation "+string(decision.Operation), nil)
	}
	return nil
}

func oracleRequest(norm normalized) oracle.NormalizedRequest {
	return oracle.NormalizedRequest{
		ProjectID:      norm.ProjectID,
		UserID:         norm.UserID,
		PromptText:     norm.PromptText,
		IdempotencyKey: norm.IdempotencyKey,
		SceneIDs:       norm.SceneIDs,
	}
}

func sceneRefs(scenes []*store.Scene) []media.SceneRef {
	refs := make([]media.SceneRef, 0, len(scenes))
	for _, scene := range scenes {
		refs = append(refs, media.SceneRef{
			ID:        scene.ID,
			MediaURLs: extractMediaURLs(scene.Content),
		})
	}
	return refs
}

// ResolveOnly normalizes a request and resolves its media without
// consulting the ledger or the oracle. The evaluation driver uses it to
// replay requests side-effect free.
func ResolveOnly(req Request, defaultPolicy string, scenes []*store.Scene) (oracle.NormalizedRequest, *media.ResolvedSet, *media.Report, error) {
	norm, err := normalizeRequest(req, defaultPolicy)
	if err != nil {
		return oracle.NormalizedRequest{}, nil, nil, err
	}
	resolved, report, err := media.Resolve(norm.mediaRequest(), norm.History, sceneRefs(scenes))
	return oracleRequest(norm), resolved, report, err
}

// SceneSummaries converts stored scenes into the oracle's view of them.
func SceneSummaries(scenes []*store.Scene) []oracle.SceneSummary {
	return sceneSummaries(scenes)
}

func sceneSummaries(scenes []*store.Scene) []oracle.SceneSummary {
	summaries := make([]oracle.SceneSummary, 0, len(scenes))
	for _, scene := range scenes {
		summaries = append(summaries, oracle.SceneSummary{
			ID:         scene.ID,
			Order:      int64(scene.Order),
			Name:       scene.Name,
			Content:    scene.Content,
			DurationMs: scene.DurationMs,
		})
	}
	return summaries
}
