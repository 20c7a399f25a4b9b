// Package orchestrator implements the Detection Orchestrator: the
// worker pool that drains the Detection Queue, loads a job's rule
// context and input snapshot, fans the Rule Engine across it with
// per-rule panic isolation, finalizes each anomaly through the
// Evidence Builder and Policy-Window Tracker, persists results, and
// streams progress over the SSE Hub, per spec.md §4.E.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/evidence"
	"github.com/stanleyndaba/clario-detection-engine/ingestadapter"
	"github.com/stanleyndaba/clario-detection-engine/model"
	"github.com/stanleyndaba/clario-detection-engine/observability"
	"github.com/stanleyndaba/clario-detection-engine/policywindow"
	"github.com/stanleyndaba/clario-detection-engine/queue"
	"github.com/stanleyndaba/clario-detection-engine/rulecontext"
	"github.com/stanleyndaba/clario-detection-engine/rules"
	"github.com/stanleyndaba/clario-detection-engine/sse"
)

// SnapshotLoader fetches the raw upstream rows for one (seller_id,
// sync_id) pass. Implemented by store.Store.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, sellerID, syncID string) (ingestadapter.Snapshot, error)
}

// AnomalyStore persists finalized anomalies. Implemented by store.Store.
type AnomalyStore interface {
	InsertAnomaly(ctx context.Context, a model.Anomaly) error
}

// Orchestrator wires the queue, rule engine, evidence builder, and
// policy-window tracker into the end-to-end detection pass spec.md
// §4.E describes. It holds no per-job state of its own: every method
// is a pure function of the job it is handed plus its injected
// dependencies.
type Orchestrator struct {
	queue      *queue.Queue
	registry   *rules.Registry
	ruleCtx    *rulecontext.Store
	snapshots  SnapshotLoader
	anomalies  AnomalyStore
	evidence   *evidence.Builder
	tracker    *policywindow.Tracker
	hub        *sse.Hub
	log        zerolog.Logger
	workers    int
	stallEvery time.Duration

	priorityByRule map[model.RuleType]model.Priority
	clock          func() time.Time
	metrics        *observability.Metrics
}

// WithMetrics attaches a Prometheus collector set. Optional: passing
// nil skips instrumentation entirely.
func (o *Orchestrator) WithMetrics(m *observability.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// New builds an Orchestrator. workers is the number of goroutines
// pulling from the queue concurrently; it should match
// queue.Config.MaxConcurrency.
func New(
	q *queue.Queue,
	registry *rules.Registry,
	ruleCtx *rulecontext.Store,
	snapshots SnapshotLoader,
	anomalies AnomalyStore,
	builder *evidence.Builder,
	tracker *policywindow.Tracker,
	hub *sse.Hub,
	log zerolog.Logger,
	workers int,
) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	priorities := make(map[model.RuleType]model.Priority, len(registry.Rules()))
	for _, r := range registry.Rules() {
		priorities[r.RuleType()] = r.Priority()
	}
	return &Orchestrator{
		queue:          q,
		registry:       registry,
		ruleCtx:        ruleCtx,
		snapshots:      snapshots,
		anomalies:      anomalies,
		evidence:       builder,
		tracker:        tracker,
		hub:            hub,
		log:            log.With().Str("component", "orchestrator").Logger(),
		workers:        workers,
		stallEvery:     time.Minute,
		priorityByRule: priorities,
		clock:          time.Now,
	}
}

// Run starts the worker pool and a periodic stall sweeper. It blocks
// until ctx is canceled, then waits for in-flight jobs to finish.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			o.workerLoop(ctx, workerID)
		}(i)
	}

	go o.sweepLoop(ctx)

	wg.Wait()
}

func (o *Orchestrator) workerLoop(ctx context.Context, workerID int) {
	for {
		job, err := o.queue.Next(ctx)
		if err != nil {
			// ctx canceled or queue closed: stop this worker.
			return
		}
		o.processJob(ctx, job, workerID)
	}
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.stallEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.queue.SweepStalled(); n > 0 {
				o.log.Warn().Int("count", n).Msg("reclaimed stalled jobs")
			}
			if o.metrics != nil {
				stats := o.queue.Stats()
				o.metrics.QueueDepth.Set(float64(stats.Waiting))
				o.metrics.QueueActive.Set(float64(stats.Active))
			}
		}
	}
}

// processJob runs one full detection pass for job: load context and
// input, fan out rules, finalize and persist anomalies, and report
// the outcome back to the queue.
func (o *Orchestrator) processJob(ctx context.Context, job *model.DetectionJob, workerID int) {
	jobLog := o.log.With().Str("job_id", job.ID).Str("seller_id", job.SellerID).Str("sync_id", job.SyncID).Logger()
	start := o.clock()
	defer o.observeDuration(start)

	o.emitProgress(job, "started", nil)

	anomalies, err := o.executePass(ctx, job.SellerID, job.SyncID, jobLog)
	if err != nil {
		o.fail(job, jobLog, err)
		return
	}

	for i := range anomalies {
		o.emitDetection(job, anomalies[i])
	}

	o.emitProgress(job, "completed", map[string]any{"anomaly_count": len(anomalies)})

	if err := o.queue.MarkCompleted(job.ID); err != nil {
		jobLog.Error().Err(err).Msg("mark job completed failed")
	}
	if o.metrics != nil {
		o.metrics.JobsCompleted.WithLabelValues(string(job.Priority)).Inc()
	}
}

// executePass runs one full detection pass — load context and input,
// fan out rules, finalize and persist each anomaly — shared by the
// queued worker path (processJob) and the synchronous inline fallback
// (RunInline). It does not touch queue bookkeeping or SSE: those
// differ between the two callers.
func (o *Orchestrator) executePass(ctx context.Context, sellerID, syncID string, jobLog zerolog.Logger) ([]model.Anomaly, error) {
	ruleCtx, err := o.ruleCtx.Load(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	snapshot, err := o.snapshots.LoadSnapshot(ctx, sellerID, syncID)
	if err != nil {
		return nil, err
	}

	input := ingestadapter.Adapt(snapshot, o.clock())
	rawAnomalies := o.runRules(input, ruleCtx, jobLog)

	finalized := make([]model.Anomaly, 0, len(rawAnomalies))
	for i := range rawAnomalies {
		a, err := o.finalize(ctx, rawAnomalies[i], input, ruleCtx)
		if err != nil {
			jobLog.Error().Err(err).Str("rule_type", string(rawAnomalies[i].RuleType)).Msg("finalize anomaly failed")
			return nil, err
		}
		if err := o.anomalies.InsertAnomaly(ctx, a); err != nil {
			jobLog.Error().Err(err).Str("dedupe_hash", a.DedupeHash).Msg("persist anomaly failed")
			continue
		}
		finalized = append(finalized, a)
		if o.metrics != nil {
			o.metrics.AnomaliesDetected.WithLabelValues(string(a.RuleType), string(a.Severity)).Inc()
		}
	}
	return finalized, nil
}

// RunInline implements the backpressure fallback spec.md §5/§7
// requires: when the queue reports unhealthy, this runs the rule
// pipeline synchronously for one (seller_id, sync_id) request and
// returns the findings directly, rather than going through
// queue.Enqueue/Next. Unlike the queued path it does not fan results
// out over SSE — the caller already gets them in the response.
func (o *Orchestrator) RunInline(ctx context.Context, req model.EnqueueRequest) ([]model.Anomaly, error) {
	jobLog := o.log.With().Str("seller_id", req.SellerID).Str("sync_id", req.SyncID).Str("mode", "inline").Logger()

	anomalies, err := o.executePass(ctx, req.SellerID, req.SyncID, jobLog)
	if err != nil {
		jobLog.Error().Err(err).Msg("inline detection pass failed")
		if o.metrics != nil {
			kind := string(model.ErrDownstream)
			var domainErr *model.DomainError
			if errors.As(err, &domainErr) {
				kind = string(domainErr.Kind)
			}
			o.metrics.JobsFailed.WithLabelValues(kind).Inc()
		}
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.JobsCompleted.WithLabelValues("inline").Inc()
	}
	return anomalies, nil
}

func (o *Orchestrator) observeDuration(start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.JobDuration.Observe(o.clock().Sub(start).Seconds())
}

// runRules applies every registered rule against input, isolating
// each call behind a recover() boundary per spec.md §7's RuleBug
// kind: a panicking rule is logged and skipped, never takes down the
// worker or the rest of the registry.
func (o *Orchestrator) runRules(input model.RuleInput, ruleCtx model.RuleContext, jobLog zerolog.Logger) []model.Anomaly {
	var out []model.Anomaly
	for _, rule := range o.registry.Rules() {
		anomalies := o.applyRuleSafely(rule, input, ruleCtx, jobLog)
		out = append(out, anomalies...)
	}
	return out
}

func (o *Orchestrator) applyRuleSafely(rule rules.Rule, input model.RuleInput, ruleCtx model.RuleContext, jobLog zerolog.Logger) (result []model.Anomaly) {
	defer func() {
		if r := recover(); r != nil {
			bug := model.NewDomainError(model.ErrRuleBug, fmt.Sprintf("rule %s panicked: %v", rule.RuleType(), r), nil)
			jobLog.Error().Err(bug).Str("rule_type", string(rule.RuleType())).Msg("rule panic recovered")
			if o.metrics != nil {
				o.metrics.RulePanics.WithLabelValues(string(rule.RuleType())).Inc()
			}
			result = nil
		}
	}()
	return rule.Apply(input, ruleCtx)
}

// finalize completes a raw anomaly from a rule with its policy window
// and evidence artifact, per spec.md §4.E's pipeline ordering: rules
// run first (pure, no I/O), then policy-window and evidence finalize
// each result before persistence.
func (o *Orchestrator) finalize(ctx context.Context, a model.Anomaly, input model.RuleInput, ruleCtx model.RuleContext) (model.Anomaly, error) {
	claimType := claimTypeForRule(a.RuleType)
	window := o.tracker.CalculatePolicyWindow(claimType, input.SnapshotTime)

	a.DiscoveryDate = input.SnapshotTime
	a.DeadlineDate = window.DeadlineDate
	a.DaysRemaining = window.DaysRemaining
	a.Expired = window.IsExpired
	a.FilingRecommendation = string(window.FilingRecommendation)

	artifact, err := o.evidence.Build(ctx, a, o.priorityByRule[a.RuleType], a.SellerID, a.SyncID, input, ruleCtx.Thresholds, ruleCtx.Whitelist)
	if err != nil {
		if o.metrics != nil {
			o.metrics.EvidenceUploadFailures.Inc()
		}
		return a, err
	}
	a.BlobURL = artifact.BlobURL
	return a, nil
}

func (o *Orchestrator) fail(job *model.DetectionJob, jobLog zerolog.Logger, err error) {
	jobLog.Error().Err(err).Msg("detection job failed")
	o.emitProgress(job, "failed", map[string]any{"error": err.Error()})
	if markErr := o.queue.MarkFailed(job.ID, err); markErr != nil {
		jobLog.Error().Err(markErr).Msg("mark job failed failed")
	}
	if o.metrics != nil {
		kind := string(model.ErrDownstream)
		var domainErr *model.DomainError
		if errors.As(err, &domainErr) {
			kind = string(domainErr.Kind)
		}
		o.metrics.JobsFailed.WithLabelValues(kind).Inc()
	}
}

func (o *Orchestrator) emitProgress(job *model.DetectionJob, phase string, extra map[string]any) {
	payload := map[string]any{
		"sync_id": job.SyncID,
		"phase":   phase,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := o.hub.SendEvent(job.UserID, sse.EventSyncProgress, payload, job.ID); err != nil {
		o.log.Warn().Err(err).Str("job_id", job.ID).Msg("emit sync_progress failed")
	}
}

func (o *Orchestrator) emitDetection(job *model.DetectionJob, a model.Anomaly) {
	if err := o.hub.SendEvent(job.UserID, sse.EventDetectionUpdates, a, a.DedupeHash); err != nil {
		o.log.Warn().Err(err).Str("dedupe_hash", a.DedupeHash).Msg("emit detection_updates failed")
	}
}

// claimTypeForRule mirrors store.ruleTypeToClaimType: the
// orchestrator needs the same mapping to compute a policy window
// before persistence, without importing store (which would create an
// import cycle, since store implements rulecontext.Loader and
// policywindow.AnomalyRepository but never depends on orchestrator).
func claimTypeForRule(rt model.RuleType) model.ClaimType {
	switch rt {
	case model.RuleLostUnits:
		return model.ClaimLostInventory
	case model.RuleDamagedStock, model.RuleDamagedInventory:
		return model.ClaimDamagedInventory
	case model.RuleOverchargedFees:
		return model.ClaimFeeOvercharge
	case model.RuleWarehouseTransfer:
		return model.ClaimRemovalOrder
	case model.RuleSLABreach:
		return model.ClaimAtoZ
	case model.RuleClosedCaseAudit:
		return model.ClaimGeneral
	default:
		return model.ClaimGeneral
	}
}

