package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/model"
	"github.com/stanleyndaba/clario-detection-engine/observability"
	"github.com/stanleyndaba/clario-detection-engine/orchestrator"
	"github.com/stanleyndaba/clario-detection-engine/queue"
)

type enqueueRequest struct {
	SellerID string            `json:"seller_id"`
	SyncID   string            `json:"sync_id"`
	UserID   string            `json:"user_id"`
	StoreID  string            `json:"store_id"`
	Priority model.JobPriority `json:"priority"`
}

// defaultJobsLimit bounds an unparameterized `queue-jobs` listing.
const defaultJobsLimit = 50

// AdminHandler exposes the Detection Queue's operational surface from
// spec.md §6: `GET queue-stats`, `GET queue-jobs`, `POST
// queue-retry/{jobId}`.
type AdminHandler struct {
	queue   *queue.Queue
	orch    *orchestrator.Orchestrator
	metrics *observability.Metrics
	log     zerolog.Logger
}

// NewAdminHandler builds an AdminHandler. orch is optional: when nil,
// EnqueueJob has no inline-execution fallback and an unhealthy queue
// simply rejects the request instead of running the pipeline inline.
func NewAdminHandler(q *queue.Queue, orch *orchestrator.Orchestrator, metrics *observability.Metrics, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{queue: q, orch: orch, metrics: metrics, log: log.With().Str("component", "admin_handler").Logger()}
}

// EnqueueJob handles POST /sync: the entry point that submits a
// (seller_id, sync_id) detection pass to the queue. Not itself named
// in spec.md's closed admin-endpoint set, which documents `enqueue`
// only as a Queue operation — this is the HTTP surface a caller needs
// to reach it. Per spec.md §5/§7's backpressure inline-execution
// fallback: when the queue reports unhealthy, the rule pipeline runs
// synchronously for this request and the findings come back directly
// instead of a queued job.
func (h *AdminHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "ValidationError", "message": "invalid request body"}})
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityJobNormal
	}

	enqueueReq := model.EnqueueRequest{
		SellerID: req.SellerID,
		SyncID:   req.SyncID,
		UserID:   req.UserID,
		StoreID:  req.StoreID,
		Priority: req.Priority,
	}

	if !h.queue.Healthy() {
		if h.orch == nil {
			writeDomainError(w, model.NewDomainError(model.ErrStorage, "queue unhealthy and no inline fallback available", nil))
			return
		}
		h.log.Warn().Str("seller_id", req.SellerID).Str("sync_id", req.SyncID).Msg("queue unhealthy, running detection pass inline")
		anomalies, err := h.orch.RunInline(r.Context(), enqueueReq)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mode":      "inline",
			"anomalies": anomalies,
			"count":     len(anomalies),
		})
		return
	}

	job, err := h.queue.Enqueue(enqueueReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.JobsEnqueued.WithLabelValues(string(job.Priority)).Inc()
	}
	writeJSON(w, http.StatusAccepted, job)
}

// QueueStats handles GET /queue-stats.
func (h *AdminHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats := h.queue.Stats()
	writeJSON(w, http.StatusOK, stats)
}

// QueueJobs handles GET /queue-jobs?status=&limit=, capped at 50 per
// spec.md §6.
func (h *AdminHandler) QueueJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := defaultJobsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= defaultJobsLimit {
			limit = parsed
		}
	}

	jobs := h.queue.Jobs(status, limit)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// QueueRetry handles POST /queue-retry/{jobId}.
func (h *AdminHandler) QueueRetry(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := h.queue.Retry(jobID); err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("queue retry failed")
		writeDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.JobsEnqueued.WithLabelValues("retry").Inc()
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "status": "requeued"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind := model.ErrValidation
	status := http.StatusBadRequest
	if de, ok := err.(*model.DomainError); ok {
		kind = de.Kind
		if kind == model.ErrStorage || kind == model.ErrTransientExternal {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"type": string(kind), "message": err.Error()},
	})
}
