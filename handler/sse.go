// Package handler exposes the Detection Engine's HTTP surface: the
// SSE transport endpoints of spec.md §6 and the queue/commission
// admin endpoints, mounted by router.NewRouter.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/sse"
)

// SSEHandler wires the SSE Hub to the HTTP transport: authentication,
// connection registration, and the closed endpoint set from spec.md
// §6 ("`/stream`, `/status`, `/sync-progress/{sync_id}`,
// `/detection-updates/{sync_id}`, `/financial-events`,
// `/notifications`, `/connection-status`").
type SSEHandler struct {
	hub  *sse.Hub
	auth *sse.Authenticator
	log  zerolog.Logger
}

func NewSSEHandler(hub *sse.Hub, auth *sse.Authenticator, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, auth: auth, log: log.With().Str("component", "sse_handler").Logger()}
}

// lifecycleEvents is the event subset /status narrows to: connection
// state changes, not business data.
var lifecycleEvents = map[string]bool{
	sse.EventConnected:   true,
	sse.EventAuthSuccess: true,
	sse.EventError:       true,
	sse.EventClose:       true,
}

// Stream handles GET /stream: the full, unfiltered event namespace.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, nil)
}

// Status handles GET /status: lifecycle events only.
func (h *SSEHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, lifecycleEvents)
}

// SyncProgress handles GET /sync-progress/{sync_id}: sync_progress
// events for the caller's own connections.
func (h *SSEHandler) SyncProgress(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Str("sync_id", syncIDParam(r)).Msg("sync_progress stream opened")
	h.serve(w, r, map[string]bool{sse.EventSyncProgress: true})
}

// DetectionUpdates handles GET /detection-updates/{sync_id}.
func (h *SSEHandler) DetectionUpdates(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Str("sync_id", syncIDParam(r)).Msg("detection_updates stream opened")
	h.serve(w, r, map[string]bool{sse.EventDetectionUpdates: true})
}

// FinancialEvents handles GET /financial-events.
func (h *SSEHandler) FinancialEvents(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, map[string]bool{sse.EventFinancialEvents: true})
}

// Notifications handles GET /notifications.
func (h *SSEHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, map[string]bool{sse.EventNotifications: true})
}

// ConnectionStatus handles GET /connection-status: a plain JSON probe
// of the caller's live connection count, not itself a stream.
func (h *SSEHandler) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	cred, err := h.auth.Authenticate(r)
	if err != nil {
		writeAuthRefused(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id":     cred.UserID,
		"connections": h.hub.ConnectionCount(cred.UserID),
	})
}

// serve authenticates the caller, opens the `text/event-stream`
// response per spec.md §6 ("`Cache-Control: no-cache`, `Connection:
// keep-alive`"), registers a Hub connection scoped to allowed (nil
// meaning every event in the namespace), and blocks until the client
// disconnects.
func (h *SSEHandler) serve(w http.ResponseWriter, r *http.Request, allowed map[string]bool) {
	cred, err := h.auth.Authenticate(r)
	if err != nil {
		writeAuthRefused(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conn, err := sse.NewHTTPConnection(w)
	if err != nil {
		h.log.Error().Err(err).Msg("response writer does not support streaming")
		return
	}
	if allowed != nil {
		conn = &filteredConnection{inner: conn, allowed: allowed}
	}

	handle := h.hub.Register(cred.UserID, conn, cred.Tenant)
	defer h.hub.Unregister(handle)

	if cred.Demo {
		h.log.Info().Str("user_id", cred.UserID).Str("path", r.URL.Path).Msg("sse connection registered under demo identity")
	}

	<-r.Context().Done()
}

// filteredConnection narrows a Connection to a fixed event subset, so
// a single Hub registry can back the endpoint-per-concern split
// spec.md §6 describes without each endpoint needing its own
// delivery path. Heartbeats and the `connected` frame always pass
// through so clients observe liveness on every endpoint.
type filteredConnection struct {
	inner   sse.Connection
	allowed map[string]bool
}

func (f *filteredConnection) Write(frame sse.Frame) error {
	if frame.Event != "" && frame.Event != sse.EventConnected && !f.allowed[frame.Event] {
		return nil
	}
	return f.inner.Write(frame)
}

func writeAuthRefused(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"type": "AuthError", "message": err.Error()},
	})
}

// syncIDParam is a small helper the sync-scoped routes use to read
// the path parameter for logging; the Hub itself delivers by user_id,
// not sync_id (spec.md §4.F's registry is keyed by user_id), so this
// exists only to annotate handler logs.
func syncIDParam(r *http.Request) string {
	return chi.URLParam(r, "sync_id")
}
