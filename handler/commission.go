package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/commission"
	"github.com/stanleyndaba/clario-detection-engine/model"
)

// CommissionHandler exposes the Commission/Invoice Engine from
// spec.md §4.G: invoice generation, finalize, and dispute/recompute.
type CommissionHandler struct {
	engine *commission.Engine
	log    zerolog.Logger
}

func NewCommissionHandler(engine *commission.Engine, log zerolog.Logger) *CommissionHandler {
	return &CommissionHandler{engine: engine, log: log.With().Str("component", "commission_handler").Logger()}
}

type generateInvoiceRequest struct {
	SellerID      string `json:"seller_id"`
	BillingPeriod string `json:"billing_period"`
}

// GenerateInvoice handles POST /invoices.
func (h *CommissionHandler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req generateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "ValidationError", "message": "invalid request body"}})
		return
	}

	inv, err := h.engine.GenerateInvoice(r.Context(), req.SellerID, req.BillingPeriod)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// recomputeInvoiceRequest carries the invoice to recompute inline in
// the request body: there is no store.GetInvoice-by-ID lookup (see
// DESIGN.md), so the caller — already holding the invoice from a
// prior GenerateInvoice response — resubmits it alongside the newly
// disputed match IDs.
type recomputeInvoiceRequest struct {
	Invoice          model.CommissionInvoice `json:"invoice"`
	DisputedMatchIDs []string                `json:"disputed_match_ids"`
}

// RecomputeInvoice handles POST /invoices/recompute.
func (h *CommissionHandler) RecomputeInvoice(w http.ResponseWriter, r *http.Request) {
	var req recomputeInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "ValidationError", "message": "invalid request body"}})
		return
	}

	inv, err := h.engine.Recompute(r.Context(), req.Invoice, req.DisputedMatchIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// FinalizeInvoice handles POST /invoices/finalize.
func (h *CommissionHandler) FinalizeInvoice(w http.ResponseWriter, r *http.Request) {
	var inv model.CommissionInvoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "ValidationError", "message": "invalid request body"}})
		return
	}

	finalized, err := h.engine.Finalize(r.Context(), inv)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalized)
}
