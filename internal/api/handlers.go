package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/ledger"
)

type startRequest struct {
	Tier           string `json:"tier"`
	InitialRequest string `json:"initialRequest,omitempty"`
}

type exchangeRequest struct {
	Text string `json:"text"`
}

type exchangeResponse struct {
	ledger.Result
	Snapshot ledger.Snapshot `json:"snapshot"`
}

type replenishRequest struct {
	Amount int `json:"amount"`
}

type tierRequest struct {
	Tier string `json:"tier"`
}

type adviseRequest struct {
	Description string `json:"description"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[startRequest](w, r)
	if !ok {
		return
	}
	tier, err := economics.ParseTier(req.Tier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.ledger.StartSession(tier, req.InitialRequest)
	h.dispatchPending(w, r)
}

// dispatchPending submits the pending initial request, if any. A request that
// cannot be admitted yet stays pending and is visible in the snapshot.
func (h *Handler) dispatchPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.exchangeContext(r.Context())
	defer cancel()
	res, dispatched := h.ledger.DispatchPending(ctx)
	switch {
	case dispatched:
		h.logger.Info("initial request dispatched", "outcome", res.Outcome, "tier", res.Tier)
	case res.Outcome != "":
		h.logger.Info("initial request kept pending", "reason", res.Outcome)
	}
	h.respondSnapshot(w, http.StatusOK)
}

func (h *Handler) submitExchange(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[exchangeRequest](w, r)
	if !ok {
		return
	}

	ctx, cancel := h.exchangeContext(r.Context())
	defer cancel()
	res := h.ledger.Submit(ctx, req.Text)

	status := http.StatusOK
	switch res.Outcome {
	case ledger.OutcomeBusy:
		status = http.StatusConflict
	case ledger.OutcomeEmpty, ledger.OutcomeNoTokens:
		status = http.StatusUnprocessableEntity
	}
	snap := h.ledger.Snapshot()
	PublishSnapshot(h.metrics, snap)
	writeJSON(w, status, exchangeResponse{Result: res, Snapshot: snap})
}

func (h *Handler) replenish(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[replenishRequest](w, r)
	if !ok {
		return
	}
	if !h.ledger.Replenish(req.Amount, h.ledger.PricePerToken()) {
		writeError(w, http.StatusUnprocessableEntity, "amount must be positive")
		return
	}
	h.respondSnapshot(w, http.StatusOK)
}

func (h *Handler) setTier(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tierRequest](w, r)
	if !ok {
		return
	}
	tier, err := economics.ParseTier(req.Tier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.ledger.SetTier(tier) {
		writeError(w, http.StatusConflict, "manual tier selection is disabled while auto mode is on")
		return
	}
	h.respondSnapshot(w, http.StatusOK)
}

func (h *Handler) toggleAutoMode(w http.ResponseWriter, r *http.Request) {
	h.ledger.ToggleAutoMode()
	h.respondSnapshot(w, http.StatusOK)
}

func (h *Handler) advise(w http.ResponseWriter, r *http.Request) {
	if h.advisor == nil {
		writeError(w, http.StatusNotImplemented, "advisor is not configured")
		return
	}
	req, ok := readJSON[adviseRequest](w, r)
	if !ok {
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	ctx, cancel := h.exchangeContext(r.Context())
	defer cancel()
	report, err := h.advisor.Analyze(ctx, req.Description)
	if err != nil {
		h.logger.Error("advisor failed", "error", err)
		writeError(w, http.StatusBadGateway, "advisor unavailable")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) listTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, economics.Profiles())
}

type nodesResponse struct {
	DataCenter string               `json:"dataCenterRegion"`
	Region     economics.RegionInfo `json:"biodiversityRegion"`
	Nodes      []economics.Node     `json:"nodes"`
}

func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nodesResponse{
		DataCenter: economics.DataCenterRegion,
		Region:     economics.BiodiversityRegion,
		Nodes:      economics.Nodes,
	})
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	node, ok := economics.NodeByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *Handler) respondSnapshot(w http.ResponseWriter, status int) {
	snap := h.ledger.Snapshot()
	PublishSnapshot(h.metrics, snap)
	writeJSON(w, status, snap)
}

func (h *Handler) exchangeContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.timeout)
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
