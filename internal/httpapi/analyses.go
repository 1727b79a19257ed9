// Package httpapi exposes the sourcing analysis engine over HTTP: a
// synchronous analysis endpoint and a websocket progress stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/workflows"
)

// Analyzer is the part of the workflow engine the API needs.
type Analyzer interface {
	Analyze(ctx context.Context, req workflows.Request) (*workflows.Result, error)
}

// AnalysesHandler serves POST /api/v1/analyses.
type AnalysesHandler struct {
	engine Analyzer
	logger *zap.Logger
}

// NewAnalysesHandler creates the handler.
func NewAnalysesHandler(engine Analyzer, logger *zap.Logger) *AnalysesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysesHandler{engine: engine, logger: logger}
}

// RegisterRoutes mounts the analysis endpoint on the mux.
func (h *AnalysesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/analyses", h.handleAnalyze)
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleAnalyze runs one analysis synchronously. Validation failures
// are 400s; a fatal execution failure returns 502 with the partial
// result the engine preserved.
func (h *AnalysesHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req workflows.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	result, err := h.engine.Analyze(r.Context(), req)
	if err != nil {
		var vErr *providers.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error()})
			return
		}
		h.logger.Error("Analysis failed", zap.Error(err))
		if result != nil {
			// FAILED result with partials attached.
			writeJSON(w, http.StatusBadGateway, result)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
