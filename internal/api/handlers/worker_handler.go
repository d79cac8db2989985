package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/oselabs/paperbase/internal/core/ingestion_engine"
)

// WorkerHandler accepts deliveries from an external job dispatcher. The
// contract is at-least-once: duplicate deliveries are absorbed by the
// pipeline's status claim, and only retriable failures signal the dispatcher
// to redeliver.
type WorkerHandler struct {
	pipeline *ingestion_engine.Pipeline
}

func NewWorkerHandler(p *ingestion_engine.Pipeline) *WorkerHandler {
	return &WorkerHandler{pipeline: p}
}

type processRequest struct {
	DocumentID string `json:"document_id"`
}

type processResponse struct {
	DocumentID string `json:"document_id"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
}

// Process runs one pipeline invocation. 503 means "try again later"; any
// 200 (including terminal failures) tells the dispatcher to drop the job.
func (h *WorkerHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
		http.Error(w, "document_id required", http.StatusBadRequest)
		return
	}

	outcome, err := h.pipeline.ProcessOne(r.Context(), req.DocumentID)

	resp := processResponse{
		DocumentID: req.DocumentID,
		Outcome:    outcome.Kind.String(),
		Reason:     outcome.Reason,
	}

	if err != nil && ingestion_engine.Retriable(err) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	writeJSON(w, resp)
}
