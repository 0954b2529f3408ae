package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"helpdesk-hq/beacon/pkg/audit"
	"helpdesk-hq/beacon/pkg/engine"
)

// errorResponse is the JSON body returned for all error statuses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorDetail{Type: errType, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ScoreHandler serves POST /v1/score. It decodes a conversation event, runs
// the escalation decision, records it for audit, and returns the decision.
type ScoreHandler struct {
	engine   *engine.Engine
	recorder *audit.Recorder
	logger   *slog.Logger
}

// NewScoreHandler creates the scoring endpoint handler. The recorder may be
// nil when audit is disabled.
func NewScoreHandler(eng *engine.Engine, recorder *audit.Recorder, logger *slog.Logger) *ScoreHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreHandler{engine: eng, recorder: recorder, logger: logger}
}

func (h *ScoreHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var event engine.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	decision, err := h.engine.Decide(r.Context(), event)
	if err != nil {
		var vErr *engine.ValidationError
		var sErr *engine.ScoringError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
		case errors.As(err, &sErr):
			h.logger.ErrorContext(r.Context(), "scoring failed",
				"conversation_id", event.ConversationID,
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
			writeError(w, http.StatusBadGateway, "scoring_error", "model scoring failed")
		default:
			h.logger.ErrorContext(r.Context(), "decision failed",
				"conversation_id", event.ConversationID,
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "decision failed")
		}
		return
	}

	if h.recorder != nil {
		h.recorder.Record(decision)
	}

	writeJSON(w, http.StatusOK, decision)
}

// DecisionsHandler serves GET /v1/decisions?conversation_id=...&limit=N,
// returning recent audit records for one conversation, newest first.
type DecisionsHandler struct {
	store  *audit.Store
	logger *slog.Logger
}

// NewDecisionsHandler creates the decision history handler.
func NewDecisionsHandler(store *audit.Store, logger *slog.Logger) *DecisionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionsHandler{store: store, logger: logger}
}

func (h *DecisionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "conversation_id is required")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.store.ListByConversation(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "decision history query failed",
			"conversation_id", conversationID,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"decisions":       records,
	})
}
