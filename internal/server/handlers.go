package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/epmlabs/planning-agent/internal/feedback"
)

// feedbackRequest is the POST /api/feedback body.
type feedbackRequest struct {
	ExecutionID string `json:"execution_id"`
	Rating      int    `json:"rating"`
	Feedback    string `json:"feedback,omitempty"`
}

// handleSubmitFeedback attaches a user rating to an execution and reports
// whether the policy was updated as a result.
func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ExecutionID == "" {
		writeError(w, http.StatusBadRequest, "execution_id is required")
		return
	}

	err := s.coordinator.AttachRating(r.Context(), req.ExecutionID, req.Rating, req.Feedback)
	switch {
	case err == nil:
	case isType[*feedback.InvalidRatingError](err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case isType[*feedback.NotFoundError](err):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case isType[*feedback.AlreadyRatedError](err):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		s.log.Error("attach rating failed", zap.String("execution_id", req.ExecutionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"execution_id": req.ExecutionID,
		"rating":       req.Rating,
		"rl_updated":   s.engine.Enabled(),
	})
}

// handleListExecutions returns recent executions for rating interfaces.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	toolName := r.URL.Query().Get("tool_name")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer up to 500")
			return
		}
		limit = n
	}

	executions, err := s.coordinator.RecentExecutions(r.Context(), toolName, limit)
	if err != nil {
		s.log.Error("list executions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   executions,
	})
}

// handleRecommendations returns ranked tool recommendations for a context.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	contextSig := r.URL.Query().Get("context")
	if contextSig == "" {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}

	var tools []string
	for _, t := range strings.Split(r.URL.Query().Get("tools"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tools = append(tools, t)
		}
	}
	if len(tools) == 0 {
		writeError(w, http.StatusBadRequest, "tools is required (comma-separated)")
		return
	}

	recs, err := s.engine.Recommendations(r.Context(), contextSig, tools)
	if err != nil {
		s.log.Error("recommendations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute recommendations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"context":         contextSig,
		"recommendations": recs,
	})
}

// handleMetrics returns a summary plus per-tool performance aggregates.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coordinator.ToolMetrics(r.Context())
	if err != nil {
		s.log.Error("metrics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}

	totalCalls := 0
	avgSuccess := 0.0
	for _, st := range stats {
		totalCalls += st.TotalCalls
		avgSuccess += st.SuccessRate
	}
	if len(stats) > 0 {
		avgSuccess /= float64(len(stats))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"summary": map[string]any{
				"total_executions": totalCalls,
				"avg_success_rate": avgSuccess,
				"active_tools":     len(stats),
				"rl_enabled":       s.engine.Enabled(),
			},
			"tool_performance": stats,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": "error", "error": msg})
}

// isType reports whether err is (or wraps) the concrete error type T.
func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
