package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/greenlight/pkg/engine"
	"mercator-hq/greenlight/pkg/history"
	"mercator-hq/greenlight/pkg/subject"
)

// maxRequestBody bounds decision request bodies.
const maxRequestBody = 1 << 20

// decisionRequest is the JSON body of a decision request.
type decisionRequest struct {
	DecisionContext   string `json:"decision_context"`
	ProductVersion    string `json:"product_version"`
	SubjectType       string `json:"subject_type"`
	SubjectIdentifier string `json:"subject_identifier"`
}

// errorResponse is the JSON body of an error reply.
type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// handleDecision evaluates a gating decision for one subject.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	var req decisionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.DecisionContext == "" || req.ProductVersion == "" {
		writeError(w, http.StatusBadRequest, "decision_context and product_version are required")
		return
	}

	sub, err := subject.New(req.SubjectType, req.SubjectIdentifier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := s.engine.Evaluate(r.Context(), engine.Request{
		Subject:         sub,
		ProductVersion:  req.ProductVersion,
		DecisionContext: req.DecisionContext,
	})
	if err != nil {
		switch {
		case errors.Is(err, subject.ErrUnresolvableSubject):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			s.logger.Error("decision evaluation failed",
				"subject", sub.String(), "error", err)
			writeError(w, http.StatusInternalServerError, "decision evaluation failed")
		}
		return
	}

	if s.history != nil {
		if err := s.history.Record(r.Context(), decision); err != nil {
			// Recording is best effort; the decision is still valid.
			s.logger.Error("failed to record decision", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, decision)
}

// handleDecisionHistory returns recorded decisions, newest first.
func (s *Server) handleDecisionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "only GET is supported")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "decision history is disabled")
		return
	}

	q := r.URL.Query()
	records, err := s.history.Query(r.Context(), history.QueryFilter{
		SubjectType:       q.Get("subject_type"),
		SubjectIdentifier: q.Get("subject_identifier"),
		DecisionContext:   q.Get("decision_context"),
	})
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": records})
}

// handleAbout reports the server version.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
