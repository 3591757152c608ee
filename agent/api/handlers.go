package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	contractx "github.com/warrantix/warrantix/agent/contract"
	runnode "github.com/warrantix/warrantix/agent/nodes"
	vinx "github.com/warrantix/warrantix/agent/vin"
)

const readinessProbeTimeout = 5 * time.Second

type queryRequest struct {
	Query     string         `json:"query"`
	VIN       string         `json:"vin,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

type queryResponse struct {
	*contractx.RunReport
	Query string `json:"query"`
	VIN   string `json:"vin,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	vin := vinx.Normalize(body.VIN)
	if vin != "" {
		if err := vinx.Validate(vin); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: fmt.Sprintf("invalid vin: %v", err)})
			return
		}
	}

	req := contractx.AnalysisRequest{
		RequestID: strings.TrimSpace(body.RequestID),
		Query:     body.Query,
		VIN:       vin,
		Context:   body.Context,
	}

	report, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runnode.ErrEmptyQuery) ||
			errors.Is(err, runnode.ErrQueryTooLong) ||
			errors.Is(err, contractx.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		s.log.Error().Err(err).Str("request_id", req.RequestID).Msg("query run failed")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		RunReport: report,
		Query:     strings.TrimSpace(body.Query),
		VIN:       vin,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes the upstream dependencies. Any failing probe turns the
// whole endpoint into a 503 so the deployment stops routing traffic here.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	detail := make(map[string]string, len(s.checks))

	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessProbeTimeout)
		err := check.Probe(ctx)
		cancel()

		if err != nil {
			status = http.StatusServiceUnavailable
			detail[check.Name] = err.Error()
			continue
		}
		detail[check.Name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
