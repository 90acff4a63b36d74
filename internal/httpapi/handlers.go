package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"riskengine/internal/domain"
	"riskengine/internal/pipeline"
)

const decisionRateLimitKey = "decision_check"

type decisionCheckRequest struct {
	Subject struct {
		UserID    string   `json:"user_id"`
		AccountID string   `json:"account_id"`
		Addresses []string `json:"addresses"`
		GeoISO    string   `json:"geo_iso"`
		KYCLevel  string   `json:"kyc_level"`
	} `json:"subject"`
	Tx struct {
		Type        string          `json:"type"`
		Asset       string          `json:"asset"`
		Amount      string          `json:"amount"`
		USDValue    decimal.Decimal `json:"usd_value"`
		DestAddress string          `json:"dest_address,omitempty"`
	} `json:"tx"`
	Context map[string]any `json:"context,omitempty"`
}

type evidenceDTO struct {
	RuleID string `json:"rule_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	Limit  string `json:"limit,omitempty"`
}

type decisionCheckResponse struct {
	Decision      domain.Decision `json:"decision"`
	DecisionCode  string          `json:"decision_code"`
	PolicyVersion string          `json:"policy_version"`
	Evidence      []evidenceDTO   `json:"evidence"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleDecisionCheck(w http.ResponseWriter, r *http.Request) {
	var req decisionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	if req.Subject.UserID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "subject.user_id is required")
		return
	}

	if s.RateLimiter != nil && !s.RateLimiter.AllowSubject(decisionRateLimitKey, req.Subject.UserID) {
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests for this subject")
		return
	}

	preq := pipeline.Request{
		Subject: pipeline.SubjectInput{
			UserID:    req.Subject.UserID,
			AccountID: req.Subject.AccountID,
			Addresses: req.Subject.Addresses,
			GeoISO:    req.Subject.GeoISO,
			KYCLevel:  req.Subject.KYCLevel,
		},
		TxType:      req.Tx.Type,
		Asset:       req.Tx.Asset,
		Amount:      req.Tx.Amount,
		USDValue:    req.Tx.USDValue,
		DestAddress: req.Tx.DestAddress,
	}

	resp, err := s.Engine.Evaluate(r.Context(), preq)
	if err != nil {
		var invalid *domain.InvalidFieldError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		if s.Logger != nil {
			s.Logger.Error("decision evaluation failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "decision evaluation failed")
		return
	}

	evidence := make([]evidenceDTO, 0, len(resp.Evidence))
	for _, e := range resp.Evidence {
		evidence = append(evidence, evidenceDTO{RuleID: e.RuleID, Key: e.Key, Value: e.Value, Limit: e.Limit})
	}

	writeJSON(w, http.StatusOK, decisionCheckResponse{
		Decision:      resp.Decision,
		DecisionCode:  resp.DecisionCode,
		PolicyVersion: resp.PolicyVersion,
		Evidence:      evidence,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rules := s.Rules.Latest()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.Version,
		"policy_version": rules.PolicyVersion,
		"uptime_secs":    int(time.Since(s.StartedAt).Seconds()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	rules := s.Rules.Latest()
	if rules == nil || (len(rules.Inline) == 0 && len(rules.Streaming) == 0) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no rules loaded", Code: "NOT_READY"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":           true,
		"policy_version":  rules.PolicyVersion,
		"inline_rules":    len(rules.Inline),
		"streaming_rules": len(rules.Streaming),
	})
}

func (s *Server) handleDebugActorPool(w http.ResponseWriter, r *http.Request) {
	stats := s.Pool.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"shard_sizes":   stats.ShardSizes,
		"total_entries": stats.TotalEntries,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
