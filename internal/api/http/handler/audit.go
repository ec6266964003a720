package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

// AuditService defines the read-only audit listing.
type AuditService interface {
	ListRecent(ctx context.Context, limit int) ([]model.AuditEvent, error)
}

// Audit handles the audit trail listing endpoint.
type Audit struct {
	auditService AuditService
	logger       *logger.Logger
}

// NewAudit creates a new Audit handler.
func NewAudit(auditService AuditService, logger *logger.Logger) *Audit {
	return &Audit{auditService: auditService, logger: logger}
}

type auditEventResponse struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	OriginService string          `json:"origin_service"`
	Severity      string          `json:"severity"`
	AccountID     *int64          `json:"account_id,omitempty"`
	AccountEmail  string          `json:"account_email,omitempty"`
	AccountRole   *model.Role     `json:"account_role,omitempty"`
	SourceAddress string          `json:"source_address"`
	Action        string          `json:"action"`
	Details       json.RawMessage `json:"details"`
}

// List returns the most recent audit events, newest first.
func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := h.auditService.ListRecent(r.Context(), limit)
	if err != nil {
		handleError(w, err)
		return
	}

	response := make([]auditEventResponse, len(events))
	for i, e := range events {
		response[i] = auditEventResponse{
			ID:            e.ID.String(),
			Timestamp:     e.Timestamp,
			OriginService: e.OriginService,
			Severity:      string(e.Severity),
			AccountID:     e.AccountID,
			AccountEmail:  e.AccountEmail,
			AccountRole:   e.AccountRole,
			SourceAddress: e.SourceAddress,
			Action:        e.Action,
			Details:       json.RawMessage(e.Details),
		}
	}

	writeJSON(w, http.StatusOK, response)
}
