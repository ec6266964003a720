package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

// DefaultAuditLimit is how many events the listing returns by default.
const DefaultAuditLimit = 100

var _ model.AuditSink = (*Audit)(nil)

// Audit is the best-effort audit recorder. Record never fails the caller:
// the primary workflow's availability outranks completeness of the trail,
// though every transition still attempts the write.
type Audit struct {
	store  model.AuditStore
	logger *logger.Logger
}

func NewAudit(store model.AuditStore, logger *logger.Logger) *Audit {
	return &Audit{
		store:  store,
		logger: logger,
	}
}

// Record serializes the entry and appends it to the audit store. Failures
// are logged locally and swallowed; there is no retry queue, a missed event
// is an accepted loss. The write runs detached from the caller's
// cancellation so an abandoned request still resolves it.
func (s *Audit) Record(ctx context.Context, entry model.AuditEntry) {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	serialized, err := json.Marshal(details)
	if err != nil {
		s.logger.Error("Audit service: failed to serialize details",
			"action", entry.Action,
			"error", err.Error())
		serialized = []byte(`{}`)
	}

	source := entry.SourceAddress
	if source == "" {
		source = model.SourceUnknown
	}

	event := model.AuditEvent{
		ID:            uuid.New(),
		OriginService: entry.OriginService,
		Severity:      entry.Severity,
		AccountID:     entry.AccountID,
		AccountRole:   entry.AccountRole,
		SourceAddress: source,
		Action:        entry.Action,
		Details:       serialized,
	}

	if err := s.store.Insert(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("Audit service: failed to persist event",
			"action", entry.Action,
			"severity", string(entry.Severity),
			"error", err.Error())
	}
}

// ListRecent returns the most recent events, newest first. This is the only
// read path into the audit store.
func (s *Audit) ListRecent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > DefaultAuditLimit {
		limit = DefaultAuditLimit
	}

	events, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("Audit service: failed to list events", "error", err.Error())
		return nil, fmt.Errorf("%w: failed to list audit events", model.ErrStorageUnavailable)
	}

	return events, nil
}
