package postgres

import (
	"context"
	"fmt"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.AuditStore = (*AuditRepository)(nil)

// AuditRepository persists audit events. It only ever inserts and reads;
// there is no update or delete path on this table.
type AuditRepository struct {
	db *Connection
}

func NewAuditRepository(db *Connection) *AuditRepository {
	return &AuditRepository{
		db: db,
	}
}

func (r *AuditRepository) Insert(ctx context.Context, event model.AuditEvent) error {
	query := `INSERT INTO audit_events (id, origin_service, severity, account_id, account_role, source_address, action, details)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.q(ctx).Exec(ctx, query,
		event.ID, event.OriginService, event.Severity, event.AccountID, event.AccountRole,
		event.SourceAddress, event.Action, event.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// ListRecent returns up to limit events newest first, each joined with the
// acting account's email where that account still exists.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	query := `SELECT e.id, e.timestamp, e.origin_service, e.severity, e.account_id, e.account_role,
			         e.source_address, e.action, e.details, COALESCE(a.email, '')
			  FROM audit_events e
			  LEFT JOIN accounts a ON a.id = e.account_id
			  ORDER BY e.timestamp DESC
			  LIMIT $1`

	rows, err := r.db.q(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.OriginService, &e.Severity, &e.AccountID, &e.AccountRole,
			&e.SourceAddress, &e.Action, &e.Details, &e.AccountEmail,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
