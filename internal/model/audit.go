package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity enumerates audit event severities.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeveritySecurity Severity = "security"
	SeverityCritical Severity = "critical"
)

// Audit action tags. Kept as short symbolic identifiers, one per
// security- or data-relevant transition.
const (
	ActionLoginFailed    = "Login_Fallido"
	ActionAccessDenied   = "Acceso_Denegado"
	ActionAccountLocked  = "Cuenta_Bloqueada"
	ActionLoginSuccess   = "Login_Exitoso"
	ActionOTPSent        = "OTP_Enviado"
	ActionOTPFailed      = "OTP_Invalido"
	ActionAccountCreated = "Cuenta_Creada"
	ActionUnlocked       = "Cuenta_Desbloqueada"
	ActionPasswordChange = "Password_Cambiada"
	ActionEmailChange    = "Email_Cambiado"
	ActionRecordCreated  = "Registro_Creado"
	ActionRecordUpdated  = "Registro_Modificado"
	ActionRecordDeleted  = "Registro_Eliminado"
	ActionSubjectPurged  = "Paciente_Eliminado"
	ActionAccountDeleted = "Cuenta_Eliminada"
)

// SourceUnknown is recorded when the caller's address is unavailable.
const SourceUnknown = "unknown"

// AuditEvent is an append-only forensic record. Once written it is never
// mutated or deleted by this service.
type AuditEvent struct {
	ID            uuid.UUID
	Timestamp     time.Time
	OriginService string
	Severity      Severity
	AccountID     *int64
	AccountRole   *Role
	SourceAddress string
	Action        string
	// Details is the serialized structured payload, including nested
	// before/after snapshots where applicable.
	Details []byte
	// AccountEmail is populated on reads only, joined from the accounts
	// table when the acting account still exists.
	AccountEmail string
}

// AuditEntry is what call sites hand to the recorder. Details is serialized
// by the recorder before storage.
type AuditEntry struct {
	OriginService string
	Severity      Severity
	AccountID     *int64
	AccountRole   *Role
	SourceAddress string
	Action        string
	Details       map[string]any
}

// AuditSink accepts audit entries on a best-effort basis. Implementations
// must never fail the caller: a persistence error is logged and swallowed,
// it neither blocks nor rolls back the business operation that emitted it.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditStore persists and lists audit events.
type AuditStore interface {
	Insert(ctx context.Context, event AuditEvent) error
	// ListRecent returns up to limit events, newest first, each joined with
	// the acting account's email where the account still exists.
	ListRecent(ctx context.Context, limit int) ([]AuditEvent, error)
}
