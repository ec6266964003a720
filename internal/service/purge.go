package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovialab/cliniguard-server/internal/fieldcode"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

const purgeOrigin = "purge-service"

// Purge removes a patient and every record that depends on them as one
// transactional unit. Only after the commit does it write the forensic
// audit snapshot and clean up attachment objects.
type Purge struct {
	accounts      model.AccountStore
	patients      model.PatientStore
	consultations model.ConsultationStore
	exams         model.ExamStore
	messages      model.MessageStore
	storage       model.Storage
	codec         *fieldcode.Codec
	audit         model.AuditSink
	txm           model.TxManager
	logger        *logger.Logger
}

func NewPurge(
	accounts model.AccountStore,
	patients model.PatientStore,
	consultations model.ConsultationStore,
	exams model.ExamStore,
	messages model.MessageStore,
	storage model.Storage,
	codec *fieldcode.Codec,
	audit model.AuditSink,
	txm model.TxManager,
	logger *logger.Logger,
) *Purge {
	return &Purge{
		accounts:      accounts,
		patients:      patients,
		consultations: consultations,
		exams:         exams,
		messages:      messages,
		storage:       storage,
		codec:         codec,
		audit:         audit,
		txm:           txm,
		logger:        logger,
	}
}

// DeleteSubjectAndDependents deletes a patient's exams, consultations,
// messages and profile row, dependents first, inside one transaction.
// A patient that is already gone is a successful no-op. Any mid-transaction
// failure rolls everything back and surfaces a single storage error.
func (p *Purge) DeleteSubjectAndDependents(ctx context.Context, actor model.Actor, patientID int64) error {
	patient, err := p.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			p.logger.Info("Purge service: patient already absent",
				"patient_id", patientID)
			return nil
		}
		return fmt.Errorf("%w: failed to get patient", model.ErrStorageUnavailable)
	}

	attachmentKeys, err := p.collectAttachmentKeys(ctx, patientID)
	if err != nil {
		return err
	}

	var deletedExams, deletedConsultations, deletedMessages int64
	err = p.txm.WithinTx(ctx, func(ctx context.Context) error {
		var txErr error
		deletedExams, txErr = p.exams.DeleteByPatient(ctx, patientID)
		if txErr != nil {
			return fmt.Errorf("failed to delete exams: %w", txErr)
		}
		deletedConsultations, txErr = p.consultations.DeleteByPatient(ctx, patientID)
		if txErr != nil {
			return fmt.Errorf("failed to delete consultations: %w", txErr)
		}
		deletedMessages, txErr = p.messages.DeleteByParticipant(ctx, patient.AccountID)
		if txErr != nil {
			return fmt.Errorf("failed to delete messages: %w", txErr)
		}
		if txErr = p.patients.Delete(ctx, patientID); txErr != nil {
			return fmt.Errorf("failed to delete patient: %w", txErr)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("Purge service: purge rolled back",
			"patient_id", patientID,
			"error", err.Error())
		return fmt.Errorf("%w: failed to purge patient", model.ErrStorageUnavailable)
	}

	p.logger.Info("Purge service: patient purged",
		"patient_id", patientID,
		"exams", deletedExams,
		"consultations", deletedConsultations,
		"messages", deletedMessages)

	p.audit.Record(ctx, model.AuditEntry{
		OriginService: purgeOrigin,
		Severity:      model.SeverityCritical,
		AccountID:     &actor.AccountID,
		AccountRole:   &actor.Role,
		SourceAddress: actor.Source,
		Action:        model.ActionSubjectPurged,
		Details: map[string]any{
			"paciente_id": patientID,
			"snapshot":    patientSnapshot(patient),
			"eliminados": map[string]any{
				"examenes":  deletedExams,
				"consultas": deletedConsultations,
				"mensajes":  deletedMessages,
			},
		},
	})

	for _, key := range attachmentKeys {
		if err := p.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
			p.logger.Error("Purge service: failed to delete attachment",
				"patient_id", patientID,
				"key", key,
				"error", err.Error())
		}
	}

	return nil
}

// DeleteAccountAndData removes an account's identity row together with its
// dependent data. When a patient profile is linked to the account its exams,
// consultations, messages and profile row go first, then the account row,
// all inside the same transaction. An account that is already gone is a
// successful no-op.
func (p *Purge) DeleteAccountAndData(ctx context.Context, actor model.Actor, accountID int64) error {
	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			p.logger.Info("Purge service: account already absent",
				"account_id", accountID)
			return nil
		}
		return fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	var hasProfile bool
	patient, err := p.patients.GetByAccountID(ctx, accountID)
	switch {
	case err == nil:
		hasProfile = true
	case errors.Is(err, model.ErrNotFound):
	default:
		return fmt.Errorf("%w: failed to get patient", model.ErrStorageUnavailable)
	}

	var attachmentKeys []string
	if hasProfile {
		attachmentKeys, err = p.collectAttachmentKeys(ctx, patient.ID)
		if err != nil {
			return err
		}
	}

	var deletedExams, deletedConsultations, deletedMessages int64
	err = p.txm.WithinTx(ctx, func(ctx context.Context) error {
		var txErr error
		if hasProfile {
			deletedExams, txErr = p.exams.DeleteByPatient(ctx, patient.ID)
			if txErr != nil {
				return fmt.Errorf("failed to delete exams: %w", txErr)
			}
			deletedConsultations, txErr = p.consultations.DeleteByPatient(ctx, patient.ID)
			if txErr != nil {
				return fmt.Errorf("failed to delete consultations: %w", txErr)
			}
		}
		deletedMessages, txErr = p.messages.DeleteByParticipant(ctx, accountID)
		if txErr != nil {
			return fmt.Errorf("failed to delete messages: %w", txErr)
		}
		if hasProfile {
			if txErr = p.patients.Delete(ctx, patient.ID); txErr != nil {
				return fmt.Errorf("failed to delete patient: %w", txErr)
			}
		}
		if txErr = p.accounts.Delete(ctx, accountID); txErr != nil {
			return fmt.Errorf("failed to delete account: %w", txErr)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("Purge service: account deletion rolled back",
			"account_id", accountID,
			"error", err.Error())
		if errors.Is(err, model.ErrConflictingDependency) {
			return fmt.Errorf("%w: la cuenta %d aún tiene registros clínicos a su nombre", model.ErrConflictingDependency, accountID)
		}
		return fmt.Errorf("%w: failed to delete account", model.ErrStorageUnavailable)
	}

	p.logger.Info("Purge service: account deleted",
		"account_id", accountID,
		"exams", deletedExams,
		"consultations", deletedConsultations,
		"messages", deletedMessages)

	details := map[string]any{
		"cuenta_id": accountID,
		"email":     account.Email,
		"rol":       account.Role,
		"eliminados": map[string]any{
			"examenes":  deletedExams,
			"consultas": deletedConsultations,
			"mensajes":  deletedMessages,
		},
	}
	if hasProfile {
		details["paciente"] = patientSnapshot(patient)
	}

	p.audit.Record(ctx, model.AuditEntry{
		OriginService: purgeOrigin,
		Severity:      model.SeverityCritical,
		AccountID:     &actor.AccountID,
		AccountRole:   &actor.Role,
		SourceAddress: actor.Source,
		Action:        model.ActionAccountDeleted,
		Details:       details,
	})

	for _, key := range attachmentKeys {
		if err := p.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
			p.logger.Error("Purge service: failed to delete attachment",
				"account_id", accountID,
				"key", key,
				"error", err.Error())
		}
	}

	return nil
}

// collectAttachmentKeys resolves object keys before the rows holding them
// are deleted.
func (p *Purge) collectAttachmentKeys(ctx context.Context, patientID int64) ([]string, error) {
	exams, err := p.exams.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get exams", model.ErrStorageUnavailable)
	}

	keys := make([]string, 0, len(exams))
	for _, exam := range exams {
		key := p.codec.Decode(exam.AttachmentKey)
		if key == "" || key == fieldcode.Sentinel {
			continue
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func patientSnapshot(p model.Patient) map[string]any {
	return map[string]any{
		"id":               p.ID,
		"cuenta_id":        p.AccountID,
		"nombre":           p.FullName,
		"fecha_nacimiento": p.BirthDate,
		"telefono":         p.Phone,
		"direccion":        p.Address,
	}
}
