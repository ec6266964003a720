package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ovialab/cliniguard-server/internal/fieldcode"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

const clinicalOrigin = "clinical-service"

// Clinical manages consultations and exams. Free-text fields pass through
// the field codec on every write and its inverse on every read, so the
// ivHex:cipherHex representation never leaves this service.
type Clinical struct {
	consultations model.ConsultationStore
	exams         model.ExamStore
	patients      model.PatientStore
	storage       model.Storage
	codec         *fieldcode.Codec
	audit         model.AuditSink
	txm           model.TxManager
	logger        *logger.Logger
}

func NewClinical(
	consultations model.ConsultationStore,
	exams model.ExamStore,
	patients model.PatientStore,
	storage model.Storage,
	codec *fieldcode.Codec,
	audit model.AuditSink,
	txm model.TxManager,
	logger *logger.Logger,
) *Clinical {
	return &Clinical{
		consultations: consultations,
		exams:         exams,
		patients:      patients,
		storage:       storage,
		codec:         codec,
		audit:         audit,
		txm:           txm,
		logger:        logger,
	}
}

func (c *Clinical) entry(actor model.Actor, severity model.Severity, action string, details map[string]any) model.AuditEntry {
	return model.AuditEntry{
		OriginService: clinicalOrigin,
		Severity:      severity,
		AccountID:     &actor.AccountID,
		AccountRole:   &actor.Role,
		SourceAddress: actor.Source,
		Action:        action,
		Details:       details,
	}
}

func (c *Clinical) CreateConsultation(ctx context.Context, actor model.Actor, in model.Consultation) (model.Consultation, error) {
	if _, err := c.patients.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Consultation{}, model.ErrNotFound
		}
		return model.Consultation{}, fmt.Errorf("%w: failed to get patient", model.ErrStorageUnavailable)
	}

	encoded, err := c.encodeConsultation(in)
	if err != nil {
		return model.Consultation{}, fmt.Errorf("failed to encode consultation: %w", err)
	}

	saved, err := c.consultations.Create(ctx, encoded)
	if err != nil {
		c.logger.Error("Clinical service: failed to create consultation",
			"patient_id", in.PatientID,
			"error", err.Error())
		return model.Consultation{}, fmt.Errorf("%w: failed to create consultation", model.ErrStorageUnavailable)
	}

	c.audit.Record(ctx, c.entry(actor, model.SeverityInfo, model.ActionRecordCreated, map[string]any{
		"tipo":        "consulta",
		"registro_id": saved.ID,
		"paciente_id": saved.PatientID,
	}))

	return c.decodeConsultation(saved), nil
}

func (c *Clinical) GetConsultation(ctx context.Context, id int64) (model.Consultation, error) {
	saved, err := c.consultations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Consultation{}, model.ErrNotFound
		}
		return model.Consultation{}, fmt.Errorf("%w: failed to get consultation", model.ErrStorageUnavailable)
	}

	return c.decodeConsultation(saved), nil
}

func (c *Clinical) GetConsultationsByPatient(ctx context.Context, patientID int64) ([]model.Consultation, error) {
	list, err := c.consultations.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get consultations", model.ErrStorageUnavailable)
	}

	decoded := make([]model.Consultation, len(list))
	for i, item := range list {
		decoded[i] = c.decodeConsultation(item)
	}

	return decoded, nil
}

// UpdateConsultation re-encrypts every free-text field with a fresh IV,
// changed or not, and audits a before/after snapshot of the plaintext.
func (c *Clinical) UpdateConsultation(ctx context.Context, actor model.Actor, in model.Consultation) (model.Consultation, error) {
	previous, err := c.consultations.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Consultation{}, model.ErrNotFound
		}
		return model.Consultation{}, fmt.Errorf("%w: failed to get consultation", model.ErrStorageUnavailable)
	}

	encoded, err := c.encodeConsultation(in)
	if err != nil {
		return model.Consultation{}, fmt.Errorf("failed to encode consultation: %w", err)
	}

	saved, err := c.consultations.Update(ctx, encoded)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Consultation{}, model.ErrNotFound
		}
		c.logger.Error("Clinical service: failed to update consultation",
			"consultation_id", in.ID,
			"error", err.Error())
		return model.Consultation{}, fmt.Errorf("%w: failed to update consultation", model.ErrStorageUnavailable)
	}

	c.audit.Record(ctx, c.entry(actor, model.SeverityWarning, model.ActionRecordUpdated, map[string]any{
		"tipo":        "consulta",
		"registro_id": saved.ID,
		"cambios": map[string]any{
			"anterior": consultationSnapshot(c.decodeConsultation(previous)),
			"nuevo":    consultationSnapshot(c.decodeConsultation(saved)),
		},
	}))

	return c.decodeConsultation(saved), nil
}

// DeleteConsultation removes one consultation. A consultation still
// referenced by exams is refused with ErrConflictingDependency unless the
// caller explicitly cascades, in which case the referencing exams go down
// with it in the same transaction.
func (c *Clinical) DeleteConsultation(ctx context.Context, actor model.Actor, id int64, cascade bool) error {
	previous, err := c.consultations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: failed to get consultation", model.ErrStorageUnavailable)
	}

	count, err := c.exams.CountByConsultation(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: failed to count referencing exams", model.ErrStorageUnavailable)
	}

	if count > 0 && !cascade {
		return fmt.Errorf("%w: %d exámenes referencian la consulta %d", model.ErrConflictingDependency, count, id)
	}

	var removedExams int64
	err = c.txm.WithinTx(ctx, func(ctx context.Context) error {
		if cascade {
			removedExams, err = c.exams.DeleteByConsultation(ctx, id)
			if err != nil {
				return err
			}
		}
		return c.consultations.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		c.logger.Error("Clinical service: failed to delete consultation",
			"consultation_id", id,
			"error", err.Error())
		return fmt.Errorf("%w: failed to delete consultation", model.ErrStorageUnavailable)
	}

	c.audit.Record(ctx, c.entry(actor, model.SeverityCritical, model.ActionRecordDeleted, map[string]any{
		"tipo":                "consulta",
		"registro_id":         id,
		"examenes_eliminados": removedExams,
		"snapshot":            consultationSnapshot(c.decodeConsultation(previous)),
	}))

	return nil
}

// CreateExam stores an exam, uploading the optional attachment first so the
// stored key always points at an existing object.
func (c *Clinical) CreateExam(ctx context.Context, actor model.Actor, in model.Exam, attachment io.Reader) (model.Exam, error) {
	if _, err := c.patients.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Exam{}, model.ErrNotFound
		}
		return model.Exam{}, fmt.Errorf("%w: failed to get patient", model.ErrStorageUnavailable)
	}

	if attachment != nil {
		key := fmt.Sprintf("exams/%d/%s", in.PatientID, uuid.NewString())
		if err := c.storage.Upload(ctx, key, attachment); err != nil {
			c.logger.Error("Clinical service: failed to upload attachment",
				"patient_id", in.PatientID,
				"error", err.Error())
			return model.Exam{}, fmt.Errorf("%w: failed to upload attachment", model.ErrStorageUnavailable)
		}
		in.AttachmentKey = key
	}

	encoded, err := c.encodeExam(in)
	if err != nil {
		return model.Exam{}, fmt.Errorf("failed to encode exam: %w", err)
	}

	saved, err := c.exams.Create(ctx, encoded)
	if err != nil {
		c.logger.Error("Clinical service: failed to create exam",
			"patient_id", in.PatientID,
			"error", err.Error())
		return model.Exam{}, fmt.Errorf("%w: failed to create exam", model.ErrStorageUnavailable)
	}

	c.audit.Record(ctx, c.entry(actor, model.SeverityInfo, model.ActionRecordCreated, map[string]any{
		"tipo":        "examen",
		"registro_id": saved.ID,
		"paciente_id": saved.PatientID,
	}))

	return c.decodeExam(saved), nil
}

func (c *Clinical) GetExam(ctx context.Context, id int64) (model.Exam, error) {
	saved, err := c.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Exam{}, model.ErrNotFound
		}
		return model.Exam{}, fmt.Errorf("%w: failed to get exam", model.ErrStorageUnavailable)
	}

	return c.decodeExam(saved), nil
}

func (c *Clinical) GetExamsByPatient(ctx context.Context, patientID int64) ([]model.Exam, error) {
	list, err := c.exams.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get exams", model.ErrStorageUnavailable)
	}

	decoded := make([]model.Exam, len(list))
	for i, item := range list {
		decoded[i] = c.decodeExam(item)
	}

	return decoded, nil
}

func (c *Clinical) GetExamsByConsultation(ctx context.Context, consultationID int64) ([]model.Exam, error) {
	list, err := c.exams.GetByConsultation(ctx, consultationID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get exams", model.ErrStorageUnavailable)
	}

	decoded := make([]model.Exam, len(list))
	for i, item := range list {
		decoded[i] = c.decodeExam(item)
	}

	return decoded, nil
}

// DownloadAttachment streams the exam's attachment from object storage.
func (c *Clinical) DownloadAttachment(ctx context.Context, examID int64) (io.ReadCloser, error) {
	exam, err := c.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	if exam.AttachmentKey == "" || exam.AttachmentKey == fieldcode.Sentinel {
		return nil, model.ErrNotFound
	}

	reader, err := c.storage.Download(ctx, exam.AttachmentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download attachment", model.ErrStorageUnavailable)
	}

	return reader, nil
}

// DeleteExam removes one exam, then its attachment object best-effort.
func (c *Clinical) DeleteExam(ctx context.Context, actor model.Actor, id int64) error {
	previous, err := c.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: failed to get exam", model.ErrStorageUnavailable)
	}

	if err := c.exams.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		c.logger.Error("Clinical service: failed to delete exam",
			"exam_id", id,
			"error", err.Error())
		return fmt.Errorf("%w: failed to delete exam", model.ErrStorageUnavailable)
	}

	decoded := c.decodeExam(previous)
	c.deleteAttachment(ctx, decoded.AttachmentKey)

	c.audit.Record(ctx, c.entry(actor, model.SeverityCritical, model.ActionRecordDeleted, map[string]any{
		"tipo":        "examen",
		"registro_id": id,
		"snapshot":    examSnapshot(decoded),
	}))

	return nil
}

// deleteAttachment removes an attachment object after the row is gone. The
// row delete is already committed, so an object-store failure is only
// logged; the orphaned object is harmless.
func (c *Clinical) deleteAttachment(ctx context.Context, key string) {
	if key == "" || key == fieldcode.Sentinel {
		return
	}
	if err := c.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		c.logger.Error("Clinical service: failed to delete attachment",
			"key", key,
			"error", err.Error())
	}
}

func (c *Clinical) encodeConsultation(in model.Consultation) (model.Consultation, error) {
	out := in
	for _, field := range []struct {
		dst *string
		src string
	}{
		{&out.Motive, in.Motive},
		{&out.Symptoms, in.Symptoms},
		{&out.Diagnosis, in.Diagnosis},
		{&out.Treatment, in.Treatment},
		{&out.Notes, in.Notes},
	} {
		encoded, err := c.codec.Encode(field.src)
		if err != nil {
			return model.Consultation{}, err
		}
		*field.dst = encoded
	}
	return out, nil
}

func (c *Clinical) decodeConsultation(in model.Consultation) model.Consultation {
	out := in
	out.Motive = c.codec.Decode(in.Motive)
	out.Symptoms = c.codec.Decode(in.Symptoms)
	out.Diagnosis = c.codec.Decode(in.Diagnosis)
	out.Treatment = c.codec.Decode(in.Treatment)
	out.Notes = c.codec.Decode(in.Notes)
	return out
}

func (c *Clinical) encodeExam(in model.Exam) (model.Exam, error) {
	out := in
	observations, err := c.codec.Encode(in.Observations)
	if err != nil {
		return model.Exam{}, err
	}
	attachmentKey, err := c.codec.Encode(in.AttachmentKey)
	if err != nil {
		return model.Exam{}, err
	}
	out.Observations = observations
	out.AttachmentKey = attachmentKey
	return out, nil
}

func (c *Clinical) decodeExam(in model.Exam) model.Exam {
	out := in
	out.Observations = c.codec.Decode(in.Observations)
	out.AttachmentKey = c.codec.Decode(in.AttachmentKey)
	return out
}

func consultationSnapshot(c model.Consultation) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"paciente_id": c.PatientID,
		"medico_id":   c.ClinicianID,
		"fecha":       c.Date,
		"tipo":        c.Kind,
		"motivo":      c.Motive,
		"sintomas":    c.Symptoms,
		"diagnostico": c.Diagnosis,
		"tratamiento": c.Treatment,
		"notas":       c.Notes,
	}
}

func examSnapshot(e model.Exam) map[string]any {
	return map[string]any{
		"id":            e.ID,
		"paciente_id":   e.PatientID,
		"medico_id":     e.ClinicianID,
		"consulta_id":   e.ConsultationID,
		"fecha":         e.Date,
		"tipo":          e.Kind,
		"observaciones": e.Observations,
		"adjunto":       e.AttachmentKey,
	}
}
