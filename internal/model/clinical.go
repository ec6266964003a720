package model

import (
	"context"
	"time"
)

// Consultation is a clinical visit record. The free-text fields hold
// ciphertext at rest (see fieldcode) and plaintext in memory after the
// service layer decodes them.
type Consultation struct {
	ID          int64
	PatientID   int64
	ClinicianID int64
	Date        time.Time
	Kind        string
	Motive      string
	Symptoms    string
	Diagnosis   string
	Treatment   string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Exam is a clinical exam record, optionally linked to the consultation
// that ordered it. Observations and AttachmentKey are encrypted at rest.
type Exam struct {
	ID             int64
	PatientID      int64
	ClinicianID    int64
	ConsultationID *int64
	Date           time.Time
	Kind           string
	Observations   string
	AttachmentKey  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConsultationStore defines persistence operations for consultations.
type ConsultationStore interface {
	Create(ctx context.Context, c Consultation) (Consultation, error)
	GetByID(ctx context.Context, id int64) (Consultation, error)
	GetByPatient(ctx context.Context, patientID int64) ([]Consultation, error)
	Update(ctx context.Context, c Consultation) (Consultation, error)
	Delete(ctx context.Context, id int64) error
	DeleteByPatient(ctx context.Context, patientID int64) (int64, error)
}

// ExamStore defines persistence operations for exams.
type ExamStore interface {
	Create(ctx context.Context, e Exam) (Exam, error)
	GetByID(ctx context.Context, id int64) (Exam, error)
	GetByPatient(ctx context.Context, patientID int64) ([]Exam, error)
	// CountByConsultation reports how many exams still reference a
	// consultation; a non-zero count blocks its deletion.
	CountByConsultation(ctx context.Context, consultationID int64) (int64, error)
	GetByConsultation(ctx context.Context, consultationID int64) ([]Exam, error)
	Delete(ctx context.Context, id int64) error
	DeleteByConsultation(ctx context.Context, consultationID int64) (int64, error)
	DeleteByPatient(ctx context.Context, patientID int64) (int64, error)
}
