// Package mocks provides testify mocks for the model interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ovialab/cliniguard-server/internal/model"
)

// AccountStore is a mock model.AccountStore.
type AccountStore struct {
	mock.Mock
}

func (m *AccountStore) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) GetByID(ctx context.Context, id int64) (model.Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) Create(ctx context.Context, account model.Account) (model.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) IncrementFailedAttempts(ctx context.Context, id int64, threshold int) (int, bool, error) {
	args := m.Called(ctx, id, threshold)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *AccountStore) SetOTP(ctx context.Context, id int64, code string, expiry time.Time) error {
	args := m.Called(ctx, id, code, expiry)
	return args.Error(0)
}

func (m *AccountStore) ClearOTP(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *AccountStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *AccountStore) SetEmail(ctx context.Context, id int64, email string) error {
	args := m.Called(ctx, id, email)
	return args.Error(0)
}

func (m *AccountStore) Unlock(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *AccountStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// PatientStore is a mock model.PatientStore.
type PatientStore struct {
	mock.Mock
}

func (m *PatientStore) GetByID(ctx context.Context, id int64) (model.Patient, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Patient), args.Error(1)
}

func (m *PatientStore) GetByAccountID(ctx context.Context, accountID int64) (model.Patient, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(model.Patient), args.Error(1)
}

func (m *PatientStore) Create(ctx context.Context, p model.Patient) (model.Patient, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Patient), args.Error(1)
}

func (m *PatientStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ConsultationStore is a mock model.ConsultationStore.
type ConsultationStore struct {
	mock.Mock
}

func (m *ConsultationStore) Create(ctx context.Context, c model.Consultation) (model.Consultation, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.Consultation), args.Error(1)
}

func (m *ConsultationStore) GetByID(ctx context.Context, id int64) (model.Consultation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Consultation), args.Error(1)
}

func (m *ConsultationStore) GetByPatient(ctx context.Context, patientID int64) ([]model.Consultation, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Consultation), args.Error(1)
}

func (m *ConsultationStore) Update(ctx context.Context, c model.Consultation) (model.Consultation, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.Consultation), args.Error(1)
}

func (m *ConsultationStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ConsultationStore) DeleteByPatient(ctx context.Context, patientID int64) (int64, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(int64), args.Error(1)
}

// ExamStore is a mock model.ExamStore.
type ExamStore struct {
	mock.Mock
}

func (m *ExamStore) Create(ctx context.Context, e model.Exam) (model.Exam, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(model.Exam), args.Error(1)
}

func (m *ExamStore) GetByID(ctx context.Context, id int64) (model.Exam, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Exam), args.Error(1)
}

func (m *ExamStore) GetByPatient(ctx context.Context, patientID int64) ([]model.Exam, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Exam), args.Error(1)
}

func (m *ExamStore) CountByConsultation(ctx context.Context, consultationID int64) (int64, error) {
	args := m.Called(ctx, consultationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ExamStore) GetByConsultation(ctx context.Context, consultationID int64) ([]model.Exam, error) {
	args := m.Called(ctx, consultationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Exam), args.Error(1)
}

func (m *ExamStore) DeleteByConsultation(ctx context.Context, consultationID int64) (int64, error) {
	args := m.Called(ctx, consultationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ExamStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ExamStore) DeleteByPatient(ctx context.Context, patientID int64) (int64, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(int64), args.Error(1)
}

// MessageStore is a mock model.MessageStore.
type MessageStore struct {
	mock.Mock
}

func (m *MessageStore) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(model.Message), args.Error(1)
}

func (m *MessageStore) GetBetween(ctx context.Context, a, b int64) ([]model.Message, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MessageStore) DeleteByParticipant(ctx context.Context, accountID int64) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

// AuditStore is a mock model.AuditStore.
type AuditStore struct {
	mock.Mock
}

func (m *AuditStore) Insert(ctx context.Context, event model.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *AuditStore) ListRecent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEvent), args.Error(1)
}
