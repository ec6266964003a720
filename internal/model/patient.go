package model

import (
	"context"
	"time"
)

// Patient is the profile record owned by a patient account.
type Patient struct {
	ID        int64
	AccountID int64
	FullName  string
	BirthDate *time.Time
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PatientStore defines persistence operations for patient profiles.
type PatientStore interface {
	GetByID(ctx context.Context, id int64) (Patient, error)
	GetByAccountID(ctx context.Context, accountID int64) (Patient, error)
	Create(ctx context.Context, p Patient) (Patient, error)
	Delete(ctx context.Context, id int64) error
}

// Message is a message exchanged between two accounts. Subject purge removes
// messages where the subject is sender or recipient.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Body        string
	SentAt      time.Time
}

// MessageStore defines persistence operations for messages.
type MessageStore interface {
	Create(ctx context.Context, m Message) (Message, error)
	GetBetween(ctx context.Context, a, b int64) ([]Message, error)
	DeleteByParticipant(ctx context.Context, accountID int64) (int64, error)
}
