package model

import (
	"context"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleClinician     Role = "clinician"
	RolePatient       Role = "patient"
	RoleAdministrator Role = "administrator"
)

// LockoutThreshold is the number of consecutive failed password attempts
// after which an account is disabled.
const LockoutThreshold = 3

// OTPLength is the number of decimal digits in a one-time code.
const OTPLength = 6

// OTPTTL is how long a one-time code stays valid.
const OTPTTL = 10 * time.Minute

// Account represents an identity with credential state. Email lookups are
// case-insensitive; PendingOTPCode and OTPExpiry are always set or cleared
// together.
type Account struct {
	ID             int64
	Email          string
	PasswordHash   string
	Role           Role
	Active         bool
	FailedAttempts int
	PendingOTPCode *string
	OTPExpiry      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountStore defines persistence operations for accounts. Mutations are
// single-row updates; the row is the unit of consistency under concurrent
// logins against the same account.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, account Account) (Account, error)
	// IncrementFailedAttempts bumps the counter atomically and returns the
	// new value, disabling the account in the same statement once the
	// threshold is reached.
	IncrementFailedAttempts(ctx context.Context, id int64, threshold int) (attempts int, locked bool, err error)
	// SetOTP stores a pending one-time code with its expiry and resets the
	// failed-attempt counter in one update.
	SetOTP(ctx context.Context, id int64, code string, expiry time.Time) error
	// ClearOTP removes the pending code and its expiry together.
	ClearOTP(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	SetEmail(ctx context.Context, id int64, email string) error
	// Unlock re-enables the account and resets the failed-attempt counter.
	Unlock(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
