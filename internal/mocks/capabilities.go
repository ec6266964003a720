package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/ovialab/cliniguard-server/internal/model"
)

// AuditSink is a mock model.AuditSink. Tests assert exactly one Record call
// per security transition.
type AuditSink struct {
	mock.Mock
}

func (m *AuditSink) Record(ctx context.Context, entry model.AuditEntry) {
	m.Called(ctx, entry)
}

// TokenManager is a mock model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateSessionToken(accountID int64, role model.Role, email string) (string, error) {
	args := m.Called(accountID, role, email)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) GenerateChallengeToken(accountID int64) (string, error) {
	args := m.Called(accountID)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) ParseSessionToken(token string) (model.TokenIdentity, error) {
	args := m.Called(token)
	return args.Get(0).(model.TokenIdentity), args.Error(1)
}

func (m *TokenManager) ParseChallengeToken(token string) (int64, error) {
	args := m.Called(token)
	return args.Get(0).(int64), args.Error(1)
}

// Mailer is a mock model.Mailer.
type Mailer struct {
	mock.Mock
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// Storage is a mock model.Storage.
type Storage struct {
	mock.Mock
}

func (m *Storage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Storage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// TxManager is a mock model.TxManager. By default it executes fn with the
// given context, so tests observe the same store calls a real transaction
// would issue.
type TxManager struct {
	mock.Mock
	// FailAfter aborts the unit of work with the given error after fn
	// runs, simulating a commit failure.
	FailAfter error
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return m.FailAfter
}
