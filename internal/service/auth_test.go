package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ovialab/cliniguard-server/internal/mocks"
	"github.com/ovialab/cliniguard-server/internal/model"
	"github.com/ovialab/cliniguard-server/internal/password"
	"github.com/ovialab/cliniguard-server/internal/testutil"
)

func mustHash(t *testing.T, pass string) string {
	t.Helper()
	hash, err := password.Hash(pass)
	require.NoError(t, err)
	return hash
}

func recordedAction(action string) any {
	return mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Action == action
	})
}

func TestAuth_Login_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	accounts.On("GetByEmail", mock.Anything, "ghost@clinic.test").Return(model.Account{}, model.ErrNotFound)
	audit.On("Record", mock.Anything, recordedAction(model.ActionLoginFailed)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	_, err := a.Login(ctx, "ghost@clinic.test", "whatever", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_Login_LockedAccount(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{
		ID:           7,
		Email:        "locked@clinic.test",
		PasswordHash: mustHash(t, "secret"),
		Role:         model.RoleClinician,
		Active:       false,
	}
	accounts.On("GetByEmail", mock.Anything, "locked@clinic.test").Return(account, nil)
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Action == model.ActionAccessDenied && e.Severity == model.SeveritySecurity
	})).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	// The password being correct does not matter once the account is
	// disabled.
	_, err := a.Login(ctx, "locked@clinic.test", "secret", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrAccountLocked)

	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_Login_WrongPassword_Counted(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{
		ID:           7,
		Email:        "clinician@clinic.test",
		PasswordHash: mustHash(t, "secret"),
		Role:         model.RoleClinician,
		Active:       true,
	}
	accounts.On("GetByEmail", mock.Anything, "clinician@clinic.test").Return(account, nil)
	accounts.On("IncrementFailedAttempts", mock.Anything, int64(7), model.LockoutThreshold).Return(1, false, nil)
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Action == model.ActionLoginFailed && e.Severity == model.SeverityWarning
	})).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	challenge, err := a.Login(ctx, "clinician@clinic.test", "wrong", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "intento 1 de 3")
	assert.Equal(t, 1, challenge.Attempt)

	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_Login_WrongPassword_ReachesThreshold(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{
		ID:           7,
		Email:        "clinician@clinic.test",
		PasswordHash: mustHash(t, "secret"),
		Role:         model.RoleClinician,
		Active:       true,
	}
	accounts.On("GetByEmail", mock.Anything, "clinician@clinic.test").Return(account, nil)
	accounts.On("IncrementFailedAttempts", mock.Anything, int64(7), model.LockoutThreshold).Return(3, true, nil)
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Action == model.ActionAccountLocked && e.Severity == model.SeverityCritical
	})).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	_, err := a.Login(ctx, "clinician@clinic.test", "wrong", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrAccountLocked)

	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_Login_StorageError_NoAuditEvent(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	accounts.On("GetByEmail", mock.Anything, "clinician@clinic.test").Return(model.Account{}, assert.AnError)

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	_, err := a.Login(ctx, "clinician@clinic.test", "secret", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrStorageUnavailable)

	// Infrastructure failures are not security decisions.
	audit.AssertNumberOfCalls(t, "Record", 0)
}

func TestAuth_Login_Success_IssuesChallenge(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{
		ID:             7,
		Email:          "clinician@clinic.test",
		PasswordHash:   mustHash(t, "secret"),
		Role:           model.RoleClinician,
		Active:         true,
		FailedAttempts: 2,
	}
	accounts.On("GetByEmail", mock.Anything, "clinician@clinic.test").Return(account, nil)

	var issuedCode string
	accounts.On("SetOTP", mock.Anything, int64(7), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			issuedCode = args.String(2)
			expiry := args.Get(3).(time.Time)
			assert.WithinDuration(t, time.Now().Add(model.OTPTTL), expiry, time.Minute)
		}).
		Return(nil)
	tokens.On("GenerateChallengeToken", int64(7)).Return("challenge-token", nil)
	// Delivery runs detached; the goroutine may or may not land before the
	// test finishes.
	mailer.On("Send", mock.Anything, "clinician@clinic.test", mock.Anything, mock.Anything).Return(nil).Maybe()
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Action == model.ActionOTPSent && e.Severity == model.SeverityInfo
	})).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	challenge, err := a.Login(ctx, "clinician@clinic.test", "secret", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), challenge.AccountID)
	assert.Equal(t, "challenge-token", challenge.ChallengeToken)
	assert.Equal(t, "c***@clinic.test", challenge.MaskedEmail)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), issuedCode)

	accounts.AssertExpectations(t)
	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_VerifyOTP_Success(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	code := "123456"
	expiry := time.Now().Add(5 * time.Minute)
	account := model.Account{
		ID:             7,
		Email:          "clinician@clinic.test",
		Role:           model.RoleClinician,
		Active:         true,
		PendingOTPCode: &code,
		OTPExpiry:      &expiry,
	}
	accounts.On("GetByID", mock.Anything, int64(7)).Return(account, nil)
	accounts.On("ClearOTP", mock.Anything, int64(7)).Return(nil)
	tokens.On("GenerateSessionToken", int64(7), model.RoleClinician, "clinician@clinic.test").Return("session-token", nil)
	audit.On("Record", mock.Anything, recordedAction(model.ActionLoginSuccess)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	session, err := a.VerifyOTP(ctx, 7, "123456", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "session-token", session.Token)
	assert.Equal(t, int64(7), session.AccountID)
	assert.Equal(t, model.RoleClinician, session.Role)
	assert.Equal(t, "clinician@clinic.test", session.Email)

	accounts.AssertExpectations(t)
	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_VerifyOTP_WrongCode(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	code := "123456"
	expiry := time.Now().Add(5 * time.Minute)
	account := model.Account{
		ID:             7,
		Role:           model.RoleClinician,
		Active:         true,
		PendingOTPCode: &code,
		OTPExpiry:      &expiry,
	}
	accounts.On("GetByID", mock.Anything, int64(7)).Return(account, nil)
	audit.On("Record", mock.Anything, recordedAction(model.ActionOTPFailed)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	_, err := a.VerifyOTP(ctx, 7, "654321", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrOTPInvalid)

	accounts.AssertNotCalled(t, "ClearOTP", mock.Anything, mock.Anything)
	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_VerifyOTP_Expired(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	code := "123456"
	expiry := time.Now().Add(-time.Second)
	account := model.Account{
		ID:             7,
		Role:           model.RoleClinician,
		Active:         true,
		PendingOTPCode: &code,
		OTPExpiry:      &expiry,
	}
	accounts.On("GetByID", mock.Anything, int64(7)).Return(account, nil)
	audit.On("Record", mock.Anything, recordedAction(model.ActionOTPFailed)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	// Correct code, too late.
	_, err := a.VerifyOTP(ctx, 7, "123456", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrOTPInvalid)

	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_VerifyOTP_NoPendingCode(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{ID: 7, Role: model.RoleClinician, Active: true}
	accounts.On("GetByID", mock.Anything, int64(7)).Return(account, nil)
	audit.On("Record", mock.Anything, recordedAction(model.ActionOTPFailed)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	_, err := a.VerifyOTP(ctx, 7, "123456", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrOTPInvalid)

	audit.AssertExpectations(t)
}

func TestAuth_VerifyOTP_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	accounts.On("GetByID", mock.Anything, int64(404)).Return(model.Account{}, model.ErrNotFound)
	audit.On("Record", mock.Anything, recordedAction(model.ActionOTPFailed)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	// Same failure as a wrong code, so the response is not an oracle for
	// account existence.
	_, err := a.VerifyOTP(ctx, 404, "123456", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrOTPInvalid)

	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAuth_Register_Success(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	accounts.On("GetByEmail", mock.Anything, "new@clinic.test").Return(model.Account{}, model.ErrNotFound)
	accounts.On("Create", mock.Anything, mock.MatchedBy(func(a model.Account) bool {
		ok, err := password.Verify("secret", a.PasswordHash)
		return a.Email == "new@clinic.test" && a.Role == model.RolePatient && a.Active && err == nil && ok
	})).Return(model.Account{ID: 11, Email: "new@clinic.test", Role: model.RolePatient, Active: true}, nil)
	audit.On("Record", mock.Anything, recordedAction(model.ActionAccountCreated)).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	account, err := a.Register(ctx, "new@clinic.test", "secret", model.RolePatient, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), account.ID)

	accounts.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestAuth_Register_EmailTaken(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	accounts.On("GetByEmail", mock.Anything, "taken@clinic.test").Return(model.Account{ID: 3}, nil)

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	_, err := a.Register(ctx, "taken@clinic.test", "secret", model.RolePatient, "10.0.0.1")
	require.ErrorIs(t, err, model.ErrEmailTaken)

	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuth_UpdateEmail_AuditsSnapshot(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{ID: 7, Email: "old@clinic.test", Role: model.RoleClinician, Active: true}
	accounts.On("GetByID", mock.Anything, int64(7)).Return(account, nil)
	accounts.On("SetEmail", mock.Anything, int64(7), "new@clinic.test").Return(nil)
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		changes, ok := e.Details["cambios"].(map[string]any)
		return e.Action == model.ActionEmailChange && ok &&
			changes["anterior"] == "old@clinic.test" && changes["nuevo"] == "new@clinic.test"
	})).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	require.NoError(t, a.UpdateEmail(ctx, 7, "new@clinic.test", "10.0.0.1"))

	accounts.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestAuth_UnlockAccount(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{ID: 7, Email: "locked@clinic.test", Role: model.RolePatient, Active: false}
	accounts.On("GetByID", mock.Anything, int64(7)).Return(account, nil)
	accounts.On("Unlock", mock.Anything, int64(7)).Return(nil)
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Action == model.ActionUnlocked && e.Severity == model.SeveritySecurity
	})).Once()

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	require.NoError(t, a.UnlockAccount(ctx, 7, "10.0.0.1"))

	accounts.AssertExpectations(t)
	audit.AssertExpectations(t)
}

// TestAuth_LoginFlow_EndToEnd walks the full second-factor flow against a
// stateful in-test account: a correct password on the third attempt issues
// a challenge, the issued code completes the login once, and a replay of
// the same code fails.
func TestAuth_LoginFlow_EndToEnd(t *testing.T) {
	ctx := context.Background()
	accounts := &mocks.AccountStore{}
	audit := &mocks.AuditSink{}
	tokens := &mocks.TokenManager{}
	mailer := &mocks.Mailer{}

	account := model.Account{
		ID:             7,
		Email:          "clinician@clinic.test",
		PasswordHash:   mustHash(t, "secret"),
		Role:           model.RoleClinician,
		Active:         true,
		FailedAttempts: 2,
	}

	accounts.On("GetByEmail", mock.Anything, "clinician@clinic.test").Return(account, nil)
	accounts.On("SetOTP", mock.Anything, int64(7), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			code := args.String(2)
			expiry := args.Get(3).(time.Time)
			account.PendingOTPCode = &code
			account.OTPExpiry = &expiry
			account.FailedAttempts = 0
		}).
		Return(nil)
	getByID := accounts.On("GetByID", mock.Anything, int64(7))
	getByID.Run(func(args mock.Arguments) {
		getByID.ReturnArguments = mock.Arguments{account, nil}
	})
	accounts.On("ClearOTP", mock.Anything, int64(7)).
		Run(func(args mock.Arguments) {
			account.PendingOTPCode = nil
			account.OTPExpiry = nil
		}).
		Return(nil)
	tokens.On("GenerateChallengeToken", int64(7)).Return("challenge-token", nil)
	tokens.On("GenerateSessionToken", int64(7), model.RoleClinician, "clinician@clinic.test").Return("session-token", nil)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	audit.On("Record", mock.Anything, mock.Anything)

	a := NewAuth(accounts, audit, tokens, mailer, testutil.MakeNoopLogger())

	challenge, err := a.Login(ctx, "clinician@clinic.test", "secret", "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, account.PendingOTPCode)
	assert.Equal(t, 0, account.FailedAttempts)
	assert.Equal(t, "challenge-token", challenge.ChallengeToken)

	code := *account.PendingOTPCode

	session, err := a.VerifyOTP(ctx, 7, code, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "session-token", session.Token)

	// The accepted code was cleared; presenting it again must fail.
	_, err = a.VerifyOTP(ctx, 7, code, "10.0.0.1")
	require.ErrorIs(t, err, model.ErrOTPInvalid)
}

func TestGenerateOTP(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
		seen[code] = struct{}{}
	}
	// 50 draws from a million values collide with negligible probability.
	assert.Greater(t, len(seen), 1)
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "regular", email: "clinician@clinic.test", want: "c***@clinic.test"},
		{name: "single char local", email: "a@clinic.test", want: "a***@clinic.test"},
		{name: "no at sign", email: "not-an-email", want: "***"},
		{name: "empty local", email: "@clinic.test", want: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskEmail(tt.email))
		})
	}
}
