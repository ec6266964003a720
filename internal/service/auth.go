package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
	"github.com/ovialab/cliniguard-server/internal/password"
)

const authOrigin = "auth-service"

// Auth owns the login, lockout and one-time-code state machine and issues
// session tokens. Every security-relevant transition emits exactly one
// audit event before the response; only the storage-failure path does not,
// since that is an infrastructure failure rather than a security decision.
type Auth struct {
	accounts model.AccountStore
	audit    model.AuditSink
	tokens   model.TokenManager
	mailer   model.Mailer
	logger   *logger.Logger
	now      func() time.Time
}

func NewAuth(
	accounts model.AccountStore,
	audit model.AuditSink,
	tokens model.TokenManager,
	mailer model.Mailer,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		accounts: accounts,
		audit:    audit,
		tokens:   tokens,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
	}
}

// Login checks the credentials for email and, when they hold, issues a
// one-time code challenge. The caller never learns whether the email is
// registered: unknown email and wrong password both come back as
// ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, email, pass, source string) (model.LoginChallenge, error) {
	a.logger.Debug("Auth service: login attempt", "email", email)

	account, err := a.accounts.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.audit.Record(ctx, model.AuditEntry{
			OriginService: authOrigin,
			Severity:      model.SeverityWarning,
			SourceAddress: source,
			Action:        model.ActionLoginFailed,
			Details:       map[string]any{"motivo": "usuario no encontrado", "email": email},
		})
		return model.LoginChallenge{}, model.ErrInvalidCredentials
	}
	if err != nil {
		a.logger.Error("Auth service: failed to get account by email",
			"email", email,
			"error", err.Error())
		return model.LoginChallenge{}, fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	if !account.Active {
		a.audit.Record(ctx, model.AuditEntry{
			OriginService: authOrigin,
			Severity:      model.SeveritySecurity,
			AccountID:     &account.ID,
			AccountRole:   &account.Role,
			SourceAddress: source,
			Action:        model.ActionAccessDenied,
			Details:       map[string]any{"motivo": "cuenta bloqueada"},
		})
		return model.LoginChallenge{}, model.ErrAccountLocked
	}

	ok, err := password.Verify(pass, account.PasswordHash)
	if err != nil {
		a.logger.Error("Auth service: failed to verify password",
			"account_id", account.ID,
			"error", err.Error())
		return model.LoginChallenge{}, fmt.Errorf("%w: failed to verify password", model.ErrStorageUnavailable)
	}

	if !ok {
		return a.handleFailedPassword(ctx, account, source)
	}

	return a.issueChallenge(ctx, account, source)
}

func (a *Auth) handleFailedPassword(ctx context.Context, account model.Account, source string) (model.LoginChallenge, error) {
	attempts, locked, err := a.accounts.IncrementFailedAttempts(ctx, account.ID, model.LockoutThreshold)
	if err != nil {
		a.logger.Error("Auth service: failed to increment failed attempts",
			"account_id", account.ID,
			"error", err.Error())
		return model.LoginChallenge{}, fmt.Errorf("%w: failed to update attempts", model.ErrStorageUnavailable)
	}

	if locked {
		a.audit.Record(ctx, model.AuditEntry{
			OriginService: authOrigin,
			Severity:      model.SeverityCritical,
			AccountID:     &account.ID,
			AccountRole:   &account.Role,
			SourceAddress: source,
			Action:        model.ActionAccountLocked,
			Details:       map[string]any{"intentos": attempts, "limite": model.LockoutThreshold},
		})
		return model.LoginChallenge{}, model.ErrAccountLocked
	}

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeverityWarning,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionLoginFailed,
		Details:       map[string]any{"intento": attempts, "limite": model.LockoutThreshold},
	})

	// The counted message is a deliberate UX choice: the account identity
	// is already implied by the email the caller typed.
	return model.LoginChallenge{Attempt: attempts},
		fmt.Errorf("%w: intento %d de %d", model.ErrInvalidCredentials, attempts, model.LockoutThreshold)
}

func (a *Auth) issueChallenge(ctx context.Context, account model.Account, source string) (model.LoginChallenge, error) {
	code, err := generateOTP()
	if err != nil {
		a.logger.Error("Auth service: failed to generate otp",
			"account_id", account.ID,
			"error", err.Error())
		return model.LoginChallenge{}, fmt.Errorf("failed to generate otp: %w", err)
	}

	expiry := a.now().Add(model.OTPTTL)
	if err := a.accounts.SetOTP(ctx, account.ID, code, expiry); err != nil {
		a.logger.Error("Auth service: failed to persist otp",
			"account_id", account.ID,
			"error", err.Error())
		return model.LoginChallenge{}, fmt.Errorf("%w: failed to persist otp", model.ErrStorageUnavailable)
	}

	challengeToken, err := a.tokens.GenerateChallengeToken(account.ID)
	if err != nil {
		return model.LoginChallenge{}, fmt.Errorf("failed to issue challenge token: %w", err)
	}

	// Delivery is fire-and-forget: the login response does not wait for the
	// mail transport, and a delivery failure is not retried here.
	go a.deliverOTP(context.WithoutCancel(ctx), account, code)

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeverityInfo,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionOTPSent,
		Details:       map[string]any{"destino": maskEmail(account.Email)},
	})

	a.logger.Info("Auth service: second factor required", "account_id", account.ID)

	return model.LoginChallenge{
		AccountID:      account.ID,
		ChallengeToken: challengeToken,
		MaskedEmail:    maskEmail(account.Email),
	}, nil
}

func (a *Auth) deliverOTP(ctx context.Context, account model.Account, code string) {
	subject := "Tu código de acceso"
	body := fmt.Sprintf("Tu código de verificación es %s. Caduca en %d minutos.",
		code, int(model.OTPTTL.Minutes()))

	if err := a.mailer.Send(ctx, account.Email, subject, body); err != nil {
		a.logger.Error("Auth service: failed to deliver otp",
			"account_id", account.ID,
			"error", err.Error())
	}
}

// VerifyOTP completes a login. Missing account, wrong code and expired code
// all fail identically with ErrOTPInvalid so the response is not an oracle.
// A verified code is cleared before the token is returned, making replay
// impossible even inside the expiry window.
func (a *Auth) VerifyOTP(ctx context.Context, accountID int64, code, source string) (model.Session, error) {
	account, err := a.accounts.GetByID(ctx, accountID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, a.failOTP(ctx, accountID, nil, source, "cuenta inexistente")
	}
	if err != nil {
		a.logger.Error("Auth service: failed to get account by id",
			"account_id", accountID,
			"error", err.Error())
		return model.Session{}, fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	if account.PendingOTPCode == nil || account.OTPExpiry == nil {
		return model.Session{}, a.failOTP(ctx, accountID, &account.Role, source, "sin código pendiente")
	}

	if subtle.ConstantTimeCompare([]byte(*account.PendingOTPCode), []byte(code)) != 1 {
		return model.Session{}, a.failOTP(ctx, accountID, &account.Role, source, "código incorrecto")
	}

	if a.now().After(*account.OTPExpiry) {
		return model.Session{}, a.failOTP(ctx, accountID, &account.Role, source, "código caducado")
	}

	if err := a.accounts.ClearOTP(ctx, account.ID); err != nil {
		a.logger.Error("Auth service: failed to clear otp",
			"account_id", account.ID,
			"error", err.Error())
		return model.Session{}, fmt.Errorf("%w: failed to clear otp", model.ErrStorageUnavailable)
	}

	sessionToken, err := a.tokens.GenerateSessionToken(account.ID, account.Role, account.Email)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to issue session token: %w", err)
	}

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeverityInfo,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionLoginSuccess,
	})

	a.logger.Info("Auth service: login completed", "account_id", account.ID)

	return model.Session{
		Token:     sessionToken,
		AccountID: account.ID,
		Role:      account.Role,
		Email:     account.Email,
	}, nil
}

func (a *Auth) failOTP(ctx context.Context, accountID int64, role *model.Role, source, reason string) error {
	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeverityWarning,
		AccountID:     &accountID,
		AccountRole:   role,
		SourceAddress: source,
		Action:        model.ActionOTPFailed,
		Details:       map[string]any{"motivo": reason},
	})
	return model.ErrOTPInvalid
}

// Register creates an account with a hashed password.
func (a *Auth) Register(ctx context.Context, email, pass string, role model.Role, source string) (model.Account, error) {
	_, err := a.accounts.GetByEmail(ctx, email)
	if err == nil {
		return model.Account{}, model.ErrEmailTaken
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	hash, err := password.Hash(pass)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := a.accounts.Create(ctx, model.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		a.logger.Error("Auth service: failed to create account",
			"email", email,
			"error", err.Error())
		return model.Account{}, fmt.Errorf("%w: failed to create account", model.ErrStorageUnavailable)
	}

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeverityInfo,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionAccountCreated,
		Details:       map[string]any{"email": account.Email, "rol": string(account.Role)},
	})

	return account, nil
}

// ChangePassword re-hashes and persists a new password, resetting the
// failed-attempt counter.
func (a *Auth) ChangePassword(ctx context.Context, accountID int64, newPass, source string) error {
	account, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	hash, err := password.Hash(newPass)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := a.accounts.SetPassword(ctx, account.ID, hash); err != nil {
		a.logger.Error("Auth service: failed to set password",
			"account_id", account.ID,
			"error", err.Error())
		return fmt.Errorf("%w: failed to set password", model.ErrStorageUnavailable)
	}

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeveritySecurity,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionPasswordChange,
	})

	return nil
}

// UpdateEmail changes the account's email, keeping a before/after snapshot
// in the audit trail.
func (a *Auth) UpdateEmail(ctx context.Context, accountID int64, newEmail, source string) error {
	account, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	if err := a.accounts.SetEmail(ctx, account.ID, newEmail); err != nil {
		a.logger.Error("Auth service: failed to set email",
			"account_id", account.ID,
			"error", err.Error())
		return fmt.Errorf("%w: failed to set email", model.ErrStorageUnavailable)
	}

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeverityWarning,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionEmailChange,
		Details: map[string]any{
			"cambios": map[string]any{"anterior": account.Email, "nuevo": newEmail},
		},
	})

	return nil
}

// UnlockAccount re-enables a locked account and resets its counter. This is
// the only way back from lockout.
func (a *Auth) UnlockAccount(ctx context.Context, accountID int64, source string) error {
	account, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: failed to get account", model.ErrStorageUnavailable)
	}

	if err := a.accounts.Unlock(ctx, account.ID); err != nil {
		a.logger.Error("Auth service: failed to unlock account",
			"account_id", account.ID,
			"error", err.Error())
		return fmt.Errorf("%w: failed to unlock account", model.ErrStorageUnavailable)
	}

	a.audit.Record(ctx, model.AuditEntry{
		OriginService: authOrigin,
		Severity:      model.SeveritySecurity,
		AccountID:     &account.ID,
		AccountRole:   &account.Role,
		SourceAddress: source,
		Action:        model.ActionUnlocked,
	})

	a.logger.Info("Auth service: account unlocked", "account_id", account.ID)

	return nil
}

// generateOTP draws a uniform numeric code of model.OTPLength digits.
func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < model.OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", model.OTPLength, n), nil
}

// maskEmail hides most of the local part: "clinician@x.test" becomes
// "c***@x.test".
func maskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
