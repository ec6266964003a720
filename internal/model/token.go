package model

import "context"

// TokenManager generates and validates signed tokens. Tokens carry no
// server-side revocation list; validity is signature plus expiry only.
type TokenManager interface {
	// GenerateSessionToken mints a fully authenticated session token.
	GenerateSessionToken(accountID int64, role Role, email string) (string, error)
	// GenerateChallengeToken mints a short-lived token bound to a pending
	// second-factor verification.
	GenerateChallengeToken(accountID int64) (string, error)
	// ParseSessionToken validates a session token and returns its identity.
	ParseSessionToken(token string) (TokenIdentity, error)
	// ParseChallengeToken validates a challenge token and returns the
	// account it was minted for.
	ParseChallengeToken(token string) (int64, error)
}

// TokenIdentity is the identity a session token carries.
type TokenIdentity struct {
	AccountID int64
	Role      Role
	Email     string
}

// Mailer delivers rendered messages to an account's registered address.
// Calls from the authority are fire-and-forget; delivery failures are not
// retried here.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TxManager runs a function inside a single storage transaction. Either
// every statement issued through stores within fn commits, or none do.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
