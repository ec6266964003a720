package model

// LoginChallenge is returned when the password checked out and a one-time
// code was issued. No session token exists yet.
type LoginChallenge struct {
	AccountID int64
	// ChallengeToken binds the subsequent verify call to this login.
	ChallengeToken string
	// MaskedEmail is the destination the code was sent to, partially
	// hidden for display.
	MaskedEmail string
	// Attempt discloses the current failed-attempt count out of the
	// threshold on counted failures; zero on success paths.
	Attempt int
}

// Actor identifies who performs an operation, for the audit trail.
type Actor struct {
	AccountID int64
	Role      Role
	Source    string
}

// Session is the result of a completed second-factor verification.
type Session struct {
	Token     string
	AccountID int64
	Role      Role
	Email     string
}
