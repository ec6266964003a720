package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	apicontext "github.com/ovialab/cliniguard-server/internal/api/http/context"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

// AuthService defines login, verification and account credential
// operations.
type AuthService interface {
	Login(ctx context.Context, email, pass, source string) (model.LoginChallenge, error)
	VerifyOTP(ctx context.Context, accountID int64, code, source string) (model.Session, error)
	Register(ctx context.Context, email, pass string, role model.Role, source string) (model.Account, error)
	ChangePassword(ctx context.Context, accountID int64, newPass, source string) error
	UpdateEmail(ctx context.Context, accountID int64, newEmail, source string) error
	UnlockAccount(ctx context.Context, accountID int64, source string) error
}

// Auth handles HTTP endpoints for authentication and account management.
type Auth struct {
	authService AuthService
	tokens      model.TokenManager
	logger      *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, tokens model.TokenManager, logger *logger.Logger) *Auth {
	return &Auth{
		authService: authService,
		tokens:      tokens,
		logger:      logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ChallengeToken string `json:"challenge_token"`
	MaskedEmail    string `json:"masked_email"`
}

// Login checks credentials and returns a one-time-code challenge.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	challenge, err := h.authService.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		h.logger.Debug("Auth handler: login failed", "error", err.Error())
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		ChallengeToken: challenge.ChallengeToken,
		MaskedEmail:    challenge.MaskedEmail,
	})
}

type verifyRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

type verifyResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Verify completes the second factor and returns a session token.
func (h *Auth) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID, err := h.tokens.ParseChallengeToken(req.ChallengeToken)
	if err != nil {
		h.logger.Debug("Auth handler: invalid challenge token", "error", err.Error())
		handleError(w, model.ErrOTPInvalid)
		return
	}

	session, err := h.authService.VerifyOTP(r.Context(), accountID, req.Code, clientIP(r))
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Token: session.Token,
		Role:  string(session.Role),
		Email: session.Email,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Register creates a new account.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := model.Role(req.Role)
	switch role {
	case model.RoleClinician, model.RolePatient, model.RoleAdministrator:
	default:
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	account, err := h.authService.Register(r.Context(), req.Email, req.Password, role, clientIP(r))
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:    account.ID,
		Email: account.Email,
		Role:  string(account.Role),
	})
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ChangePassword replaces the caller's own password.
func (h *Auth) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := apicontext.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), identity.AccountID, req.NewPassword, clientIP(r)); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateEmailRequest struct {
	NewEmail string `json:"new_email"`
}

// UpdateEmail replaces the caller's own email address.
func (h *Auth) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	identity, ok := apicontext.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.UpdateEmail(r.Context(), identity.AccountID, req.NewEmail, clientIP(r)); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unlock re-enables a locked account. Administrator only; takes no body.
func (h *Auth) Unlock(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := h.authService.UnlockAccount(r.Context(), accountID, clientIP(r)); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// clientIP extracts the caller's address from RemoteAddr. The server sits
// behind no proxy in the deployment this targets, so forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
