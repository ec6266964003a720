package middleware

import (
	"net/http"
	"strings"

	apicontext "github.com/ovialab/cliniguard-server/internal/api/http/context"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

// Authenticate validates bearer session tokens and injects the identity
// into the request context.
type Authenticate struct {
	tokens model.TokenManager
	logger *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokens model.TokenManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokens: tokens, logger: logger}
}

// Handle rejects requests without a valid session token.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			http.Error(w, "missing authorization token", http.StatusUnauthorized)
			return
		}

		identity, err := m.tokens.ParseSessionToken(token)
		if err != nil {
			m.logger.Debug("Authenticate middleware: invalid token", "error", err.Error())
			http.Error(w, "invalid authorization token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(apicontext.SetIdentity(r.Context(), identity)))
	})
}

// RequireRole gates a route group to one role. It runs after Handle, so a
// missing identity means the route was wired without authentication.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := apicontext.GetIdentity(r.Context())
			if !ok || identity.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
