package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apicontext "github.com/ovialab/cliniguard-server/internal/api/http/context"
	"github.com/ovialab/cliniguard-server/internal/mocks"
	"github.com/ovialab/cliniguard-server/internal/model"
	"github.com/ovialab/cliniguard-server/internal/testutil"
)

func TestAuthenticate_Handle(t *testing.T) {
	tokens := &mocks.TokenManager{}
	tokens.On("ParseSessionToken", "valid-token").
		Return(model.TokenIdentity{AccountID: 7, Role: model.RoleClinician, Email: "clinician@clinic.test"}, nil)
	tokens.On("ParseSessionToken", "bad-token").
		Return(model.TokenIdentity{}, assert.AnError)

	m := NewAuthenticate(tokens, testutil.MakeNoopLogger())

	var gotIdentity model.TokenIdentity
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotIdentity, _ = apicontext.GetIdentity(r.Context())
	})

	t.Run("valid token", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		rec := httptest.NewRecorder()

		m.Handle(next).ServeHTTP(rec, req)

		require.True(t, called)
		assert.Equal(t, int64(7), gotIdentity.AccountID)
		assert.Equal(t, model.RoleClinician, gotIdentity.Role)
	})

	t.Run("missing token", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		m.Handle(next).ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		m.Handle(next).ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	gate := RequireRole(model.RoleAdministrator)(next)

	t.Run("matching role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := apicontext.SetIdentity(req.Context(), model.TokenIdentity{AccountID: 1, Role: model.RoleAdministrator})
		rec := httptest.NewRecorder()

		gate.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := apicontext.SetIdentity(req.Context(), model.TokenIdentity{AccountID: 7, Role: model.RolePatient})
		rec := httptest.NewRecorder()

		gate.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
