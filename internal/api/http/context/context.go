// Package context carries the authenticated identity through a request.
package context

import (
	"context"

	"github.com/ovialab/cliniguard-server/internal/model"
)

type identityKey struct{}

// SetIdentity returns a context carrying the verified token identity.
func SetIdentity(ctx context.Context, identity model.TokenIdentity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentity retrieves the identity placed by the authentication
// middleware. The second return is false on unauthenticated requests.
func GetIdentity(ctx context.Context) (model.TokenIdentity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.TokenIdentity)
	return identity, ok
}
