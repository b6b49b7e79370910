package web

import (
	"context"

	"github.com/texlify/texlify/domain/identity"
)

type ctxKey string

const identityKey ctxKey = "identity"

// withIdentityCtx attaches the resolved caller identity to the context.
func withIdentityCtx(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// callerIdentity retrieves the caller identity from context. The
// identity middleware always sets one; the zero value only appears in
// handlers invoked outside the middleware chain.
func callerIdentity(ctx context.Context) identity.Identity {
	id, ok := ctx.Value(identityKey).(identity.Identity)
	if !ok {
		return identity.Identity{}
	}
	return id
}
