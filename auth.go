package rowguard

import "context"

// Identity describes an authenticated caller as reported by the identity
// provider. Claims carries provider-specific attributes verbatim.
type Identity struct {
	// Subject is the caller's stable unique identifier.
	Subject string

	// Name is a human-readable display name, when the provider has one.
	Name string

	// Issuer identifies the provider that authenticated the caller.
	Issuer string

	// Claims holds any further token claims.
	Claims map[string]any
}

// Auth is the identity collaborator consulted by access rules.
type Auth interface {
	// UserIdentity returns the caller's identity, or nil, nil when the
	// caller is unauthenticated.
	UserIdentity(ctx context.Context) (*Identity, error)
}

// AuthFunc adapts an ordinary function to the Auth interface.
type AuthFunc func(ctx context.Context) (*Identity, error)

// UserIdentity returns f(ctx).
func (f AuthFunc) UserIdentity(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

// StaticAuth returns an Auth that always reports the given identity.
// A nil identity means unauthenticated. Intended for tests and tools.
func StaticAuth(id *Identity) Auth {
	return AuthFunc(func(context.Context) (*Identity, error) {
		return id, nil
	})
}
