package authz

import "context"

// Identity is an authenticated actor together with its authorization
// profile. A signed-in user whose profile record is missing still gets an
// Identity, just with zero roles, so resolution degrades to denial instead
// of failing.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Profile   Profile
}

// FullName joins the display name parts.
func (i *Identity) FullName() string {
	switch {
	case i == nil:
		return ""
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}

// IdentityProvider yields the current authenticated identity, or nil when
// the request carries no signed-in session.
type IdentityProvider interface {
	Current(ctx context.Context) (*Identity, error)
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from context, nil when absent.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey{}).(*Identity)
	return identity
}

type decisionContextKey struct{}

// ContextWithDecision stores the guard's decision in context.
func ContextWithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey{}, d)
}

// DecisionFromContext extracts the decision, zero (deny) when absent.
func DecisionFromContext(ctx context.Context) Decision {
	d, _ := ctx.Value(decisionContextKey{}).(Decision)
	return d
}
