// Package identity models the caller of a conversion request.
//
// An identity is either an authenticated user or an anonymous session
// (a client session token, or the caller IP as a last resort). The two
// are never merged: an anonymous session that later signs in becomes a
// new identity with its own counters.
package identity

// Identity is a tagged union over the two caller kinds (value type).
// Exactly one of UserID/SessionKey is set.
type Identity struct {
	UserID     string
	SessionKey string
}

// Authenticated builds an identity for a signed-in user.
func Authenticated(userID string) Identity {
	return Identity{UserID: userID}
}

// Anonymous builds an identity for a session token or caller IP.
func Anonymous(sessionKey string) Identity {
	return Identity{SessionKey: sessionKey}
}

// IsAuthenticated reports whether the identity is a signed-in user.
func (id Identity) IsAuthenticated() bool {
	return id.UserID != ""
}

// IsZero reports whether no identity could be resolved at all.
func (id Identity) IsZero() bool {
	return id.UserID == "" && id.SessionKey == ""
}

// Key returns the stable storage key counters are filed under. The
// prefix keeps user and session namespaces disjoint.
func (id Identity) Key() string {
	if id.IsAuthenticated() {
		return "user:" + id.UserID
	}
	return "anon:" + id.SessionKey
}
