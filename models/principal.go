package models

// Principal identifies a platform user. It is an opaque identifier issued by
// the identity layer; this service never parses it.
type Principal string

// AnonymousPrincipal is the identity of an unauthenticated caller.
const AnonymousPrincipal Principal = ""

// IsAnonymous reports whether the principal belongs to an unauthenticated caller.
func (p Principal) IsAnonymous() bool {
	return p == AnonymousPrincipal
}
