package identity

import "strings"

// Identity is the resolved caller identity passed explicitly into every
// evaluation. A zero value is an anonymous guest.
type Identity struct {
	UserID int64
	Email  string
	Roles  []string
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{}
}

// IsAuthenticated reports whether the identity belongs to a known user.
func (id Identity) IsAuthenticated() bool {
	return id.Email != ""
}

// HasRole reports whether the identity carries the given role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// EmailDomain returns the lowercased domain part of the email, or "".
func (id Identity) EmailDomain() string {
	at := strings.LastIndex(id.Email, "@")
	if at < 0 || at == len(id.Email)-1 {
		return ""
	}
	return strings.ToLower(id.Email[at+1:])
}
