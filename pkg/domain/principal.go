package domain

// Principal is the authenticated identity attached to a request after the
// bearer token and its session both check out. Downstream services consume
// it for authorization decisions.
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the principal carries the named role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
