package identity

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient role")
)

type RoleRule struct {
	Prefix string   `mapstructure:"prefix"`
	Roles  []string `mapstructure:"roles"`
}

// Policy decides, per API sub-path, whether a resolution may proceed.
// Public paths pass without identity. Every other path needs an identity, and
// paths under a role rule need at least one of its roles; an identity with no
// roles never satisfies a role rule.
type Policy struct {
	public []string
	rules  []RoleRule
}

func NewPolicy(public []string, rules []RoleRule) *Policy {
	p := &Policy{}
	for _, s := range public {
		if s = cleanPath(s); s != "" {
			p.public = append(p.public, s)
		}
	}
	for _, r := range rules {
		prefix := cleanPath(r.Prefix)
		if prefix == "" {
			continue
		}
		p.rules = append(p.rules, RoleRule{Prefix: prefix, Roles: NormalizeRoles(r.Roles)})
	}
	return p
}

func (p *Policy) Authorize(path string, id *Identity) error {
	path = cleanPath(path)
	for _, pub := range p.public {
		if underPrefix(path, pub) {
			return nil
		}
	}
	if id == nil {
		return ErrUnauthenticated
	}
	for _, r := range p.rules {
		if underPrefix(path, r.Prefix) && !id.HasAnyRole(r.Roles...) {
			return ErrForbidden
		}
	}
	return nil
}

func cleanPath(s string) string {
	return strings.Trim(strings.TrimSpace(s), "/")
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
