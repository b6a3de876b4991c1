package identity

import (
	"errors"
	"strconv"
	"strings"

	"github.com/NordCoder/hbgate/internal/auth"
	"github.com/NordCoder/hbgate/internal/domain/session"
)

const (
	HeaderToken = "X-HB-Token"
	HeaderAuth  = "Authorization"
)

var ErrInvalidSubject = errors.New("claims carry no numeric user id")

type Source string

const (
	SourceSession Source = "session"
	SourceToken   Source = "token"
)

type Identity struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Source      Source   `json:"source"`
	// Credential is the verified bearer token; empty for session identities.
	Credential string `json:"-"`
}

func (id *Identity) HasAnyRole(roles ...string) bool {
	if id == nil {
		return false
	}
	for _, want := range roles {
		want = strings.ToLower(strings.TrimSpace(want))
		for _, have := range id.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ExtractCredential returns the bearer credential, preferring X-HB-Token over Authorization.
func ExtractCredential(h interface{ Get(string) string }) string {
	if v := strings.TrimSpace(h.Get(HeaderToken)); v != "" {
		return v
	}
	v := strings.TrimSpace(h.Get(HeaderAuth))
	if len(v) > len("bearer ") && strings.EqualFold(v[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(v[len("bearer "):])
	}
	return ""
}

func FromClaims(cl *auth.Claims, credential string) (*Identity, error) {
	uid := cl.WPUserID
	if uid <= 0 {
		n, err := strconv.ParseInt(strings.TrimSpace(cl.Subject), 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrInvalidSubject
		}
		uid = n
	}
	email := normalizeEmail(cl.Email)
	return &Identity{
		UserID:      uid,
		Email:       email,
		DisplayName: displayName(cl.DisplayName, email, uid),
		Roles:       NormalizeRoles(cl.Roles),
		Source:      SourceToken,
		Credential:  credential,
	}, nil
}

func FromSession(s *session.Session) *Identity {
	email := normalizeEmail(s.Email)
	return &Identity{
		UserID:      s.UserID,
		Email:       email,
		DisplayName: displayName(s.DisplayName, email, s.UserID),
		Roles:       NormalizeRoles(s.Roles),
		Source:      SourceSession,
	}
}

// NormalizeRoles lower-cases and trims roles, dropping empties and duplicates. Never returns nil.
func NormalizeRoles(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func displayName(name, email string, uid int64) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if email != "" {
		return email
	}
	return strconv.FormatInt(uid, 10)
}
