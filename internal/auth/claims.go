package auth

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Subject     string           `json:"sub"`
	WPUserID    int64            `json:"wp_user_id,omitempty"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name"`
	Roles       Roles            `json:"roles"`
	IssuedAt    int64            `json:"iat"`
	ExpiresAt   int64            `json:"exp"`
	Issuer      string           `json:"iss,omitempty"`
	Audience    jwt.ClaimStrings `json:"aud,omitempty"`
}

// Roles decodes leniently: anything other than a JSON list yields no roles,
// and non-string list items are skipped.
type Roles []string

func (r *Roles) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*r = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*r = nil
		return nil
	}
	out := make(Roles, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	*r = out
	return nil
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

func (c Claims) GetIssuer() (string, error) { return c.Issuer, nil }

func (c Claims) GetSubject() (string, error) { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) { return c.Audience, nil }

func (c Claims) ExpiresTime() time.Time { return time.Unix(c.ExpiresAt, 0).UTC() }
