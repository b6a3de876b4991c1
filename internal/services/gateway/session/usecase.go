package session

import (
	"errors"
	"strconv"
	"time"

	"github.com/NordCoder/hbgate/internal/auth"
	"github.com/NordCoder/hbgate/internal/identity"
)

var ErrSessionRequired = errors.New("a host session is required to mint tokens")

type Issuer interface {
	Issue(cl auth.Claims, ttl time.Duration) (string, *auth.Claims, error)
}

type Usecase struct {
	codec Issuer
	ttl   time.Duration
}

func NewUseCase(codec Issuer, ttl time.Duration) *Usecase {
	return &Usecase{codec: codec, ttl: ttl}
}

// Mint signs a short-lived token for a session identity. Token identities cannot
// mint, so a bearer can never extend its own lifetime.
func (u *Usecase) Mint(id *identity.Identity) (string, *auth.Claims, error) {
	if id == nil || id.Source != identity.SourceSession {
		return "", nil, ErrSessionRequired
	}
	return u.codec.Issue(auth.Claims{
		Subject:     strconv.FormatInt(id.UserID, 10),
		WPUserID:    id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Roles:       append(auth.Roles{}, id.Roles...),
	}, u.ttl)
}
