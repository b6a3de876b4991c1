package session

import "context"

type Repo interface {
	FindActive(ctx context.Context, tokenHash string) (*Session, error)
}
