package notification

import "context"

// Source lists the caller's most recent notifications using a bearer credential.
type Source interface {
	Fetch(ctx context.Context, credential string) ([]Notification, error)
}
