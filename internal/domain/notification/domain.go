package notification

import "encoding/json"

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Notification struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt string          `json:"created_at"`
}

func CountUnread(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// ClampLimit keeps list sizes within what the backend accepts.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
