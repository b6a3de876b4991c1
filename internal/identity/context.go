package identity

import "context"

type ctxKey int

const resolutionKey ctxKey = 1

func WithResolution(ctx context.Context, r Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, r)
}

func ResolutionFromCtx(ctx context.Context) (Resolution, bool) {
	r, ok := ctx.Value(resolutionKey).(Resolution)
	return r, ok
}

func FromCtx(ctx context.Context) (*Identity, bool) {
	r, ok := ResolutionFromCtx(ctx)
	if !ok || r.Identity == nil {
		return nil, false
	}
	return r.Identity, true
}
