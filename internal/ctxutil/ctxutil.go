// Package ctxutil carries request-scoped tracing and principal data through
// context.Context without importing the HTTP layer.
package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

type principalKey struct{}

// Principal identifies the caller resolved by the auth provider.
type Principal struct {
	UserID   string
	UserName string
	IsAPIKey bool
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func GetPrincipal(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
