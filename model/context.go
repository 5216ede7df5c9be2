package model

import "context"

// Role values carried in the identity token's "rol" claim.
const (
	RoleAdmin  = "administrador"
	RoleClient = "cliente"
)

// RequestContext carries the identity and correlation data of one console
// request. It is built by the transport middleware from the bearer token and
// request headers, and passed explicitly to every provider.
type RequestContext struct {
	SubjectID     string
	Email         string
	Role          string
	CorrelationID string
	Claims        map[string]any
}

// IsAdmin reports whether the request subject holds the administrator role.
func (r *RequestContext) IsAdmin() bool {
	return r != nil && r.Role == RoleAdmin
}

type requestContextKey struct{}

// WithRequestContext stores the RequestContext in the context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rctx)
}

// RequestContextFrom returns the RequestContext stored in the context, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rctx
}
