// Package requestctx carries per-call metadata for storefront and operator calls: the
// scoped logger, the operator acting on an order and the guest session owning a cart.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type scopeKey struct{}

// scope is stored by value so derived contexts never share mutations.
type scope struct {
	logger  *zap.Logger
	actor   string
	session string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger attaches logger. A nil logger clears a previously attached one.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return withScope(ctx, func(s *scope) { s.logger = logger })
}

// Logger returns the attached logger and whether one was set.
func Logger(ctx context.Context) (*zap.Logger, bool) {
	logger := scopeFrom(ctx).logger
	return logger, logger != nil
}

// WithActor records who triggered the operation, e.g. "operator:amina" or "storefront".
func WithActor(ctx context.Context, actor string) context.Context {
	return withScope(ctx, func(s *scope) { s.actor = actor })
}

// Actor returns the recorded actor or "".
func Actor(ctx context.Context) string {
	return scopeFrom(ctx).actor
}

// WithSession records the guest session a cart belongs to.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return withScope(ctx, func(s *scope) { s.session = sessionID })
}

// Session returns the guest session or "".
func Session(ctx context.Context) string {
	return scopeFrom(ctx).session
}
