package httpfx

import (
	"context"
	"net/http"
)

// ContextKey is the type every middleware uses to namespace values it
// stashes on the request context (see middlewares.ContextKeyAuthClaims,
// middlewares.ClientAddr, ...).
type ContextKey string

// Handler is one link in a route's or router's middleware chain. It
// returns the Result produced by this link (after, typically, calling
// ctx.Next() to run the remainder of the chain).
type Handler func(ctx *Context) Result

// Context is the per-request handle passed through a route's handler
// chain, grounded on the teacher's net/http-wrapping Context observed in
// context_test.go (UpdateContext/Next/Results/Request/ResponseWriter).
type Context struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	Results        Results

	handlers []Handler
	index    int
}

// Next invokes the next handler in the chain and returns its Result. A
// handler that does not call Next short-circuits the remainder of the
// chain (e.g. AuthMiddleware returning Unauthorized).
func (c *Context) Next() Result {
	c.index++

	if c.index >= len(c.handlers) {
		return c.Results.Ok()
	}

	return c.handlers[c.index](c)
}

// UpdateContext replaces the request's context.Context, e.g. after a
// middleware attaches a value via context.WithValue.
func (c *Context) UpdateContext(ctx context.Context) {
	c.Request = c.Request.WithContext(ctx)
}
