package server

import (
	"github.com/labstack/echo/v4"
)

const actorHeader = "X-Actor-Id"

// Identity is the resolved caller identity attached to approval decisions.
type Identity struct {
	ActorID       string
	Source        string
	Authenticated bool
}

// IdentityResolver extracts the acting identity from a request. With the
// anonymous fallback disabled, a request with no identity is an
// authentication failure and must not proceed.
type IdentityResolver struct {
	allowAnonymous bool
}

func NewIdentityResolver(allowAnonymous bool) *IdentityResolver {
	return &IdentityResolver{allowAnonymous: allowAnonymous}
}

func (r *IdentityResolver) Resolve(c echo.Context) (Identity, bool) {
	if actor := c.Request().Header.Get(actorHeader); actor != "" {
		return Identity{ActorID: actor, Source: "header", Authenticated: true}, true
	}
	if r.allowAnonymous {
		return Identity{ActorID: "anonymous", Source: "fallback", Authenticated: false}, true
	}
	return Identity{}, false
}
