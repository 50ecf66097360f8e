package middleware

import (
	"sims/internal/service"

	"github.com/labstack/echo/v4"
)

const contextIdentityKey = "auth_identity"

func SetIdentity(c echo.Context, identity *service.Identity) {
	c.Set(contextIdentityKey, identity)
}

func IdentityFromContext(c echo.Context) (*service.Identity, bool) {
	identity, ok := c.Get(contextIdentityKey).(*service.Identity)
	if !ok || identity == nil || identity.User == nil {
		return nil, false
	}
	return identity, true
}

func UserIDFromContext(c echo.Context) (int64, bool) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		return 0, false
	}
	return identity.User.ID, true
}

// ActorFromContext describes the authenticated caller for administrative operations.
func ActorFromContext(c echo.Context) (service.Actor, bool) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: identity.User.ID, Roles: identity.Roles}, true
}
