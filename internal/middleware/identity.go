package middleware

// identity.go stores and retrieves the authenticated principal on the echo
// context.  Handlers receive the principal explicitly from PrincipalFrom;
// nothing below falls back to a default identity.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-delivery/internal/model"
)

const principalKey = "principal"

// SetPrincipal stores p on the request context.
func SetPrincipal(c echo.Context, p model.Principal) { c.Set(principalKey, p) }

// PrincipalFrom returns the principal placed by JWTAuth.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok && p.ID != 0
}

// callerKey identifies the caller for rate limiting: the principal id once
// JWTAuth has run, otherwise the client address.
func callerKey(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return "user:" + strconv.FormatUint(p.ID, 10)
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
