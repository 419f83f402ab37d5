package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/royalacademy/backoffice/core/session"
)

const contextSessionKey = "session"

// sessionMiddleware only lets requests through while someone with one of roles is logged in.
// With no roles, any logged in user is let through.
func sessionMiddleware(svc *session.Service, roles ...string) echo.MiddlewareFunc {
	if len(roles) == 0 {
		roles = []string{session.RolePrincipal, session.RoleTeacher, session.RoleStudent}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			flags, err := svc.Require(ctx.Request().Context(), roles...)
			if err != nil {
				return err
			}
			ctx.Set(contextSessionKey, flags)
			return next(ctx)
		}
	}
}

func contextSession(ctx echo.Context) (session.Flags, bool) {
	flags, ok := ctx.Get(contextSessionKey).(session.Flags)
	return flags, ok
}
