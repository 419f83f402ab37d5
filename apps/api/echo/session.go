package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core/session"
)

type LoginRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionApi struct {
	svc *session.Service
}

func registerSessionAPI(g *echo.Group, svc *session.Service) {
	api := sessionApi{svc: svc}

	sg := g.Group("/session")
	sg.GET("", api.current)
	sg.POST("/login", api.login)
	sg.POST("/logout", api.logout)
}

func (api *sessionApi) current(ctx echo.Context) error {
	flags, err := api.svc.Current(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, flags)
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	flags, err := api.svc.Login(ctx.Request().Context(), data.Role, data.Username, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, flags)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	if err := api.svc.Logout(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}
