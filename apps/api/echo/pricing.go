package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/pricing"
	"github.com/royalacademy/backoffice/core/session"
)

type pricingApi struct {
	svc *pricing.Service
}

func registerPricingAPI(g *echo.Group, auth func(roles ...string) echo.MiddlewareFunc, svc *pricing.Service) {
	api := pricingApi{svc: svc}
	principal := auth(session.RolePrincipal)

	pg := g.Group("/pricing")
	pg.GET("", api.retrieve) // shown on the admissions payment step
	pg.PUT("", api.update, principal)
	pg.POST("/reset", api.reset, principal)
}

func (api *pricingApi) retrieve(ctx echo.Context) error {
	conf, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting pricing")
	}
	return ctx.JSON(http.StatusOK, conf)
}

func (api *pricingApi) update(ctx echo.Context) error {
	var data pricing.Update
	if err := ctx.Bind(&data); err != nil {
		if errors.Is(err, pricing.ErrInvalidAmount) {
			return core.NewValidationError(pricing.ErrInvalidAmount)
		}
		return errors.Wrap(err, "binding to pricing.Update")
	}
	conf, err := api.svc.Set(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, conf)
}

func (api *pricingApi) reset(ctx echo.Context) error {
	conf, err := api.svc.Reset(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "resetting pricing")
	}
	return ctx.JSON(http.StatusOK, conf)
}
