package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core/homework"
	"github.com/royalacademy/backoffice/core/session"
)

type homeworkApi struct {
	svc *homework.Service
}

func registerHomeworkAPI(g *echo.Group, auth func(roles ...string) echo.MiddlewareFunc, svc *homework.Service) {
	api := homeworkApi{svc: svc}
	staff := auth(session.RolePrincipal, session.RoleTeacher)

	hg := g.Group("/homework")
	hg.GET("", api.query, auth())
	hg.POST("", api.create, staff)
	hg.DELETE("/:id", api.destroy, staff)
}

func (api *homeworkApi) create(ctx echo.Context) error {
	var data homework.NewHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to homework.NewHomework")
	}
	if flags, ok := contextSession(ctx); ok && data.CreatedBy == "" {
		data.CreatedBy = flags.Name
	}
	hw, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, hw)
}

// query lists homework. Students only see their own class.
func (api *homeworkApi) query(ctx echo.Context) error {
	var filter homework.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to homework.QueryFilter")
	}
	if flags, ok := contextSession(ctx); ok && flags.StudentAuth {
		filter.Class, filter.Section = flags.Class, flags.Section
	}
	items, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing homework")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *homeworkApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
