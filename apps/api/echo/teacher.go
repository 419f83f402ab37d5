package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/teacher"
)

// CreateTeacherResponse carries the generated credentials. They are not retrievable afterwards.
type CreateTeacherResponse struct {
	Teacher     teacher.Teacher     `json:"teacher"`
	Credentials teacher.Credentials `json:"credentials"`
}

type teacherApi struct {
	svc *teacher.Service
}

func registerTeacherAPI(g *echo.Group, auth func(roles ...string) echo.MiddlewareFunc, svc *teacher.Service) {
	api := teacherApi{svc: svc}

	tg := g.Group("/teachers")
	principal := auth(session.RolePrincipal)
	tg.GET("", api.query, principal)
	tg.POST("", api.create, principal)

	// detail endpoints
	tg.GET("/:id", api.retrieve, auth(session.RolePrincipal, session.RoleTeacher))
	tg.PUT("/:id", api.update, principal)
	tg.POST("/:id/toggle-ban", api.toggleBan, principal)
	tg.DELETE("/:id", api.destroy, principal)
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to teacher.NewTeacher")
	}
	tch, creds, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, CreateTeacherResponse{Teacher: tch, Credentials: creds})
}

func (api *teacherApi) query(ctx echo.Context) error {
	var filter teacher.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to teacher.QueryFilter")
	}
	teachers, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	tch, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) update(ctx echo.Context) error {
	var data teacher.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to teacher.UpdateTeacher")
	}
	tch, err := api.svc.Edit(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) toggleBan(ctx echo.Context) error {
	tch, err := api.svc.ToggleBan(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
