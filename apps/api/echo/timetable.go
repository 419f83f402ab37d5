package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/timetable"
)

// PeriodRequest upserts a period. A nil Index appends.
type PeriodRequest struct {
	timetable.Period
	Index *int `json:"index"`
}

type DayResponse struct {
	Day      string              `json:"day"`
	Periods  []timetable.Period  `json:"periods"`
	Warnings []timetable.Overlap `json:"warnings"`
}

type timetableApi struct {
	svc *timetable.Service
}

func registerTimetableAPI(g *echo.Group, auth func(roles ...string) echo.MiddlewareFunc, svc *timetable.Service) {
	api := timetableApi{svc: svc}
	anyone := auth()
	staff := auth(session.RolePrincipal, session.RoleTeacher)

	tg := g.Group("/timetables/:class/:section")
	tg.GET("", api.retrieve, anyone)
	tg.DELETE("", api.destroy, staff)
	tg.POST("/template", api.loadTemplate, staff)

	tg.GET("/:day", api.retrieveDay, anyone)
	tg.POST("/:day", api.upsertPeriod, staff)
	tg.DELETE("/:day", api.clearDay, staff)
	tg.DELETE("/:day/:index", api.deletePeriod, staff)
}

func dayResponse(day string, periods []timetable.Period) DayResponse {
	day, _ = timetable.NormalizeDay(day)
	return DayResponse{Day: day, Periods: periods, Warnings: timetable.Overlaps(periods)}
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	class, section := ctx.Param("class"), ctx.Param("section")
	tt, found, err := api.svc.Load(ctx.Request().Context(), class, section)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(core.ErrNotFound, "no timetable for %s%s", class, section)
	}
	return ctx.JSON(http.StatusOK, tt)
}

func (api *timetableApi) retrieveDay(ctx echo.Context) error {
	day := ctx.Param("day")
	periods, err := api.svc.LoadDay(ctx.Request().Context(), ctx.Param("class"), ctx.Param("section"), day)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dayResponse(day, periods))
}

func (api *timetableApi) upsertPeriod(ctx echo.Context) error {
	var data PeriodRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PeriodRequest")
	}
	day := ctx.Param("day")
	periods, err := api.svc.UpsertPeriod(ctx.Request().Context(), ctx.Param("class"), ctx.Param("section"), day, data.Period, data.Index)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dayResponse(day, periods))
}

func (api *timetableApi) deletePeriod(ctx echo.Context) error {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		return errors.Wrapf(core.ErrNotFound, "no period %q", ctx.Param("index"))
	}
	day := ctx.Param("day")
	periods, err := api.svc.DeletePeriod(ctx.Request().Context(), ctx.Param("class"), ctx.Param("section"), day, index)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dayResponse(day, periods))
}

func (api *timetableApi) clearDay(ctx echo.Context) error {
	if err := api.svc.ClearDay(ctx.Request().Context(), ctx.Param("class"), ctx.Param("section"), ctx.Param("day")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteTimetable(ctx.Request().Context(), ctx.Param("class"), ctx.Param("section")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) loadTemplate(ctx echo.Context) error {
	tt, err := api.svc.LoadTemplate(ctx.Request().Context(), ctx.Param("class"), ctx.Param("section"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tt)
}
