package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/student"
)

type CreateStudentResponse struct {
	Student     student.Student     `json:"student"`
	Credentials student.Credentials `json:"credentials"`
}

type studentApi struct {
	svc *student.Service
}

func registerStudentAPI(g *echo.Group, auth func(roles ...string) echo.MiddlewareFunc, svc *student.Service) {
	api := studentApi{svc: svc}
	staff := auth(session.RolePrincipal, session.RoleTeacher)

	sg := g.Group("/students")
	sg.GET("", api.query, staff)
	sg.POST("", api.create, staff)
	sg.GET("/:id", api.retrieve, auth())
	sg.POST("/:id/remarks", api.addRemark, staff)

	ag := g.Group("/attendance")
	ag.GET("", api.queryAttendance, staff)
	ag.POST("", api.recordAttendance, staff)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.NewStudent")
	}
	st, creds, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, CreateStudentResponse{Student: st, Credentials: creds})
}

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to student.QueryFilter")
	}
	students, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	return ctx.JSON(http.StatusOK, students)
}

// retrieve returns a student's profile. Students may only see their own.
func (api *studentApi) retrieve(ctx echo.Context) error {
	id := ctx.Param("id")
	if flags, ok := contextSession(ctx); ok && flags.StudentAuth && flags.ID != id {
		return errHttpForbidden
	}
	st, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) addRemark(ctx echo.Context) error {
	var data student.NewRemark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.NewRemark")
	}
	remark, err := api.svc.AddRemark(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, remark)
}

func (api *studentApi) recordAttendance(ctx echo.Context) error {
	var data student.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.NewAttendance")
	}
	if flags, ok := contextSession(ctx); ok && data.TakenBy == "" {
		data.TakenBy = flags.ID
		if data.TakenBy == "" {
			data.TakenBy = flags.Email
		}
	}
	record, err := api.svc.RecordAttendance(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, record)
}

func (api *studentApi) queryAttendance(ctx echo.Context) error {
	var filter student.AttendanceFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to student.AttendanceFilter")
	}
	sessions, err := api.svc.ListAttendance(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	return ctx.JSON(http.StatusOK, sessions)
}
