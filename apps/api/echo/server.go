package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/admission"
	"github.com/royalacademy/backoffice/core/homework"
	"github.com/royalacademy/backoffice/core/pricing"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/student"
	"github.com/royalacademy/backoffice/core/teacher"
	"github.com/royalacademy/backoffice/core/timetable"
)

type (
	Options struct {
		AppName        string
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		Logger         core.Logger
		Store          core.RecordStore // change feed for /v1/events
		Metrics        http.Handler     // served on /metrics when set

		AdmissionSvc *admission.Service
		TeacherSvc   *teacher.Service
		StudentSvc   *student.Service
		TimetableSvc *timetable.Service
		PricingSvc   *pricing.Service
		HomeworkSvc  *homework.Service
		SessionSvc   *session.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	v1 := s.app.Group("/v1")
	auth := func(roles ...string) echo.MiddlewareFunc { return sessionMiddleware(s.opts.SessionSvc, roles...) }

	registerSessionAPI(v1, s.opts.SessionSvc)
	registerEventsAPI(v1, s.opts.Store, s.opts.Logger)
	registerAdmissionAPI(v1, auth, s.opts.AdmissionSvc)
	registerPricingAPI(v1, auth, s.opts.PricingSvc)
	registerTeacherAPI(v1, auth, s.opts.TeacherSvc)
	registerStudentAPI(v1, auth, s.opts.StudentSvc)
	registerTimetableAPI(v1, auth, s.opts.TimetableSvc)
	registerHomeworkAPI(v1, auth, s.opts.HomeworkSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.AppName+" API!")
}
