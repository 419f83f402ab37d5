package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	echoapi "github.com/royalacademy/backoffice/apps/api/echo"
	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/admission"
	"github.com/royalacademy/backoffice/core/homework"
	"github.com/royalacademy/backoffice/core/pricing"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/student"
	"github.com/royalacademy/backoffice/core/teacher"
	"github.com/royalacademy/backoffice/core/timetable"
	emailsvc "github.com/royalacademy/backoffice/services/email"
	logsvc "github.com/royalacademy/backoffice/services/logger"
	"github.com/royalacademy/backoffice/storage"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStoreLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newStore(conf *core.Config, reg *prometheus.Registry, loggerParam StoreLoggerParam) core.RecordStore {
	setUp := func() (core.RecordStore, error) {
		store, err := storage.Open(context.Background(), conf, loggerParam.Logger)
		if err != nil {
			return nil, err
		}
		return storage.Instrument(store, reg)
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s store: %v", conf.Storage.Backend, err), err)
	}
	return store
}

func newSessionService(store core.RecordStore, teachers *teacher.Service, students *student.Service, logger core.Logger) *session.Service {
	return session.NewService(store, teachers, students, logger)
}

func newAdmissionService(
	conf *core.Config,
	store core.RecordStore,
	prices *pricing.Service,
	email core.EmailService,
	logger core.Logger,
) *admission.Service {
	return admission.NewService(store, prices, email, logger, admission.DefaultGateways(conf.Payment.SimulatedDelay)...)
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Store      core.RecordStore
	Registry   *prometheus.Registry
	Admissions *admission.Service
	Teachers   *teacher.Service
	Students   *student.Service
	Timetables *timetable.Service
	Prices     *pricing.Service
	Homework   *homework.Service
	Sessions   *session.Service
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		AppName:        p.Conf.AppName,
		Address:        p.Conf.Server.Address,
		Debug:          p.Conf.Debug,
		TestMode:       p.Conf.TestMode,
		DisableReqLogs: p.Conf.Server.DisableReqLogs,
		Logger:         p.Logger,
		Store:          p.Store,
		Metrics:        promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}),
		AdmissionSvc:   p.Admissions,
		TeacherSvc:     p.Teachers,
		StudentSvc:     p.Students,
		TimetableSvc:   p.Timetables,
		PricingSvc:     p.Prices,
		HomeworkSvc:    p.Homework,
		SessionSvc:     p.Sessions,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newRegistry))
	must(c.Provide(newStore))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(pricing.NewService))
	must(c.Provide(teacher.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(timetable.NewService))
	must(c.Provide(homework.NewService))
	must(c.Provide(newSessionService))
	must(c.Provide(newAdmissionService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
