package main

import (
	"context"
	"log"
	"os"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/pricing"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/student"
	"github.com/royalacademy/backoffice/core/teacher"
	"github.com/royalacademy/backoffice/core/timetable"
	logsvc "github.com/royalacademy/backoffice/services/logger"
	"github.com/royalacademy/backoffice/storage"
	"github.com/royalacademy/backoffice/storage/sqlstore"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rollbarLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rollbarLogger.Enable(!conf.Debug)
	logger = rollbarLogger

	// set up store
	store, err := storage.Open(context.Background(), conf, logger)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		conf:       conf,
		sessions:   session.NewService(store, teacher.NewService(store, logger), student.NewService(store, logger), logger),
		prices:     pricing.NewService(store, logger),
		timetables: timetable.NewService(store, logger),
	}
	if sqlStore, ok := store.(*sqlstore.Store); ok {
		cli.db, cli.driver = sqlStore.DB(), sqlStore.Driver()
	}

	err = cli.run(os.Args)
	if cerr := store.Close(); cerr != nil {
		logger.Error("closing store", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
