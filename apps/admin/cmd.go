package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/pricing"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/timetable"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotSQLStore = errors.New("migrations only apply to the sqlite and postgres storage backends")
)

type commandLine struct {
	conf       *core.Config
	db         *sql.DB // nil unless the store is SQL-backed
	driver     string
	sessions   *session.Service
	prices     *pricing.Service
	timetables *timetable.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, up-to VERSION...)")
	fmt.Println("  setprincipal [-email EMAIL] - set the principal's dashboard login")
	fmt.Println("  seedtimetable -class CLASS -section SECTION - load the built-in week into a class timetable")
	fmt.Println("  resetpricing - restore the default subscription prices")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	setPrincipalCmd := flag.NewFlagSet("setprincipal", flag.ContinueOnError)
	setPrincipalEmail := setPrincipalCmd.String("email", cli.conf.PrincipalEmail, "The principal's email. The password will be prompted next.")

	seedTimetableCmd := flag.NewFlagSet("seedtimetable", flag.ContinueOnError)
	seedTimetableClass := seedTimetableCmd.String("class", "", "The class, e.g. 10.")
	seedTimetableSection := seedTimetableCmd.String("section", "", "The section, e.g. A.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "setprincipal":
		if err := setPrincipalCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setPrincipalEmail == "" {
			setPrincipalCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			setPrincipalCmd.Usage()
			return errHelp
		}
		return cli.setPrincipal(ctx, *setPrincipalEmail, string(pwd))
	case "seedtimetable":
		if err := seedTimetableCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedTimetableClass == "" || *seedTimetableSection == "" {
			seedTimetableCmd.Usage()
			return errHelp
		}
		return cli.seedTimetable(ctx, *seedTimetableClass, *seedTimetableSection)
	case "resetpricing":
		return cli.resetPricing(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}
