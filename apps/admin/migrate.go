package main

import (
	"context"

	"github.com/royalacademy/backoffice/storage/sqlstore"
)

var gooseRunFunc = sqlstore.Migrate // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNotSQLStore
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(ctx, cli.db, cli.driver, args[0], arguments...)
}
