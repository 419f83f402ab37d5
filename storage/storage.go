// Package storage opens the RecordStore selected by the configuration.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/memstore"
	"github.com/royalacademy/backoffice/storage/redisstore"
	"github.com/royalacademy/backoffice/storage/sqlstore"
)

// Open returns the record store for conf.Storage.Backend.
// SQLite databases are migrated on open; PostgreSQL ones through the admin `migrate` command.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (core.RecordStore, error) {
	switch conf.Storage.Backend {
	case core.StorageMemory, "":
		return memstore.New(), nil
	case core.StorageSQLite, core.StoragePostgres:
		opts := sqlstore.Options{Driver: sqlstore.DriverPostgres, DSN: conf.Storage.DSN}
		if conf.Storage.Backend == core.StorageSQLite {
			opts.Driver, opts.AutoMigrate = sqlstore.DriverSQLite, true
		}
		store, err := sqlstore.Open(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case core.StorageRedis:
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:    conf.Storage.RedisAddr,
			Prefix:  conf.Storage.RedisPrefix,
			Channel: conf.Storage.RedisChannel,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}
