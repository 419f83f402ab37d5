// Package sqlstore is a RecordStore backed by a SQL database (SQLite or PostgreSQL).
// Every slot is a row of the `slots` table.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/hub"
)

// Drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// notifyChannel is the postgres LISTEN/NOTIFY channel carrying slot changes.
const notifyChannel = "slot_changes"

type (
	Options struct {
		Driver      string
		DSN         string
		AutoMigrate bool // run pending migrations on open
	}

	Store struct {
		db       *sqlx.DB
		driver   string
		hub      *hub.Hub
		listener *pq.Listener
		logger   core.Logger
	}

	slotRow struct {
		Name    string `db:"name"`
		Value   string `db:"value"`
		Version int64  `db:"version"`
	}
)

var _ core.RecordStore = (*Store)(nil)

// Open connects to the database and waits for it to be ready.
// With postgres, changes committed by other processes are received through LISTEN/NOTIFY.
func Open(ctx context.Context, opts Options, logger core.Logger) (*Store, error) {
	if opts.Driver != DriverSQLite && opts.Driver != DriverPostgres {
		return nil, errors.Errorf("unsupported sql driver %q", opts.Driver)
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1) // sqlite allows a single writer
	}
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if opts.AutoMigrate {
		if err := Migrate(ctx, db.DB, opts.Driver, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &Store{
		db:     db,
		driver: opts.Driver,
		hub:    hub.New(),
		logger: logger,
	}
	if opts.Driver == DriverPostgres {
		if err := s.listen(opts.DSN); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func (s *Store) listen(dsn string) error {
	s.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Error("sqlstore: listener event", err, map[string]interface{}{"event": ev})
		}
	})
	if err := s.listener.Listen(notifyChannel); err != nil {
		_ = s.listener.Close()
		return errors.Wrap(err, "listening for slot changes")
	}
	go s.relay()
	return nil
}

// relay forwards notifications to local subscribers until the listener is closed.
func (s *Store) relay() {
	for n := range s.listener.Notify {
		if n == nil { // connection re-established: notifications may have been lost
			continue
		}
		var c core.Change
		if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
			s.logger.Error("sqlstore: decoding notification", err, map[string]interface{}{"payload": n.Extra})
			continue
		}
		s.hub.Publish(c)
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db.DB }

func (s *Store) Driver() string { return s.driver }

func (s *Store) Get(ctx context.Context, name string) (core.Slot, error) {
	var row slotRow
	q := s.db.Rebind(`SELECT name, value, version FROM slots WHERE name = ?`)
	if err := s.db.GetContext(ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Slot{}, core.ErrSlotNotFound
		}
		return core.Slot{}, errors.Wrapf(err, "selecting slot %q", name)
	}
	return core.Slot{Name: row.Name, Value: []byte(row.Value), Version: row.Version}, nil
}

func (s *Store) Commit(ctx context.Context, writes ...core.Write) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	changes := make([]core.Change, 0, len(writes))
	now := core.NowFunc().UTC()
	for _, w := range writes {
		var change *core.Change
		if w.Value == nil {
			change, err = s.delete(ctx, tx, w)
		} else {
			change, err = s.put(ctx, tx, w, now)
		}
		if err != nil {
			return err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}

	if s.driver == DriverPostgres {
		for _, c := range changes {
			payload, _ := json.Marshal(c)
			if _, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
				return errors.Wrap(err, "notifying slot change")
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	if s.driver != DriverPostgres { // postgres changes come back through the listener
		s.hub.Publish(changes...)
	}
	return nil
}

func (s *Store) put(ctx context.Context, tx *sqlx.Tx, w core.Write, now time.Time) (*core.Change, error) {
	var (
		q    string
		args []interface{}
	)
	switch w.Version {
	case core.AnyVersion:
		q = `INSERT INTO slots (name, value, version, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value, version = slots.version + 1, updated_at = excluded.updated_at
			RETURNING version`
		args = []interface{}{w.Name, string(w.Value), now}
	case 0:
		q = `INSERT INTO slots (name, value, version, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT (name) DO NOTHING
			RETURNING version`
		args = []interface{}{w.Name, string(w.Value), now}
	default:
		q = `UPDATE slots SET value = ?, version = version + 1, updated_at = ?
			WHERE name = ? AND version = ?
			RETURNING version`
		args = []interface{}{string(w.Value), now, w.Name, w.Version}
	}

	var version int64
	if err := tx.QueryRowxContext(ctx, tx.Rebind(q), args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(core.ErrConflict, "slot %q is not at version %d", w.Name, w.Version)
		}
		return nil, errors.Wrapf(err, "writing slot %q", w.Name)
	}
	return &core.Change{Name: w.Name, Version: version}, nil
}

func (s *Store) delete(ctx context.Context, tx *sqlx.Tx, w core.Write) (*core.Change, error) {
	if w.Version == 0 {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM slots WHERE name = ?`), w.Name); err != nil {
			return nil, errors.Wrapf(err, "checking slot %q", w.Name)
		}
		if n > 0 {
			return nil, errors.Wrapf(core.ErrConflict, "slot %q exists", w.Name)
		}
		return nil, nil
	}

	q, args := `DELETE FROM slots WHERE name = ?`, []interface{}{w.Name}
	if w.Version != core.AnyVersion {
		q, args = q+` AND version = ?`, append(args, w.Version)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "deleting slot %q", w.Name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrapf(err, "deleting slot %q", w.Name)
	}
	if n == 0 {
		if w.Version != core.AnyVersion {
			return nil, errors.Wrapf(core.ErrConflict, "slot %q is not at version %d", w.Name, w.Version)
		}
		return nil, nil
	}
	return &core.Change{Name: w.Name}, nil
}

func (s *Store) Subscribe(ctx context.Context) (<-chan core.Change, error) {
	return s.hub.Subscribe(ctx)
}

func (s *Store) Close() error {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.hub.Close()
	return s.db.Close()
}
