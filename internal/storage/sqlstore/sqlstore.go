// Package sqlstore keeps routes, cards, production records and wages in
// MySQL or SQLite through sqlx. Queries use "?" placeholders understood by
// both drivers; only the schema differs.
package sqlstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"garment-flow/internal/config"
	"garment-flow/internal/storage"
)

//go:embed schema/*.sql
var schemas embed.FS

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

type Storage struct {
	db     *sqlx.DB
	driver string
}

func New(cfg config.Storage) (*Storage, error) {
	const op = "storage.sqlstore.New"

	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.DBUser
		mc.Passwd = cfg.DBPassword
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.ClientFoundRows = true

		return Open(DriverMySQL, mc.FormatDSN())
	case "sqlite":
		return Open(DriverSQLite, cfg.SQLitePath+"?_journal_mode=WAL&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, cfg.Driver)
	}
}

func Open(driver, dsn string) (*Storage, error) {
	const op = "storage.sqlstore.Open"

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if driver == DriverSQLite {
		// один коннект: у sqlite один писатель, а ":memory:" живёт в соединении
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{db: db, driver: driver}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.sqlstore.Migrate"

	name := "schema/sqlite.sql"
	if s.driver == DriverMySQL {
		name = "schema/mysql.sql"
	}

	raw, err := schemas.ReadFile(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
	}

	return nil
}

// InTx runs fn inside one database transaction and commits only if fn
// succeeds.
func (s *Storage) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "storage.sqlstore.InTx"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	return nil
}

type txStore struct {
	tx *sqlx.Tx
}

// duplicate maps primary key violations of either driver to storage.ErrDuplicate.
func duplicate(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, mysqlErr.Message)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, sqliteErr.Error())
	}

	return err
}
