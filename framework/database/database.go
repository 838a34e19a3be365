// Package database opens sqlx connections for the configured driver.
//
// Both drivers register with database/sql on import: lib/pq as "postgres",
// go-sql-driver/mysql as "mysql".
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/errs"
)

// DSN returns the database/sql driver name and connection string for cfg.
// cfg.DSN, when set, is used verbatim.
func DSN(cfg config.DBConfig) (driver, dsn string, err error) {
	switch cfg.Driver {
	case "mysql":
		if cfg.DSN != "" {
			return "mysql", cfg.DSN, nil
		}
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
		mc.DBName = cfg.Database
		mc.ParseTime = true
		return "mysql", mc.FormatDSN(), nil

	case "postgres":
		if cfg.DSN != "" {
			return "postgres", cfg.DSN, nil
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(cfg.Host, cfg.Port),
			Path:     "/" + cfg.Database,
			RawQuery: "sslmode=disable",
		}
		if cfg.Username != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		}
		return "postgres", u.String(), nil

	default:
		return "", "", errs.New(errs.Database, "database.DSN", cfg.Driver, "unsupported driver")
	}
}

// Open returns a lazily connected pool; nothing is dialed until first use.
func Open(cfg config.DBConfig) (*sqlx.DB, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "database.Open", driver, err)
	}
	return db, nil
}

// Ping verifies the connection.
func Ping(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.Database, "database.Ping", db.DriverName(), err)
	}
	return nil
}

// Transact runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise, panics included.
func Transact(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Database, "database.Transact", "begin", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errs.Wrap(errs.Database, "database.Transact", "rollback", fmt.Errorf("%w (rollback: %v)", err, rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, "database.Transact", "commit", err)
	}
	return nil
}
