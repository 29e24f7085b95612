package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported values of DB_DRIVER.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// Options describes how to reach the relational store.
type Options struct {
	Driver string
	URL    string // used verbatim when set
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// DSN builds a driver specific connection string from the discrete parts.
func (o Options) DSN() (string, error) {
	if o.URL != "" {
		return o.URL, nil
	}
	switch o.Driver {
	case Postgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(o.User, o.Pass),
			Host:     o.Host + ":" + o.Port,
			Path:     "/" + o.Name,
			RawQuery: "sslmode=disable",
		}
		if o.Pass == "" {
			u.User = url.User(o.User)
		}
		return u.String(), nil
	case MySQL:
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, o.Host, o.Port, o.Name), nil
	case SQLite:
		if o.Name == "" {
			return ":memory:", nil
		}
		return o.Name, nil
	}
	return "", fmt.Errorf("unsupported db driver %q", o.Driver)
}

// Open connects to the configured store and verifies the connection.
func Open(o Options) (*sqlx.DB, error) {
	dsn, err := o.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(o.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.Driver, err)
	}

	if o.Driver == SQLite {
		// one writer; an in-memory database also lives per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", o.Driver, err)
	}
	return db, nil
}
