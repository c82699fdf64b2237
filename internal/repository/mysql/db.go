package mysql

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options describes how to reach the legacy database.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// DSN renders the options as a go-sql-driver connection string.
func (o Options) DSN() string {
	cfg := driver.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	cfg.DBName = o.Database
	cfg.Timeout = o.Timeout
	return cfg.FormatDSN()
}

// Open connects to the legacy database and verifies the connection.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql db %s/%s: %w", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)), opts.Database, err)
	}

	return db, nil
}
