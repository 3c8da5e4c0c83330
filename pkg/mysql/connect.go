package mysql

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/pkg/errors"
)

// FormatDSN builds a go-sql-driver DSN from a connection config.
func FormatDSN(conn dump.ConnectionConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = conn.User
	cfg.Passwd = conn.GetPassword()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(conn.GetPort()))
	cfg.DBName = conn.Database

	if len(conn.Params) > 0 {
		cfg.Params = make(map[string]string, len(conn.Params))

		for k, v := range conn.Params {
			cfg.Params[k] = v
		}
	}

	return cfg.FormatDSN()
}

// ParseDSN converts a DSN like 'user:password@tcp(localhost:3306)/db'
// into a connection config. The password is always set, possibly empty.
func ParseDSN(dsn string) (dump.ConnectionConfig, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dump.ConnectionConfig{}, errors.Wrap(err, "unable to parse DSN")
	}

	conn := dump.ConnectionConfig{
		Host:     cfg.Addr,
		Database: cfg.DBName,
		User:     cfg.User,
		Password: dump.Password(cfg.Passwd),
		Params:   cfg.Params,
	}

	// split hostname and port
	host, port, err := net.SplitHostPort(cfg.Addr)
	if err == nil {
		conn.Host = host

		conn.Port, err = strconv.Atoi(port)
		if err != nil {
			return dump.ConnectionConfig{}, errors.Wrapf(err, "invalid port in DSN address %s", cfg.Addr)
		}
	}

	return conn, nil
}

// Connect opens and pings a connection pool and returns it as a Repository.
func Connect(ctx context.Context, conn dump.ConnectionConfig) (dump.Executor, error) {
	db, err := sql.Open("mysql", FormatDSN(conn))
	if err != nil {
		return nil, errors.Wrap(err, "unable to open database")
	}

	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "unable to connect to %s", net.JoinHostPort(conn.Host, strconv.Itoa(conn.GetPort())))
	}

	return New(db), nil
}
