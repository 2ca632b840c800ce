package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
)

// MySQLConfig locates a MySQL-compatible server (MySQL, MariaDB, or a dolt
// sql-server).
type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	TLS      bool   `mapstructure:"tls"`

	// CreateDatabase issues CREATE DATABASE IF NOT EXISTS before connecting.
	CreateDatabase bool `mapstructure:"create_database"`
}

// Defaults for MySQL mode.
const (
	DefaultMySQLHost     = "127.0.0.1"
	DefaultMySQLPort     = 3306
	DefaultMySQLUser     = "root"
	DefaultMySQLDatabase = "rulebook"
)

func (c MySQLConfig) withDefaults() MySQLConfig {
	if c.Host == "" {
		c.Host = DefaultMySQLHost
	}
	if c.Port == 0 {
		c.Port = DefaultMySQLPort
	}
	if c.User == "" {
		c.User = DefaultMySQLUser
	}
	if c.Database == "" {
		c.Database = DefaultMySQLDatabase
	}
	return c
}

// Addr returns host:port.
func (c MySQLConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// OpenMySQL connects to a MySQL-compatible server, retrying while the server
// comes up, and brings the schema up to date.
func OpenMySQL(ctx context.Context, cfg MySQLConfig) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := validateDatabaseName(cfg.Database); err != nil {
		return nil, err
	}

	if cfg.CreateDatabase {
		if err := createDatabase(ctx, cfg); err != nil {
			return nil, err
		}
	}

	db, err := openServerConnection(ctx, buildDSN(cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("mysql: connect to %s: %w", cfg.Addr(), err)
	}
	if err := initSchema(ctx, db, mysqlDialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: init schema: %w", err)
	}
	return newStore(db, mysqlDialect, cfg.Addr()+"/"+cfg.Database), nil
}

// buildDSN renders cfg as a go-sql-driver DSN. An empty database connects
// without selecting one.
func buildDSN(cfg MySQLConfig, database string) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.DBName = database
	// Count matched rather than changed rows so an UPDATE that writes
	// identical values still reports the row as found.
	mc.ClientFoundRows = true
	mc.Timeout = 10 * time.Second
	if cfg.TLS {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}

// openServerConnection opens a pool and pings it with backoff. Only
// retryable errors (refused connections while a container starts, stale
// sockets) are retried.
func openServerConnection(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && !isRetryableError(pingErr) {
			return backoff.Permanent(pingErr)
		}
		return pingErr
	}, backoff.WithContext(newServerRetryBackoff(), ctx))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createDatabase(ctx context.Context, cfg MySQLConfig) error {
	initDB, err := openServerConnection(ctx, buildDSN(cfg, ""))
	if err != nil {
		return fmt.Errorf("mysql: connect to %s: %w", cfg.Addr(), err)
	}
	defer func() { _ = initDB.Close() }()

	// Database name is validated, so backtick quoting is sufficient.
	_, err = initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database))
	var me *mysql.MySQLError
	if err != nil && !(errors.As(err, &me) && me.Number == mysqlErrDBCreateExists) {
		return fmt.Errorf("mysql: create database %s: %w", cfg.Database, err)
	}
	return nil
}

var databaseNameRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

func validateDatabaseName(name string) error {
	if !databaseNameRe.MatchString(name) {
		return fmt.Errorf("mysql: invalid database name %q: use letters, digits and underscores", name)
	}
	return nil
}
