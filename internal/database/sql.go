package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/config"
)

// Querier is satisfied by both *DB and *Tx so services can run the same
// statements inside or outside a transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB wraps the connection pool. Every statement goes through a bound
// parameter list; queries are written with '?' and rebound per dialect.
type DB struct {
	pool    *sql.DB
	dialect Dialect
}

// Tx is a transaction scoped to one pooled connection.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// Connect opens the pool for the configured driver, verifies it and creates
// the schema.
func Connect(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	dialect, ok := ParseDialect(cfg.DBDriver)
	if !ok {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = buildDSN(dialect, cfg)
	}
	db, err := Open(dialect, dsn, cfg.DBConnectionLimit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectTimeout)
	defer cancel()
	if err := db.pool.PingContext(ctx); err != nil {
		db.pool.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	logger.Info("✅ Connected to database", zap.String("driver", string(dialect)), zap.String("name", cfg.DBName))

	if err := db.InitTables(context.Background()); err != nil {
		db.pool.Close()
		return nil, err
	}
	logger.Info("✅ Database tables initialized")
	return db, nil
}

// Open creates the pool without touching the schema.
func Open(dialect Dialect, dsn string, maxConns int) (*DB, error) {
	pool, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	if dialect == SQLite {
		// A shared in-memory database lives as long as one connection does,
		// and SQLite serialises writers anyway.
		pool.SetMaxOpenConns(1)
		pool.SetMaxIdleConns(1)
		pool.SetConnMaxLifetime(0)
	} else {
		pool.SetMaxOpenConns(maxConns)
		pool.SetMaxIdleConns(maxConns / 2)
		pool.SetConnMaxLifetime(5 * time.Minute)
	}
	return &DB{pool: pool, dialect: dialect}, nil
}

func buildDSN(dialect Dialect, cfg *config.Config) string {
	switch dialect {
	case MySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.DBUser
		mc.Passwd = cfg.DBPassword
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Timeout = cfg.DBConnectTimeout
		mc.MultiStatements = false
		mc.Params = map[string]string{"charset": "utf8mb4", "time_zone": "'+00:00'"}
		return mc.FormatDSN()
	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
			Host:   net.JoinHostPort(cfg.DBHost, cfg.DBPort),
			Path:   cfg.DBName,
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		q.Set("connect_timeout", fmt.Sprintf("%d", int(cfg.DBConnectTimeout.Seconds())))
		q.Set("timezone", "UTC")
		u.RawQuery = q.Encode()
		return u.String()
	default:
		return "file:" + cfg.DBName + ".db?_busy_timeout=5000"
	}
}

func (db *DB) Dialect() Dialect { return db.dialect }

func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.pool.QueryContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.pool.QueryRowContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.pool.ExecContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.PingContext(ctx)
}

// Close closes the pool.
func (db *DB) Close() error {
	if db == nil || db.pool == nil {
		return nil
	}
	return db.pool.Close()
}

// Transaction runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; the connection always goes back to the pool.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, dialect: db.dialect}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (tx *Tx) Dialect() Dialect { return tx.dialect }

func (tx *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.tx.QueryContext(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.tx.QueryRowContext(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.tx.ExecContext(ctx, tx.dialect.Rebind(query), args...)
}
