package isolation

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"

	_ "github.com/go-sql-driver/mysql"

	"tshard/internal/config"
)

// DatabaseManager creates and checks the per-shard MySQL databases.
type DatabaseManager struct {
	cfg *config.Config
}

// NewDatabaseManager creates a new DatabaseManager
func NewDatabaseManager(cfg *config.Config) *DatabaseManager {
	return &DatabaseManager{cfg: cfg}
}

// EnsureDatabases makes sure one database per shard exists, creating any
// that are missing. Returns the database names in shard order. Connection
// settings come from the environment (the project .env is loaded by
// config.Load): DB_HOST, DB_PORT, DB_USERNAME, DB_PASSWORD.
func (dm *DatabaseManager) EnsureDatabases(ctx context.Context, shards int) ([]string, error) {
	db, err := sql.Open("mysql", serverDSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database server: %w", err)
	}

	names := make([]string, 0, shards)
	for i := 1; i <= shards; i++ {
		name := dm.cfg.GetDatabaseName(i)

		exists, err := databaseExists(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("check database %s: %w", name, err)
		}
		if !exists {
			if err := createDatabase(ctx, db, name); err != nil {
				return nil, fmt.Errorf("create database %s: %w", name, err)
			}
		}
		names = append(names, name)
	}

	return names, nil
}

// serverDSN builds a DSN for the MySQL server itself, without selecting a
// database.
func serverDSN() string {
	host := envOr("DB_HOST", "127.0.0.1")
	port := envOr("DB_PORT", "3306")
	user := envOr("DB_USERNAME", "root")
	pass := os.Getenv("DB_PASSWORD")
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/", user, pass, host, port)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func databaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowContext(ctx, query, name).Scan(&exists)
	return exists, err
}

// dbNamePattern accepts the names GetDatabaseName produces. Anything else is
// rejected rather than interpolated into the CREATE statement.
var dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

func createDatabase(ctx context.Context, db *sql.DB, name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("invalid database name: %s", name)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name))
	return err
}
