package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hallbook/internal/config"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory" // без базы, см. repository.MemoryBookingStore
)

// DB хранит залы и бронирования в SQLite или PostgreSQL.
type DB struct {
	db     *sql.DB
	driver string
	path   string
	sb     squirrel.StatementBuilderType
	logger *zerolog.Logger
}

// Open выбирает драйвер по конфигурации.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return NewDB(cfg.Path, logger)
	case DriverPostgres:
		return NewPostgresDB(cfg.Postgres.DSN(), cfg.Postgres.MaxConnections, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDB открывает файл SQLite. Путь ":memory:" дает базу в памяти.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// одно соединение: база в памяти живет внутри соединения, а запись в SQLite все равно одна
	conn.SetMaxOpenConns(1)

	db := &DB{
		db:     conn,
		driver: DriverSQLite,
		path:   path,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: logger,
	}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().Str("driver", DriverSQLite).Str("path", path).Msg("База данных инициализирована")
	return db, nil
}

func NewPostgresDB(dsn string, maxOpenConns int, logger *zerolog.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		conn.SetMaxOpenConns(maxOpenConns)
	}

	db := &DB{
		db:     conn,
		driver: DriverPostgres,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().Str("driver", DriverPostgres).Msg("База данных инициализирована")
	return db, nil
}

func (db *DB) init() error {
	// Проверяем соединение
	if err := db.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	// Создаем таблицы
	if err := db.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (db *DB) createTables() error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	realType := "REAL"
	timeType := "DATETIME"
	if db.driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
		realType = "DOUBLE PRECISION"
		timeType = "TIMESTAMPTZ"
	}

	queries := []string{
		// Таблица залов
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS halls (
            id %s,
            name TEXT NOT NULL,
            district TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            capacity INTEGER NOT NULL,
            price_per_guest %s NOT NULL DEFAULT 0,
            phone TEXT NOT NULL DEFAULT '',
            owner_id BIGINT NOT NULL DEFAULT 0,
            approved BOOLEAN NOT NULL DEFAULT FALSE,
            created_at %s NOT NULL,
            updated_at %s NOT NULL
        )`, idColumn, realType, timeType, timeType),
		// Таблица бронирований; дата хранится как YYYY-MM-DD
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS bookings (
            id %s,
            hall_id BIGINT NOT NULL,
            hall_name TEXT NOT NULL DEFAULT '',
            date TEXT NOT NULL,
            guest_count INTEGER NOT NULL,
            customer_id BIGINT NOT NULL,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            phone TEXT NOT NULL,
            created_at %s NOT NULL,
            UNIQUE (hall_id, date)
        )`, idColumn, timeType),

		`CREATE INDEX IF NOT EXISTS idx_halls_owner_id ON halls(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer_id ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Driver() string {
	return db.driver
}

// Path возвращает путь к файлу SQLite; для PostgreSQL пусто.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) PingContext(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}

// isUniqueViolation распознает нарушение UNIQUE в обоих драйверах.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
