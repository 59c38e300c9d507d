package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/pkg/logger"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrOutOfOrder        = errors.New("clue solved out of order")
	ErrNotRegistered     = errors.New("participant not registered")
	ErrAlreadyRegistered = errors.New("participant already registered")
	ErrIncomplete        = errors.New("solved clues do not cover the hunt")
	ErrContentExists     = errors.New("clue content already stored for hunt")
	ErrAlreadyWinner     = errors.New("address already recorded as winner")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Publisher receives a notification after every committed progress mutation.
type Publisher interface {
	Publish(event model.Event)
}

type Repository struct {
	db          *sqlx.DB
	driver      string
	placeholder squirrel.PlaceholderFormat
	publisher   Publisher
	chainID     int64
}

// WithChain returns a view of the repository whose progress, content and
// claim rows belong to the given chain. Hunt ids restart on every chain, so
// those rows are keyed by chain id as well. Settings and blobs stay shared.
func (r *Repository) WithChain(chainID int64) *Repository {
	scoped := *r
	scoped.chainID = chainID
	return &scoped
}

func (r *Repository) ChainID() int64 {
	return r.chainID
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return tx.Commit()
}

type Config struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func New(cfg Config, publisher Publisher) (*Repository, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	url := cfg.GetDatabaseURL()
	db, err := sqlx.Connect(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// one writer keeps appends serialized and in-memory databases alive
		db.SetMaxOpenConns(1)
	}

	err = db.Ping()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{
		db:          db,
		driver:      driver,
		placeholder: placeholderFor(driver),
		publisher:   publisher,
	}

	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Logger().Info("Connected to database successfully", zap.String("driver", driver))

	return r, nil
}

func (c *Config) GetDatabaseURL() string {
	if c.Driver == "" || c.Driver == DriverSQLite {
		path := strings.TrimSpace(c.Path)
		if path == "" || path == ":memory:" {
			return ":memory:"
		}
		return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

func placeholderFor(driver string) squirrel.PlaceholderFormat {
	if driver == DriverSQLite {
		return squirrel.Question
	}
	return squirrel.Dollar
}

func (r *Repository) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(r.placeholder)
}

// scope narrows a filter to the repository's chain.
func (r *Repository) scope(eq squirrel.Eq) squirrel.Eq {
	eq["chain_id"] = r.chainID
	return eq
}

func (r *Repository) publish(event model.Event) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(event)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	return false
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
