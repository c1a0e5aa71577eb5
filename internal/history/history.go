package history

import (
	"context"
	"database/sql"
	"embed"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/mcwatch/mcwatch/pkg/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ProbeRecord is one persisted probe outcome.
type ProbeRecord struct {
	HistoryID     int64     `json:"history_id"`
	Address       string    `json:"address"`
	Online        bool      `json:"online"`
	PlayersOnline int       `json:"players_online"`
	PlayersMax    int       `json:"players_max"`
	LatencyMS     float64   `json:"latency_ms"`
	Version       string    `json:"version"`
	CreatedOn     time.Time `json:"created_on"`
}

type Store interface {
	Close() error
	Connect() error
	Init() error
	SaveResult(ctx context.Context, result store.TrackedServer) error
	Fetch(ctx context.Context, address string, limit uint64) ([]ProbeRecord, error)
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

type SqliteStore struct {
	db     *sql.DB
	dsn    string
	logger *zap.Logger
}

func New(dsn string, logger *zap.Logger) *SqliteStore {
	return &SqliteStore{dsn: dsn, logger: logger.Named("history")}
}

func (store *SqliteStore) Close() error {
	if store.db == nil {
		return nil
	}

	if errClose := store.db.Close(); errClose != nil {
		return errors.Wrap(errClose, "Failed to close history database")
	}

	return nil
}

func (store *SqliteStore) Connect() error {
	database, errOpen := sql.Open("sqlite3", store.dsn)
	if errOpen != nil {
		return errors.Wrap(errOpen, "Failed to open history database")
	}

	for _, pragma := range []string{"PRAGMA encoding = 'UTF-8'", "PRAGMA journal_mode = WAL"} {
		if _, errPragma := database.Exec(pragma); errPragma != nil {
			return errors.Wrapf(errPragma, "Failed to enable pragma: %s", pragma)
		}
	}

	store.db = database

	return nil
}

func (store *SqliteStore) Init() error {
	if store.db == nil {
		if errConn := store.Connect(); errConn != nil {
			return errConn
		}
	}

	fsDriver, errIofs := iofs.New(migrations, "migrations")
	if errIofs != nil {
		return errors.Wrap(errIofs, "Failed to create migration source")
	}

	sqlDriver, errDriver := sqlite3.WithInstance(store.db, &sqlite3.Config{})
	if errDriver != nil {
		return errors.Wrap(errDriver, "Failed to create migration driver")
	}

	migrator, errNewMigrator := migrate.NewWithInstance("iofs", fsDriver, "sqlite3", sqlDriver)
	if errNewMigrator != nil {
		return errors.Wrap(errNewMigrator, "Failed to create migrator")
	}

	if errMigrate := migrator.Up(); errMigrate != nil && !errors.Is(errMigrate, migrate.ErrNoChange) {
		return errors.Wrap(errMigrate, "Failed to migrate history database")
	}

	return nil
}

func (store *SqliteStore) SaveResult(ctx context.Context, result store.TrackedServer) error {
	query, args, errSql := sq.
		Insert("probe_history").
		Columns("address", "online", "players_online", "players_max", "latency_ms", "version", "created_on").
		Values(result.Address, result.Online(), result.PlayersOnline, result.PlayersMax,
			result.LatencyMS, result.Version, result.LastChecked).
		ToSql()
	if errSql != nil {
		return errSql
	}

	if _, errExec := store.db.ExecContext(ctx, query, args...); errExec != nil {
		return errors.Wrap(errExec, "Failed to save probe result")
	}

	return nil
}

func (store *SqliteStore) Fetch(ctx context.Context, address string, limit uint64) ([]ProbeRecord, error) {
	query, args, errSql := sq.
		Select("history_id", "address", "online", "players_online", "players_max",
			"latency_ms", "version", "created_on").
		From("probe_history").
		Where(sq.Eq{"address": address}).
		OrderBy("created_on DESC").
		Limit(limit).
		ToSql()
	if errSql != nil {
		return nil, errSql
	}

	rows, errQuery := store.db.QueryContext(ctx, query, args...)
	if errQuery != nil {
		if errors.Is(errQuery, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, errQuery
	}

	defer util.LogClose(store.logger, rows)

	var records []ProbeRecord

	for rows.Next() {
		var record ProbeRecord
		if errScan := rows.Scan(&record.HistoryID, &record.Address, &record.Online,
			&record.PlayersOnline, &record.PlayersMax, &record.LatencyMS,
			&record.Version, &record.CreatedOn); errScan != nil {
			return nil, errScan
		}

		records = append(records, record)
	}

	if errRows := rows.Err(); errRows != nil {
		return nil, errRows
	}

	return records, nil
}

// Prune drops rows older than maxAge, returning how many were removed.
func (store *SqliteStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	query, args, errSql := sq.
		Delete("probe_history").
		Where(sq.Lt{"created_on": time.Now().Add(-maxAge)}).
		ToSql()
	if errSql != nil {
		return 0, errSql
	}

	result, errExec := store.db.ExecContext(ctx, query, args...)
	if errExec != nil {
		return 0, errors.Wrap(errExec, "Failed to prune probe history")
	}

	removed, errRows := result.RowsAffected()
	if errRows != nil {
		return 0, errors.Wrap(errRows, "Failed to read pruned row count")
	}

	return removed, nil
}
