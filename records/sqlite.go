package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var recordColumns = []string{"id", "type", "name", "status", "created_at", "updated_at"}

// SQLStore keeps records in the agent_records table.
type SQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLStore creates a new SQLStore
func NewSQLStore(logger zerolog.Logger, db *sql.DB) *SQLStore {
	return &SQLStore{db: db, logger: logger.With().Str("component", "recordStore").Logger()}
}

// Ping verifies the database answers queries.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return classify("ping", err)
	}
	return nil
}

// FindByTypeAndStatus returns the most recently updated record of agentType
// with the given status.
func (s *SQLStore) FindByTypeAndStatus(ctx context.Context, agentType, status string) (Record, error) {
	return s.findOne(ctx, "FindByTypeAndStatus", sq.Eq{"type": agentType, "status": status})
}

// FindByType returns the most recently updated record of agentType.
func (s *SQLStore) FindByType(ctx context.Context, agentType string) (Record, error) {
	return s.findOne(ctx, "FindByType", sq.Eq{"type": agentType})
}

func (s *SQLStore) findOne(ctx context.Context, method string, where sq.Eq) (Record, error) {
	queryStr, args, err := sq.Select(recordColumns...).
		From("agent_records").
		Where(where).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return Record{}, fmt.Errorf("build query: %w", err)
	}

	var (
		r                  Record
		created, updatedAt int64
	)
	err = s.db.QueryRowContext(ctx, queryStr, args...).
		Scan(&r.ID, &r.Type, &r.Name, &r.Status, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		s.logger.Debug().Str("method", method).Err(err).Msg("Record lookup failed")
		return Record{}, classify(method, err)
	}
	r.CreatedAt = time.Unix(created, 0)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return r, nil
}

// Create inserts a new record with a random id.
func (s *SQLStore) Create(ctx context.Context, agentType, name, status string) (Record, error) {
	now := time.Now()
	r := Record{
		ID:        uuid.NewString(),
		Type:      agentType,
		Name:      name,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	queryStr, args, err := sq.Insert("agent_records").
		Columns(recordColumns...).
		Values(r.ID, r.Type, r.Name, r.Status, now.Unix(), now.Unix()).
		ToSql()
	if err != nil {
		return Record{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return Record{}, classify("create", err)
	}

	s.logger.Info().
		Str("id", r.ID).
		Str("type", agentType).
		Str("status", status).
		Msg("Agent record created")
	return r, nil
}

// PoolStats implements StatsReporter.
func (s *SQLStore) PoolStats(_ context.Context) (PoolStats, error) {
	if s.db == nil {
		return PoolStats{}, fmt.Errorf("pool stats: %w", ErrUnavailable)
	}
	st := s.db.Stats()
	return PoolStats{
		MaxOpenConnections: st.MaxOpenConnections,
		OpenConnections:    st.OpenConnections,
		InUse:              st.InUse,
		Idle:               st.Idle,
		WaitCount:          st.WaitCount,
		WaitDuration:       st.WaitDuration,
	}, nil
}

// classify wraps err with the sentinel matching its cause.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrProtocol:
			return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		case sqlite3.ErrAuth, sqlite3.ErrPerm, sqlite3.ErrReadonly:
			return fmt.Errorf("%s: %w: %w", op, ErrAuth, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var (
	_ Store         = (*SQLStore)(nil)
	_ StatsReporter = (*SQLStore)(nil)
)
