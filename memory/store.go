package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Store persists agent memories in the agent_memories table.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates and returns a Store.
func NewStore(db *sql.DB, logger zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	logger = logger.With().Str("component", "memory_store").Logger()
	logger.Info().Msg("Initializing memory store")
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Remember stores entry and returns it with its id and timestamps filled in.
// A zero ExpiresAt expires the entry after DefaultTTL; an empty Name gets a
// generated unique name. Importance is clamped to [0, MaxImportance].
func (s *Store) Remember(ctx context.Context, entry Entry) (Entry, error) {
	s.logger.Debug().
		Str("method", "Remember").
		Str("owner", entry.Owner).
		Str("category", string(entry.Category)).
		Str("content", truncateString(entry.Content, 40)).
		Float64("importance", entry.Importance).
		Msg("called")

	if strings.TrimSpace(entry.Owner) == "" {
		return Entry{}, errors.New("owner is empty")
	}
	if strings.TrimSpace(entry.Content) == "" {
		s.logger.Warn().
			Str("method", "Remember").
			Msg("Attempted to remember empty content")
		return Entry{}, errors.New("content is empty")
	}
	if entry.Category == "" {
		entry.Category = CategoryConversation
	}

	now := s.now()
	entry.CreatedAt = now
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = now.Add(DefaultTTL)
	}
	if entry.Name == "" {
		entry.Name = fmt.Sprintf("%s_%s_%s", entry.Owner, entry.Category, ulid.Make().String())
	}
	entry.Importance = clampImportance(entry.Importance)

	query := StatementBuilder().
		Insert("agent_memories").
		Columns("owner", "category", "name", "content", "importance", "created_at", "expires_at").
		Values(entry.Owner, string(entry.Category), entry.Name, entry.Content,
			entry.Importance, entry.CreatedAt.Unix(), entry.ExpiresAt.Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return Entry{}, fmt.Errorf("build insert query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		s.logger.Error().
			Str("method", "Remember").
			Err(err).
			Msg("Failed to insert agent_memories row")
		return Entry{}, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("read memory id: %w", err)
	}
	entry.ID = id

	s.logger.Info().
		Str("method", "Remember").
		Str("owner", entry.Owner).
		Str("name", entry.Name).
		Int64("id", id).
		Float64("importance", entry.Importance).
		Msg("Memory remembered")
	return entry, nil
}

// Recent returns up to limit unexpired entries for owner, newest first.
// An empty category matches every category.
func (s *Store) Recent(ctx context.Context, owner string, category Category, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := StatementBuilder().
		Select(SelectMemoryColumns()...).
		From("agent_memories").
		Where(sq.Eq{"owner": owner}).
		Where(sq.Gt{"expires_at": s.now().Unix()}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)) //nolint:gosec // limit is positive

	if category != "" {
		query = query.Where(sq.Eq{"category": string(category)})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err is checked below

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			cat                string
			created, expiresAt int64
		)
		if err := rows.Scan(&e.ID, &e.Owner, &cat, &e.Name, &e.Content, &e.Importance, &created, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		e.Category = Category(cat)
		e.CreatedAt = time.Unix(created, 0)
		e.ExpiresAt = time.Unix(expiresAt, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return entries, nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	queryStr, args, err := StatementBuilder().
		Delete("agent_memories").
		Where(sq.LtOrEq{"expires_at": s.now().Unix()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		s.logger.Error().Str("method", "PurgeExpired").Err(err).Msg("Failed to purge expired memories")
		return 0, fmt.Errorf("purge memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if n > 0 {
		s.logger.Info().Str("method", "PurgeExpired").Int64("purged", n).Msg("Expired memories purged")
	}
	return n, nil
}

func clampImportance(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > MaxImportance:
		return MaxImportance
	default:
		return v
	}
}

// truncateString shortens s for log output.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Ensure Store implements Writer
var _ Writer = (*Store)(nil)
