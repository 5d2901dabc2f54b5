package memory

import (
	sq "github.com/Masterminds/squirrel"
)

// StatementBuilder returns a Squirrel StatementBuilder configured for SQLite.
// SQLite uses '?' as placeholders, which is Squirrel's default.
func StatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder
}

// SelectMemoryColumns returns the standard column list for agent_memories SELECT queries.
func SelectMemoryColumns() []string {
	return []string{
		"id", "owner", "category", "name", "content",
		"importance", "created_at", "expires_at",
	}
}
