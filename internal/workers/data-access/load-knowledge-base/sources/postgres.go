package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Postgres reads every row of a (topic, answer) table.
type Postgres struct {
	db    *sql.DB
	query string
}

func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: postgres", ErrMissingBackend)
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("knowledge base table is required")
	}
	return &Postgres{
		db:    db,
		query: fmt.Sprintf("SELECT topic, answer FROM %s ORDER BY topic", quoteTable(table)),
	}, nil
}

// quoteTable quotes each part of an optionally schema-qualified name.
func quoteTable(table string) string {
	parts := strings.Split(strings.TrimSpace(table), ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func (p *Postgres) Name() string { return NamePostgres }

func (p *Postgres) Fetch(ctx context.Context) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("query knowledge base: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var topic string
		var answer sql.NullString
		if err := rows.Scan(&topic, &answer); err != nil {
			return nil, fmt.Errorf("scan knowledge base row: %w", err)
		}
		entries[topic] = answer.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge base rows: %w", err)
	}
	return entries, nil
}
