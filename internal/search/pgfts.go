package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches reports with PostgreSQL full-text search, used as the
// fallback when Meilisearch is not configured or unhealthy.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery against the reports.fts column with
// ts_rank ordering and ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := p.db.Query(`
		SELECT id, title,
			ts_headline('english', coalesce(description, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			status,
			COUNT(*) OVER () AS total
		FROM reports
		WHERE fts @@ plainto_tsquery('english', $1)
			AND ($2='' OR status=$2)
		ORDER BY ts_rank(fts, plainto_tsquery('english', $1)) DESC
		LIMIT $3 OFFSET $4
	`, q.Text, q.FilterStatus, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	total := 0
	for rows.Next() {
		var item Result
		if err := rows.Scan(&item.ID, &item.Title, &item.Snippet, &item.Status, &total); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}
