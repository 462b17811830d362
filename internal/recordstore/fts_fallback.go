//go:build !sqlite_fts5

package recordstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/moodlog/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the records table.
	return nil
}

func ftsUpsert(_ context.Context, _ querier, _, _ int64, _, _ string) error { return nil }

func ftsDelete(_ context.Context, _ querier, _ int64) {}

// Search performs a LIKE-based search over the user's titles and contents
// (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, userID int64, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, substr(content, 1, 200), date
		FROM records
		WHERE user_id = ? AND (title LIKE ? OR content LIKE ?)
		ORDER BY date DESC
		LIMIT ?
	`, userID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("recordstore: search: %w", err)
	}
	defer rows.Close()

	out := make([]models.SearchHit, 0)
	for rows.Next() {
		var (
			h    models.SearchHit
			date int64
		)
		if err := rows.Scan(&h.RecordID, &h.Title, &h.Snippet, &date); err != nil {
			return nil, err
		}
		h.Date = fromMillis(date)
		out = append(out, h)
	}
	return out, rows.Err()
}
