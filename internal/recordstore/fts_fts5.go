//go:build sqlite_fts5

package recordstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/moodlog/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			record_id UNINDEXED,
			user_id UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, q querier, recordID, userID int64, title, content string) error {
	_, _ = q.ExecContext(ctx, `DELETE FROM records_fts WHERE record_id = ?`, recordID)
	_, err := q.ExecContext(ctx, `INSERT INTO records_fts (record_id, user_id, title, content) VALUES (?, ?, ?, ?)`,
		recordID, userID, title, content)
	if err != nil {
		return fmt.Errorf("recordstore: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, q querier, recordID int64) {
	_, _ = q.ExecContext(ctx, `DELETE FROM records_fts WHERE record_id = ?`, recordID)
}

// Search performs an FTS5 full-text search over the user's records and
// returns matches with snippets, best first.
func (db *DB) Search(ctx context.Context, userID int64, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.record_id,
		       f.title,
		       snippet(records_fts, 3, '<b>', '</b>', '...', 64),
		       r.date
		FROM records_fts f
		JOIN records r ON r.id = f.record_id
		WHERE records_fts MATCH ? AND f.user_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, userID, limit)
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
