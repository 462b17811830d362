package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/moodlog/internal/models"
)

// maxSQLVars stays below SQLite's default bind-variable limit.
const maxSQLVars = 500

func inPlaceholders(ids []int64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(ph, ",") + ")", args
}

// queryChunked calls fn for each chunk of ids no larger than maxSQLVars.
func queryChunked(ids []int64, fn func(chunk []int64) error) error {
	for i := 0; i < len(ids); i += maxSQLVars {
		end := min(i+maxSQLVars, len(ids))
		if err := fn(ids[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func recordIDs(recs []models.Record) ([]int64, map[int64]int) {
	ids := make([]int64, len(recs))
	pos := make(map[int64]int, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
		pos[r.ID] = i
	}
	return ids, pos
}

// loadActivities fills ActivityIDs of recs in tagging order.
func loadActivities(ctx context.Context, q querier, recs []models.Record) error {
	ids, pos := recordIDs(recs)
	for i := range recs {
		recs[i].ActivityIDs = []int64{}
	}
	return queryChunked(ids, func(chunk []int64) error {
		ph, args := inPlaceholders(chunk)
		rows, err := q.QueryContext(ctx, `
			SELECT record_id, activity_id
			FROM activity_records
			WHERE record_id IN `+ph+`
			ORDER BY rowid
		`, args...)
		if err != nil {
			return fmt.Errorf("recordstore: load activities: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var rid, aid int64
			if err := rows.Scan(&rid, &aid); err != nil {
				return err
			}
			i := pos[rid]
			recs[i].ActivityIDs = append(recs[i].ActivityIDs, aid)
		}
		return rows.Err()
	})
}

// loadFiles fills Files of recs.
func loadFiles(ctx context.Context, q querier, recs []models.Record) error {
	ids, pos := recordIDs(recs)
	return queryChunked(ids, func(chunk []int64) error {
		ph, args := inPlaceholders(chunk)
		rows, err := q.QueryContext(ctx, `
			SELECT id, record_id, user_id, fname, type, url, fkey, size, duration, checksum
			FROM files
			WHERE record_id IN `+ph+`
			ORDER BY id
		`, args...)
		if err != nil {
			return fmt.Errorf("recordstore: load files: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				f        models.File
				duration sql.NullFloat64
			)
			if err := rows.Scan(&f.ID, &f.RecordID, &f.UserID, &f.Name, &f.Type, &f.URL, &f.Key, &f.Size, &duration, &f.Checksum); err != nil {
				return err
			}
			if duration.Valid {
				d := duration.Float64
				f.Duration = &d
			}
			i := pos[f.RecordID]
			recs[i].Files = append(recs[i].Files, f)
		}
		return rows.Err()
	})
}

// FindRecords returns the user's records dated inside [q.From, q.To), newest first.
func (db *DB) FindRecords(ctx context.Context, q models.RecordQuery) ([]models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date DESC, id DESC
	`, q.UserID, toMillis(q.From), toMillis(q.To))
	if err != nil {
		return nil, fmt.Errorf("recordstore: find records: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if q.IncludeActivities {
		if err := loadActivities(ctx, db.conn, recs); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// ActivityIDsForUser returns every activity id the user has ever tagged, ascending.
func (db *DB) ActivityIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT ar.activity_id
		FROM activity_records ar
		JOIN records r ON r.id = ar.record_id
		WHERE r.user_id = ?
		ORDER BY ar.activity_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("recordstore: user activities: %w", err)
	}
	defer rows.Close()
	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ActivityNames returns the catalog names of ids. Unknown ids are absent.
func (db *DB) ActivityNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	err := queryChunked(ids, func(chunk []int64) error {
		ph, args := inPlaceholders(chunk)
		rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM activities WHERE id IN `+ph, args...)
		if err != nil {
			return fmt.Errorf("recordstore: activity names: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var a models.Activity
			if err := rows.Scan(&a.ID, &a.Name); err != nil {
				return err
			}
			out[a.ID] = a.Name
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertActivity creates or renames a catalog activity.
func (db *DB) UpsertActivity(ctx context.Context, a models.Activity) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO activities (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, a.ID, a.Name)
	if err != nil {
		return fmt.Errorf("recordstore: upsert activity: %w", err)
	}
	return nil
}

// ListActivities returns the catalog ordered by id.
func (db *DB) ListActivities(ctx context.Context) ([]models.Activity, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM activities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list activities: %w", err)
	}
	defer rows.Close()
	out := make([]models.Activity, 0)
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FileKeys returns the blob key of every file row.
func (db *DB) FileKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT fkey FROM files WHERE fkey <> ''`)
	if err != nil {
		return nil, fmt.Errorf("recordstore: file keys: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}

// DeleteFilesByKey removes the file rows pointing at blob key and reports how many went.
func (db *DB) DeleteFilesByKey(ctx context.Context, key string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM files WHERE fkey = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("recordstore: delete files: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
