package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/models"
)

const recordColumns = `id, user_id, mood_id, date, status, title, content, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func scanRecord(s scanner) (models.Record, error) {
	var (
		r                      models.Record
		mood                   sql.NullInt64
		date, created, updated int64
	)
	if err := s.Scan(&r.ID, &r.UserID, &mood, &date, &r.Status, &r.Title, &r.Content, &created, &updated); err != nil {
		return r, err
	}
	if mood.Valid {
		id := mood.Int64
		r.MoodID = &id
	}
	r.Date = fromMillis(date)
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(updated)
	return r, nil
}

func nullMood(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// CreateRecord inserts r together with its activity tags and files, and sets
// r.ID and the timestamps. A zero Date means now.
func (db *DB) CreateRecord(ctx context.Context, r *models.Record) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recordstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC().Truncate(time.Millisecond)
	if r.Date.IsZero() {
		r.Date = now
	}
	r.Date = r.Date.UTC().Truncate(time.Millisecond)
	if r.Status == "" {
		r.Status = models.StatusActive
	}
	r.CreatedAt, r.UpdatedAt = now, now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO records (user_id, mood_id, date, status, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.UserID, nullMood(r.MoodID), toMillis(r.Date), r.Status, r.Title, r.Content, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("recordstore: insert record: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("recordstore: record id: %w", err)
	}

	tags, err := insertTags(ctx, tx, r.ID, r.ActivityIDs)
	if err != nil {
		return err
	}
	r.ActivityIDs = make([]int64, 0, len(tags))
	for _, t := range tags {
		r.ActivityIDs = append(r.ActivityIDs, t.ActivityID)
	}

	for i := range r.Files {
		r.Files[i].RecordID = r.ID
		r.Files[i].UserID = r.UserID
		if err := insertFile(ctx, tx, &r.Files[i]); err != nil {
			return err
		}
	}

	if err := ftsUpsert(ctx, tx, r.ID, r.UserID, r.Title, r.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRecord returns the record with its activities and files.
func (db *DB) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	r, err := scanRecord(db.conn.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recordstore: get record: %w", err)
	}
	recs := []models.Record{r}
	if err := loadActivities(ctx, db.conn, recs); err != nil {
		return nil, err
	}
	if err := loadFiles(ctx, db.conn, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// ListRecords returns every record of userID, newest first, with activities and files.
func (db *DB) ListRecords(ctx context.Context, userID int64) ([]models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = ?
		ORDER BY date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list records: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if err := loadActivities(ctx, db.conn, recs); err != nil {
		return nil, err
	}
	if err := loadFiles(ctx, db.conn, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateRecord applies p to the record. A non-empty ActivityIDs replaces the
// tag set; NewFiles are appended.
func (db *DB) UpdateRecord(ctx context.Context, id int64, p models.RecordPatch) (*models.Record, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("recordstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recordstore: load record: %w", err)
	}

	sets := []string{"updated_at = ?"}
	args := []any{toMillis(time.Now().UTC())}
	if p.MoodID != nil {
		sets = append(sets, "mood_id = ?")
		args = append(args, *p.MoodID)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, toMillis(*p.Date))
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
		cur.Title = *p.Title
	}
	if p.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *p.Content)
		cur.Content = *p.Content
	}
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, `UPDATE records SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("recordstore: update record: %w", err)
	}

	if len(p.ActivityIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM activity_records WHERE record_id = ?`, id); err != nil {
			return nil, fmt.Errorf("recordstore: clear tags: %w", err)
		}
		if _, err := insertTags(ctx, tx, id, p.ActivityIDs); err != nil {
			return nil, err
		}
	}
	for i := range p.NewFiles {
		f := p.NewFiles[i]
		f.RecordID = id
		f.UserID = cur.UserID
		if err := insertFile(ctx, tx, &f); err != nil {
			return nil, err
		}
	}
	if err := ftsUpsert(ctx, tx, id, cur.UserID, cur.Title, cur.Content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("recordstore: commit: %w", err)
	}
	return db.GetRecord(ctx, id)
}

// DeleteRecord removes the record, its tags and file rows, and returns the
// removed files so their blobs can be cleaned up.
func (db *DB) DeleteRecord(ctx context.Context, id int64) ([]models.File, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("recordstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	recs := []models.Record{{ID: id}}
	if err := loadFiles(ctx, tx, recs); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("recordstore: delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.ErrNotFound
	}
	ftsDelete(ctx, tx, id)
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("recordstore: commit: %w", err)
	}
	return recs[0].Files, nil
}

// AddActivities tags the record with activityIDs, skipping tags it already
// has, and returns the tags that were added.
func (db *DB) AddActivities(ctx context.Context, recordID int64, activityIDs []int64) ([]models.ActivityTag, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("recordstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := requireRecord(ctx, tx, recordID); err != nil {
		return nil, err
	}
	tags, err := insertTags(ctx, tx, recordID, activityIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("recordstore: commit: %w", err)
	}
	return tags, nil
}

// AddFile stores a file row for an existing record and sets f.ID.
func (db *DB) AddFile(ctx context.Context, f *models.File) error {
	if err := requireRecord(ctx, db.conn, f.RecordID); err != nil {
		return err
	}
	return insertFile(ctx, db.conn, f)
}

func requireRecord(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("recordstore: check record: %w", err)
	}
	return nil
}

// insertTags inserts the (record, activity) pairs that do not exist yet and
// returns them in input order.
func insertTags(ctx context.Context, q querier, recordID int64, activityIDs []int64) ([]models.ActivityTag, error) {
	out := make([]models.ActivityTag, 0, len(activityIDs))
	for _, aid := range activityIDs {
		res, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO activity_records (record_id, activity_id) VALUES (?, ?)`, recordID, aid)
		if err != nil {
			return nil, fmt.Errorf("recordstore: insert tag: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			out = append(out, models.ActivityTag{RecordID: recordID, ActivityID: aid})
		}
	}
	return out, nil
}

func insertFile(ctx context.Context, q querier, f *models.File) error {
	var duration sql.NullFloat64
	if f.Duration != nil {
		duration = sql.NullFloat64{Float64: *f.Duration, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO files (record_id, user_id, fname, type, url, fkey, size, duration, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.RecordID, f.UserID, f.Name, f.Type, f.URL, f.Key, f.Size, duration, f.Checksum)
	if err != nil {
		return fmt.Errorf("recordstore: insert file: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("recordstore: file id: %w", err)
	}
	return nil
}

func collectRecords(rows *sql.Rows) ([]models.Record, error) {
	defer rows.Close()
	out := make([]models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("recordstore: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
