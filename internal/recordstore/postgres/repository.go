// Package postgres provides a Postgres-backed journal store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/recordstore"
)

//go:embed migrations/0001_init.sql
var schemaSQL string

const recordColumns = `id, user_id, mood_id, date, status, title, content, created_at, updated_at`

// Verify *Repository satisfies recordstore.Store at compile time.
var _ recordstore.Store = (*Repository)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides Postgres-backed persistence for records, tags and files.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect opens a pool for url and applies the schema.
func Connect(ctx context.Context, url string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	repo := NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (models.Record, error) {
	var rec models.Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.MoodID, &rec.Date, &rec.Status, &rec.Title, &rec.Content, &rec.CreatedAt, &rec.UpdatedAt)
	rec.Date = rec.Date.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]models.Record, error) {
	defer rows.Close()
	out := make([]models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateRecord inserts rec together with its activity tags and files.
func (r *Repository) CreateRecord(ctx context.Context, rec *models.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC().Truncate(time.Microsecond)
	if rec.Date.IsZero() {
		rec.Date = now
	}
	rec.Date = rec.Date.UTC().Truncate(time.Microsecond)
	if rec.Status == "" {
		rec.Status = models.StatusActive
	}
	rec.CreatedAt, rec.UpdatedAt = now, now

	err = tx.QueryRow(ctx, `
		INSERT INTO records (user_id, mood_id, date, status, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`, rec.UserID, rec.MoodID, rec.Date, rec.Status, rec.Title, rec.Content, now).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("postgres: insert record: %w", err)
	}

	tags, err := insertTags(ctx, tx, rec.ID, rec.ActivityIDs)
	if err != nil {
		return err
	}
	rec.ActivityIDs = make([]int64, 0, len(tags))
	for _, t := range tags {
		rec.ActivityIDs = append(rec.ActivityIDs, t.ActivityID)
	}
	for i := range rec.Files {
		rec.Files[i].RecordID = rec.ID
		rec.Files[i].UserID = rec.UserID
		if err := insertFile(ctx, tx, &rec.Files[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// GetRecord returns the record with its activities and files.
func (r *Repository) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get record: %w", err)
	}
	recs := []models.Record{rec}
	if err := loadActivities(ctx, r.pool, recs); err != nil {
		return nil, err
	}
	if err := loadFiles(ctx, r.pool, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// ListRecords returns every record of userID, newest first.
func (r *Repository) ListRecords(ctx context.Context, userID int64) ([]models.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = $1
		ORDER BY date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if err := loadActivities(ctx, r.pool, recs); err != nil {
		return nil, err
	}
	if err := loadFiles(ctx, r.pool, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateRecord applies p to the record.
func (r *Repository) UpdateRecord(ctx context.Context, id int64, p models.RecordPatch) (*models.Record, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var userID int64
	err = tx.QueryRow(ctx, `SELECT user_id FROM records WHERE id = $1 FOR UPDATE`, id).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load record: %w", err)
	}

	sets := []string{"updated_at = now()"}
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if p.MoodID != nil {
		add("mood_id", *p.MoodID)
	}
	if p.Date != nil {
		add("date", p.Date.UTC())
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Content != nil {
		add("content", *p.Content)
	}
	args = append(args, id)
	query := `UPDATE records SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(len(args))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: update record: %w", err)
	}

	if len(p.ActivityIDs) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM activity_records WHERE record_id = $1`, id); err != nil {
			return nil, fmt.Errorf("postgres: clear tags: %w", err)
		}
		if _, err := insertTags(ctx, tx, id, p.ActivityIDs); err != nil {
			return nil, err
		}
	}
	for i := range p.NewFiles {
		f := p.NewFiles[i]
		f.RecordID = id
		f.UserID = userID
		if err := insertFile(ctx, tx, &f); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return r.GetRecord(ctx, id)
}

// DeleteRecord removes the record and returns its files.
func (r *Repository) DeleteRecord(ctx context.Context, id int64) ([]models.File, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	recs := []models.Record{{ID: id}}
	if err := loadFiles(ctx, tx, recs); err != nil {
		return nil, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return recs[0].Files, nil
}

// AddActivities tags the record, skipping existing tags, and returns the added ones.
func (r *Repository) AddActivities(ctx context.Context, recordID int64, activityIDs []int64) ([]models.ActivityTag, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := requireRecord(ctx, tx, recordID); err != nil {
		return nil, err
	}
	tags, err := insertTags(ctx, tx, recordID, activityIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return tags, nil
}

// AddFile stores a file row for an existing record.
func (r *Repository) AddFile(ctx context.Context, f *models.File) error {
	if err := requireRecord(ctx, r.pool, f.RecordID); err != nil {
		return err
	}
	return insertFile(ctx, r.pool, f)
}

func requireRecord(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM records WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: check record: %w", err)
	}
	return nil
}

func insertTags(ctx context.Context, q querier, recordID int64, activityIDs []int64) ([]models.ActivityTag, error) {
	out := make([]models.ActivityTag, 0, len(activityIDs))
	for _, aid := range activityIDs {
		tag, err := q.Exec(ctx, `
			INSERT INTO activity_records (record_id, activity_id) VALUES ($1, $2)
			ON CONFLICT (record_id, activity_id) DO NOTHING
		`, recordID, aid)
		if err != nil {
			return nil, fmt.Errorf("postgres: insert tag: %w", err)
		}
		if tag.RowsAffected() > 0 {
			out = append(out, models.ActivityTag{RecordID: recordID, ActivityID: aid})
		}
	}
	return out, nil
}

func insertFile(ctx context.Context, q querier, f *models.File) error {
	err := q.QueryRow(ctx, `
		INSERT INTO files (record_id, user_id, fname, type, url, fkey, size, duration, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, f.RecordID, f.UserID, f.Name, f.Type, f.URL, f.Key, f.Size, f.Duration, f.Checksum).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("postgres: insert file: %w", err)
	}
	return nil
}

func recordIDs(recs []models.Record) ([]int64, map[int64]int) {
	ids := make([]int64, len(recs))
	pos := make(map[int64]int, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		pos[rec.ID] = i
	}
	return ids, pos
}

func loadActivities(ctx context.Context, q querier, recs []models.Record) error {
	ids, pos := recordIDs(recs)
	for i := range recs {
		recs[i].ActivityIDs = []int64{}
	}
	rows, err := q.Query(ctx, `
		SELECT record_id, activity_id
		FROM activity_records
		WHERE record_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load activities: %w", err)
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
}

func loadFiles(ctx context.Context, q querier, recs []models.Record) error {
	ids, pos := recordIDs(recs)
	rows, err := q.Query(ctx, `
		SELECT id, record_id, user_id, fname, type, url, fkey, size, duration, checksum
		FROM files
		WHERE record_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.RecordID, &f.UserID, &f.Name, &f.Type, &f.URL, &f.Key, &f.Size, &f.Duration, &f.Checksum); err != nil {
			return err
		}
		i := pos[f.RecordID]
		recs[i].Files = append(recs[i].Files, f)
	}
	return rows.Err()
}

// FindRecords returns the user's records dated inside [q.From, q.To), newest first.
func (r *Repository) FindRecords(ctx context.Context, q models.RecordQuery) ([]models.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date DESC, id DESC
	`, q.UserID, q.From.UTC(), q.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: find records: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if q.IncludeActivities {
		if err := loadActivities(ctx, r.pool, recs); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// ActivityIDsForUser returns every activity id the user has ever tagged, ascending.
func (r *Repository) ActivityIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ar.activity_id
		FROM activity_records ar
		JOIN records rec ON rec.id = ar.record_id
		WHERE rec.user_id = $1
		ORDER BY ar.activity_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: user activities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("postgres: user activities: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ActivityNames returns the catalog names of ids. Unknown ids are absent.
func (r *Repository) ActivityNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM activities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: activity names: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out[a.ID] = a.Name
	}
	return out, rows.Err()
}

// UpsertActivity creates or renames a catalog activity.
func (r *Repository) UpsertActivity(ctx context.Context, a models.Activity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activities (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, a.ID, a.Name)
	if err != nil {
		return fmt.Errorf("postgres: upsert activity: %w", err)
	}
	return nil
}

// ListActivities returns the catalog ordered by id.
func (r *Repository) ListActivities(ctx context.Context) ([]models.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM activities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activities: %w", err)
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

// Search matches query against the user's titles and contents, case-insensitively.
func (r *Repository) Search(ctx context.Context, userID int64, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, left(content, 200), date
		FROM records
		WHERE user_id = $1 AND (title ILIKE $2 OR content ILIKE $2)
		ORDER BY date DESC
		LIMIT $3
	`, userID, like, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()
	out := make([]models.SearchHit, 0)
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.RecordID, &h.Title, &h.Snippet, &h.Date); err != nil {
			return nil, err
		}
		h.Date = h.Date.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// FileKeys returns the blob key of every file row.
func (r *Repository) FileKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT fkey FROM files WHERE fkey <> ''`)
	if err != nil {
		return nil, fmt.Errorf("postgres: file keys: %w", err)
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

// DeleteFilesByKey removes the file rows pointing at blob key.
func (r *Repository) DeleteFilesByKey(ctx context.Context, key string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE fkey = $1`, key)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete files: %w", err)
	}
	return tag.RowsAffected(), nil
}
