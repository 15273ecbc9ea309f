package webtoon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webtoonhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	AuthorID string // required by the HTTP layer, empty lists everyone
	Q        string // title search
	Status   string
	Tag      string
	Limit    int
	Offset   int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const webtoonColumns = `id, title, url, status, tags, image, author_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebtoon(row rowScanner) (*models.Webtoon, error) {
	var (
		w        models.Webtoon
		url      sql.NullString
		status   sql.NullString
		tagsJSON string
		image    sql.NullString
	)
	if err := row.Scan(&w.ID, &w.Title, &url, &status, &tagsJSON, &image, &w.AuthorID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.URL = url.String
	w.Status = status.String
	w.Image = image.String
	_ = json.Unmarshal([]byte(tagsJSON), &w.Tags)
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return &w, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

// Create inserts w. Zero timestamps are set to now.
func (r *Repo) Create(ctx context.Context, w models.Webtoon) error {
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = w.CreatedAt
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO webtoons (`+webtoonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.Title, nullable(w.URL), nullable(w.Status), encodeTags(w.Tags), nullable(w.Image),
		w.AuthorID, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create webtoon: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*models.Webtoon, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+webtoonColumns+` FROM webtoons WHERE id = ?`, id)
	w, err := scanWebtoon(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get webtoon: %w", err)
	}
	return w, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count webtoons: %w", err)
	}
	return total, nil
}

// List returns webtoons newest first.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Webtoon, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list webtoons: %w", err)
	}
	defer rows.Close()

	out := make([]models.Webtoon, 0)
	for rows.Next() {
		w, err := scanWebtoon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webtoon: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ListByAuthor returns all of a user's webtoons, newest first.
func (r *Repo) ListByAuthor(ctx context.Context, authorID string) ([]models.Webtoon, error) {
	return r.List(ctx, ListQuery{AuthorID: authorID, Limit: -1})
}

// buildListSQL builds either COUNT(*) or the SELECT list. A negative
// limit means no limit.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	base := `SELECT ` + webtoonColumns + ` FROM webtoons`
	if countOnly {
		base = `SELECT COUNT(*) FROM webtoons`
	}

	var (
		where []string
		args  []any
	)
	if q.AuthorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, q.AuthorID)
	}
	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	if s := strings.TrimSpace(q.Status); s != "" {
		where = append(where, "status = ?")
		args = append(args, s)
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		// tags are a JSON array; match the quoted element
		b, _ := json.Marshal(tag)
		where = append(where, "tags LIKE ?")
		args = append(args, "%"+string(b)+"%")
	}

	sqlStr := base
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	if countOnly {
		return sqlStr, args
	}

	sqlStr += " ORDER BY created_at DESC, rowid DESC"
	if q.Limit >= 0 {
		limit := q.Limit
		if limit == 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		sqlStr += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return sqlStr, args
}

// Update applies the non-nil fields of p and bumps updated_at.
func (r *Repo) Update(ctx context.Context, id string, p models.WebtoonPatch) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, nullable(*p.URL))
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, nullable(*p.Status))
	}
	if p.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, encodeTags(p.Tags))
	}
	if p.Image != nil {
		sets = append(sets, "image = ?")
		args = append(args, nullable(*p.Image))
	}

	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE webtoons SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update webtoon: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM webtoons WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete webtoon: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM webtoons WHERE author_id = ?`, authorID)
	if err != nil {
		return 0, fmt.Errorf("delete author webtoons: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StatusCounts groups a user's webtoons by status. Rows without a status
// are counted under "".
func (r *Repo) StatusCounts(ctx context.Context, authorID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT COALESCE(status, ''), COUNT(*)
		FROM webtoons
		WHERE author_id = ?
		GROUP BY COALESCE(status, '')
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
