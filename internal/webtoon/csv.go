package webtoon

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"webtoonhub/pkg/models"
)

var csvHeader = []string{"id", "title", "url", "status", "tags", "image", "author_id", "created_at", "updated_at"}

// tags are joined with | inside a single column
const tagSep = "|"

// WriteCSV writes a header row followed by one row per webtoon.
func WriteCSV(out io.Writer, items []models.Webtoon) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range items {
		if err := w.Write([]string{
			it.ID,
			it.Title,
			it.URL,
			it.Status,
			strings.Join(it.Tags, tagSep),
			it.Image,
			it.AuthorID,
			formatTime(it.CreatedAt),
			formatTime(it.UpdatedAt),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV parses rows written by WriteCSV. Columns are matched by header
// name, so extra or reordered columns are fine; title is required.
func ReadCSV(in io.Reader) ([]models.Webtoon, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if _, ok := header["title"]; !ok {
		return nil, errors.New("csv: missing title column")
	}

	var out []models.Webtoon
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		w := models.Webtoon{
			ID:       valueAt(header, row, "id"),
			Title:    valueAt(header, row, "title"),
			URL:      valueAt(header, row, "url"),
			Status:   valueAt(header, row, "status"),
			Image:    valueAt(header, row, "image"),
			AuthorID: valueAt(header, row, "author_id"),
			Tags:     splitTags(valueAt(header, row, "tags")),
		}
		if w.Title == "" {
			return nil, fmt.Errorf("csv line %d: title required", line)
		}
		if w.Status != "" {
			if w.Status = normalizeStatus(w.Status); w.Status == "" {
				return nil, fmt.Errorf("csv line %d: unknown status", line)
			}
		}
		if w.CreatedAt, err = parseTime(valueAt(header, row, "created_at")); err != nil {
			return nil, fmt.Errorf("csv line %d: created_at: %w", line, err)
		}
		if w.UpdatedAt, err = parseTime(valueAt(header, row, "updated_at")); err != nil {
			return nil, fmt.Errorf("csv line %d: updated_at: %w", line, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return normalizeTags(strings.Split(raw, tagSep))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// Import upserts items by id. A non-empty authorID reassigns every row;
// rows without an id get a fresh one.
func (r *Repo) Import(ctx context.Context, items []models.Webtoon, authorID string) (created, updated int, err error) {
	for _, w := range items {
		if authorID != "" {
			w.AuthorID = authorID
		}
		if w.AuthorID == "" {
			return created, updated, fmt.Errorf("import %q: no author", w.Title)
		}
		if w.ID == "" {
			w.ID = uuid.NewString()
		}

		existing, err := r.Get(ctx, w.ID)
		if err != nil {
			return created, updated, err
		}
		if existing == nil {
			if err := r.Create(ctx, w); err != nil {
				return created, updated, err
			}
			created++
			continue
		}
		if existing.AuthorID != w.AuthorID {
			return created, updated, fmt.Errorf("import %s: owned by another user", w.ID)
		}

		tags := w.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := r.Update(ctx, w.ID, models.WebtoonPatch{
			Title:  &w.Title,
			URL:    &w.URL,
			Status: &w.Status,
			Tags:   tags,
			Image:  &w.Image,
		}); err != nil {
			return created, updated, err
		}
		updated++
	}
	return created, updated, nil
}
