package webtoon

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtoonhub/pkg/database"
	"webtoonhub/pkg/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, clerk_id, email, name) VALUES (?, ?, ?, ?)`,
		id, "clerk_"+id, id+"@example.com", "User "+id)
	require.NoError(t, err)
}

func TestRepoCreateGetList(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")
	repo := NewRepo(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, models.Webtoon{ID: "w1", Title: "Tower of God", Status: "reading", Tags: []string{"Fantasy", "Action"}, AuthorID: "u1", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, models.Webtoon{ID: "w2", Title: "Lore Olympus", Status: "completed", Tags: []string{"Romance"}, AuthorID: "u1", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, models.Webtoon{ID: "w3", Title: "Unordinary", AuthorID: "u2", CreatedAt: base.Add(2 * time.Hour)}))

	w, err := repo.Get(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, []string{"Fantasy", "Action"}, w.Tags)
	assert.Empty(t, w.URL)
	assert.True(t, w.CreatedAt.Equal(base))

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	mine, err := repo.ListByAuthor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "w2", mine[0].ID, "newest first")

	found, err := repo.List(ctx, ListQuery{AuthorID: "u1", Q: "tower"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "w1", found[0].ID)

	tagged, err := repo.List(ctx, ListQuery{AuthorID: "u1", Tag: "Romance"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "w2", tagged[0].ID)

	n, err := repo.Count(ctx, ListQuery{Status: "reading"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := repo.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := repo.List(ctx, ListQuery{AuthorID: "u2", Q: "tower"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRepoUpdateDeleteCounts(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1")
	repo := NewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, models.Webtoon{ID: "w1", Title: "Tower of God", Status: "reading", URL: "https://x.test/tog", AuthorID: "u1"}))
	require.NoError(t, repo.Create(ctx, models.Webtoon{ID: "w2", Title: "Lets Play", Status: "on-hold", AuthorID: "u1"}))
	require.NoError(t, repo.Create(ctx, models.Webtoon{ID: "w3", Title: "Untitled", AuthorID: "u1"}))

	title := "Tower of God S3"
	empty := ""
	ok, err := repo.Update(ctx, "w1", models.WebtoonPatch{Title: &title, URL: &empty, Tags: []string{"fantasy"}})
	require.NoError(t, err)
	assert.True(t, ok)

	w, err := repo.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Tower of God S3", w.Title)
	assert.Empty(t, w.URL)
	assert.Equal(t, "reading", w.Status, "untouched")
	assert.Equal(t, []string{"fantasy"}, w.Tags)
	assert.False(t, w.UpdatedAt.Before(w.CreatedAt))

	ok, err = repo.Update(ctx, "missing", models.WebtoonPatch{Title: &title})
	require.NoError(t, err)
	assert.False(t, ok)

	counts, err := repo.StatusCounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"reading": 1, "on-hold": 1, "": 1}, counts)

	ok, err = repo.Delete(ctx, "w2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Delete(ctx, "w2")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.DeleteByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
