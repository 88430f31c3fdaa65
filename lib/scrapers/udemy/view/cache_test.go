package view

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	viewdb "coursetrack/lib/scrapers/udemy/view/db"
	"coursetrack/lib/testutil"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

func TestSqlitePageCache(t *testing.T) {
	db := testutil.SetupDB(t, viewdb.Schema)
	cache := NewPageCache(db)
	ctx := context.Background()

	slug, err := random.String(12)
	require.NoError(t, err)
	link := fmt.Sprintf("https://www.udemy.com/course/%s/", slug)

	_, err = cache.Get(ctx, link)
	require.ErrorIs(t, err, ErrNotCached)

	body := []byte(`<html><body>first</body></html>`)
	require.NoError(t, cache.Set(ctx, link, body))
	got, err := cache.Get(ctx, link)
	require.NoError(t, err)
	require.Equal(t, body, got)

	// refreshing an entry overwrites in place
	body2 := []byte(`<html><body>second</body></html>`)
	require.NoError(t, cache.Set(ctx, link, body2))
	got, err = cache.Get(ctx, link)
	require.NoError(t, err)
	require.Equal(t, body2, got)

	_, err = cache.Get(ctx, link+"other")
	require.ErrorIs(t, err, ErrNotCached)
}

func TestFileListCache(t *testing.T) {
	testutil.SetupTest(t)

	cache := FileListCache{Path: filepath.Join(t.TempDir(), "course_list.json")}

	_, err := cache.Load()
	require.ErrorIs(t, err, ErrNotCached)

	list := CourseList{
		PagesCount: 3,
		Urls: []string{
			"https://www.udemy.com/course/a/",
			"https://www.udemy.com/course/b/",
		},
	}
	require.NoError(t, cache.Save(list))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.Equal(t, list, loaded)
}
