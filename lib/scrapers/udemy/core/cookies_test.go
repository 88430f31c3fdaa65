package core

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"coursetrack/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestFileCookieStoreRoundTrip(t *testing.T) {
	testutil.SetupTest(t)

	store := FileCookieStore{Path: filepath.Join(t.TempDir(), "cookies.json")}

	_, err := store.Load()
	require.True(t, os.IsNotExist(err))

	cookies := []*http.Cookie{
		{Name: "dj_session", Value: "abc123", Path: "/", Domain: "www.udemy.com"},
		{Name: "csrftoken", Value: "tok-1"},
	}
	require.NoError(t, store.Save(cookies))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "dj_session", loaded[0].Name)
	require.Equal(t, "abc123", loaded[0].Value)
	require.Equal(t, "www.udemy.com", loaded[0].Domain)

	// a second save replaces the jar wholesale
	require.NoError(t, store.Save(cookies[:1]))
	loaded, err = store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}
