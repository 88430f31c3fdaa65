package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursetrack/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestCSVStoreRoundTrip(t *testing.T) {
	testutil.SetupTest(t)

	path := filepath.Join(t.TempDir(), "details.csv")
	st, err := OpenCSV(path)
	require.NoError(t, err)

	rows, err := st.Load()
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, st.Append(Record{Link: "https://x.test/a", Title: "A", Time: "2 hours"}))
	require.NoError(t, st.Append(Record{Link: "https://x.test/b", Title: "B, with comma", Time: "45 mins"}))
	require.NoError(t, st.Flush())

	// staged rows only hit disk on Flush
	require.NoError(t, st.Append(Record{Link: "https://x.test/c", Title: "C", Time: "1 hour"}))
	onDisk, err := OpenCSV(path)
	require.NoError(t, err)
	rows, err = onDisk.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, st.Flush())
	reopened, err := OpenCSV(path)
	require.NoError(t, err)
	rows, err = reopened.Load()
	require.NoError(t, err)
	require.Equal(t, []Record{
		{Link: "https://x.test/a", Title: "A", Time: "2 hours"},
		{Link: "https://x.test/b", Title: "B, with comma", Time: "45 mins"},
		{Link: "https://x.test/c", Title: "C", Time: "1 hour"},
	}, rows)

	// exactly one header even after multiple flushes
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(raw), Header[0]))
}

func TestCSVStoreDuplicate(t *testing.T) {
	testutil.SetupTest(t)

	st, err := OpenCSV(filepath.Join(t.TempDir(), "details.csv"))
	require.NoError(t, err)
	require.NoError(t, st.Append(Record{Link: "https://x.test/a", Title: "A", Time: "2 hours"}))
	require.ErrorIs(t, st.Append(Record{Link: "https://x.test/a", Title: "A again", Time: "3 hours"}), ErrDuplicate)
	require.NoError(t, st.Flush())
	require.ErrorIs(t, st.Append(Record{Link: "https://x.test/a", Title: "A once more", Time: "4 hours"}), ErrDuplicate)
}

func TestCSVStoreLoadSkipsBadRows(t *testing.T) {
	testutil.SetupTest(t)

	path := filepath.Join(t.TempDir(), "details.csv")
	raw := strings.Join([]string{
		"Course Link,Course Title,Course Time",
		"https://x.test/a,A,2 hours",
		"https://x.test/short,only two fields",
		"https://x.test/a,duplicate of A,9 hours",
		"https://x.test/b,B,45 mins",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	st, err := OpenCSV(path)
	require.NoError(t, err)
	rows, err := st.Load()
	require.NoError(t, err)
	require.Equal(t, []Record{
		{Link: "https://x.test/a", Title: "A", Time: "2 hours"},
		{Link: "https://x.test/b", Title: "B", Time: "45 mins"},
	}, rows)
}

func TestCSVStoreReplace(t *testing.T) {
	testutil.SetupTest(t)

	path := filepath.Join(t.TempDir(), "details.csv")
	st, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, st.Append(Record{Link: "https://x.test/a", Title: "A", Time: "2 hours"}))
	require.NoError(t, st.Append(Record{Link: "https://x.test/b", Title: "B", Time: "45 mins"}))
	require.NoError(t, st.Flush())

	require.NoError(t, st.Replace([]Record{{Link: "https://x.test/a", Title: "A", Time: "120"}}))

	// dropped links are appendable again
	require.NoError(t, st.Append(Record{Link: "https://x.test/b", Title: "B", Time: "45"}))
	require.NoError(t, st.Flush())

	reopened, err := OpenCSV(path)
	require.NoError(t, err)
	rows, err := reopened.Load()
	require.NoError(t, err)
	require.Equal(t, []Record{
		{Link: "https://x.test/a", Title: "A", Time: "120"},
		{Link: "https://x.test/b", Title: "B", Time: "45"},
	}, rows)
}

func TestFileIgnoredSet(t *testing.T) {
	testutil.SetupTest(t)

	path := filepath.Join(t.TempDir(), "ignored.txt")
	ignored, err := OpenIgnored(path)
	require.NoError(t, err)
	require.False(t, ignored.Contains("https://x.test/quiz"))

	require.NoError(t, ignored.Add("https://x.test/quiz"))
	require.NoError(t, ignored.Add("https://x.test/exam"))
	require.True(t, ignored.Contains("https://x.test/quiz"))

	reopened, err := OpenIgnored(path)
	require.NoError(t, err)
	require.True(t, reopened.Contains("https://x.test/quiz"))
	require.True(t, reopened.Contains("https://x.test/exam"))
	require.False(t, reopened.Contains("https://x.test/other"))
}
