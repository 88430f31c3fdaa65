package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, "cookies.json", cfg.CookieFile)
	require.Equal(t, "state.db", cfg.StateDb)
	require.Equal(t, "courses_details.csv", cfg.Output)
	require.Equal(t, "course_list.json", cfg.ListCache)
	require.Equal(t, "ignored_courses.txt", cfg.IgnoredFile)

	cfg = Config{Output: "from-config.csv"}.withDefaults()
	require.Equal(t, "from-config.csv", cfg.Output)
}

func TestConfigFlagOverrides(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Set("db", "override.db"))
	require.NoError(t, flags.Set("out", "override.csv"))
	require.NoError(t, flags.Set("cookies", "override.json"))
	t.Cleanup(func() {
		flags.Set("db", "")
		flags.Set("out", "")
		flags.Set("cookies", "")
	})

	cfg := Config{Output: "from-config.csv"}.withDefaults().withFlagOverrides()
	require.Equal(t, "override.db", cfg.StateDb)
	require.Equal(t, "override.csv", cfg.Output)
	require.Equal(t, "override.json", cfg.CookieFile)
}
