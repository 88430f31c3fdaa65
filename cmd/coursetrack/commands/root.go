package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"coursetrack/lib/configutil"
	"coursetrack/lib/restyutil"
	"coursetrack/lib/scrapers/udemy/core"
	"coursetrack/lib/serviceutil"
	"coursetrack/lib/telemetry"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coursetrack",
	Short: "coursetrack pulls a Udemy account's course list into a local table of durations.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		_, err := telemetry.SetupFromEnv(cmd.Context(), "coursetrack")
		if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		}
		if *verbose {
			telemetry.InstrumentPerfStats(cmd.Context())
			core.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/coursetrack"))
		}
	},
}

var (
	configPath *string
	verbose    *bool

	dbPath     *string
	outPath    *string
	cookiePath *string
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the credentials/config file.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging and request dumps.")

	dbPath = rootCmd.PersistentFlags().String("db", "", "Path to the state database, overrides state_db from the config.")
	outPath = rootCmd.PersistentFlags().String("out", "", "Path to the output csv, overrides output from the config.")
	cookiePath = rootCmd.PersistentFlags().String("cookies", "", "Path to the cookie jar, overrides cookie_file from the config.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountName string `json:"account_name"`
	ForceLogin  bool   `json:"force_login"`

	CookieFile  string `json:"cookie_file"`
	StateDb     string `json:"state_db"`
	Output      string `json:"output"`
	ListCache   string `json:"list_cache"`
	IgnoredFile string `json:"ignored_file"`
}

func (c Config) withDefaults() Config {
	if c.CookieFile == "" {
		c.CookieFile = "cookies.json"
	}
	if c.StateDb == "" {
		c.StateDb = "state.db"
	}
	if c.Output == "" {
		c.Output = "courses_details.csv"
	}
	if c.ListCache == "" {
		c.ListCache = "course_list.json"
	}
	if c.IgnoredFile == "" {
		c.IgnoredFile = "ignored_courses.txt"
	}
	return c
}

// flags beat config file values beat defaults
func (c Config) withFlagOverrides() Config {
	if *dbPath != "" {
		c.StateDb = *dbPath
	}
	if *outPath != "" {
		c.Output = *outPath
	}
	if *cookiePath != "" {
		c.CookieFile = *cookiePath
	}
	return c
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg.withDefaults().withFlagOverrides()
}

// fails before any network activity happens
func requireCredentials(cfg Config) {
	if cfg.Email == "" || cfg.Password == "" || cfg.AccountName == "" {
		serviceutil.Fatal(
			"incomplete credentials",
			fmt.Errorf("email, password and account_name must all be set in %s", *configPath),
		)
	}
}

func newSession() *core.Client {
	session, err := core.NewClient(core.ClientOptions{})
	if err != nil {
		serviceutil.Fatal("failed to initialize session", err)
	}
	return session
}

func login(ctx context.Context, session *core.Client, cfg Config, force bool) {
	auth := core.Authenticator{
		Session: session,
		Cookies: core.FileCookieStore{Path: cfg.CookieFile},
		Codes:   &core.StdinCodeSource{},
	}
	creds := core.Credentials{
		Email:       cfg.Email,
		Password:    cfg.Password,
		AccountName: cfg.AccountName,
	}
	err := auth.Login(ctx, creds, force || cfg.ForceLogin)
	if err != nil {
		serviceutil.Fatal("login unsuccessful", err)
	}
	slog.Info("logged in successfully", "account", cfg.AccountName)
}
