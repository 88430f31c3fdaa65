package commands

import (
	"github.com/spf13/cobra"
)

var loginForce *bool

func init() {
	loginForce = loginCmd.Flags().Bool("force", false, "Ignore saved cookies and login from scratch.")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login [--force]",
	Short: "Establishes an authenticated session and refreshes the cookie jar.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		requireCredentials(cfg)

		session := newSession()
		login(cmd.Context(), session, cfg, *loginForce)
	},
}
