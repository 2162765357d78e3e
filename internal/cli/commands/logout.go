package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lvyanru/chatctl/internal/cli/config"
	"github.com/lvyanru/chatctl/internal/cli/ui"
)

// logoutCmd is the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "discard the saved authentication token",
	Long: `Remove the stored access token from ~/.chatctl/config.yaml.

The server address and other settings are kept.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func init() {
	logoutCmd.SilenceUsage = true
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	if !cfg.IsAuthenticated() {
		ui.PrintInfo("not logged in")
		return nil
	}

	username := cfg.Username
	cfg.AccessToken = ""
	cfg.Username = ""
	cfg.UserID = ""

	if err := cfg.Save(); err != nil {
		ui.PrintError("failed to save config: %v", err)
		return fmt.Errorf("config save failed")
	}

	if username != "" {
		ui.PrintSuccess("logged out %s", username)
	} else {
		ui.PrintSuccess("logged out")
	}
	return nil
}
