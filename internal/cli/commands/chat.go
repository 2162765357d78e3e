package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lvyanru/chatctl/internal/cli/client"
	"github.com/lvyanru/chatctl/internal/cli/config"
	"github.com/lvyanru/chatctl/internal/cli/tui"
	"github.com/lvyanru/chatctl/internal/cli/ui"
	"github.com/lvyanru/chatctl/pkg/logger"
)

var chatModelFlag string

// chatCmd is the interactive chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "start an interactive chat session",
	Long: `Start an interactive chat session in the terminal.

Answers stream in as they are generated, with citations listed below each
one. Conversation context carries across turns within the session.`,
	Example: `  # Start interactive chat
  $ chatctl chat

  # Keyboard controls:
  • Enter sends the message
  • Esc quits the session`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModelFlag, "model", "m", "", "Model selector (defaults to configured model)")
	chatCmd.SilenceUsage = true
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	if !cfg.IsAuthenticated() {
		ui.PrintError("not authenticated, please login first")
		fmt.Println("\nRun 'chatctl login' to authenticate.")
		return fmt.Errorf("authentication required")
	}

	log, err := logger.Setup(cfg.Log)
	if err != nil {
		ui.PrintError("failed to set up logging: %v", err)
		return fmt.Errorf("logger setup failed")
	}

	apiClient, err := client.NewAPIClient(cfg.Server, cfg.AccessToken, log)
	if err != nil {
		ui.PrintError("failed to create client: %v", err)
		return fmt.Errorf("client creation failed")
	}

	model := cfg.Model
	if chatModelFlag != "" {
		model = chatModelFlag
	}

	conversationID := uuid.New().String()
	program := tui.NewChatProgram(apiClient, conversationID, model)
	if err := program.Run(); err != nil {
		return fmt.Errorf("failed to run chat TUI: %w", err)
	}

	return nil
}
