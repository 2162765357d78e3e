package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lvyanru/chatctl/internal/cli/client"
	"github.com/lvyanru/chatctl/internal/cli/config"
	"github.com/lvyanru/chatctl/internal/cli/loader"
	"github.com/lvyanru/chatctl/internal/cli/ui"
	"github.com/lvyanru/chatctl/internal/stream"
	"github.com/lvyanru/chatctl/pkg/logger"
)

var (
	askTranscriptFile string
	askModel          string
	askConversationID string
)

// askCmd is the one-shot question command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "ask a single question, answer streamed to stdout",
	Long: `Send one question and print the answer as it is generated.

Prior conversation turns can be supplied from a YAML transcript file to give
the question context. Citations, when the server provides them, are listed
after the answer.`,
	Example: `  # Plain question
  $ chatctl ask "what changed in the last release?"

  # With conversation context from a transcript file
  $ chatctl ask -f context.yaml "and before that?"

  # Pin a model
  $ chatctl ask -m fast "summarize yesterday's incidents"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askTranscriptFile, "file", "f", "", "YAML transcript supplying prior turns")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model selector (defaults to configured model)")
	askCmd.Flags().StringVarP(&askConversationID, "conversation", "c", "", "Conversation ID to continue")
	askCmd.SilenceUsage = true
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	req := stream.Request{
		Query:          strings.Join(args, " "),
		ConversationID: askConversationID,
		Model:          cfg.Model,
	}
	if askModel != "" {
		req.Model = askModel
	}

	if askTranscriptFile != "" {
		transcript, err := loader.LoadTranscript(askTranscriptFile)
		if err != nil {
			ui.PrintError("failed to load transcript: %v", err)
			return fmt.Errorf("transcript load failed")
		}
		req.History = transcript.History()
		if req.ConversationID == "" {
			req.ConversationID = transcript.ConversationID
		}
		if askModel == "" && transcript.Model != "" {
			req.Model = transcript.Model
		}
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}

	apiClient, err := client.NewAPIClient(cfg.Server, cfg.AccessToken, log)
	if err != nil {
		ui.PrintError("failed to create client: %v", err)
		return fmt.Errorf("client creation failed")
	}

	return streamAnswer(cmd.Context(), apiClient, req)
}

// streamAnswer runs one request and renders events as they arrive.
func streamAnswer(ctx context.Context, apiClient *client.APIClient, req stream.Request) error {
	session, err := apiClient.OpenChatStream(ctx, req)
	if err != nil {
		switch {
		case stream.IsUnauthenticated(err):
			ui.PrintError("session expired, please login again")
			return fmt.Errorf("authentication required")
		case stream.IsTimeout(err):
			ui.PrintError("request timed out: %v", err)
			return fmt.Errorf("request timed out")
		default:
			ui.PrintError("request failed: %v", err)
			return fmt.Errorf("request failed")
		}
	}
	defer session.Close()

	var sources []stream.Source
	for {
		ev, err := session.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Println()
			ui.PrintError("stream failed: %v", err)
			return fmt.Errorf("stream failed")
		}

		switch ev.Kind {
		case stream.EventToken:
			fmt.Print(ev.Content)

		case stream.EventSources:
			sources = append(sources, ev.Sources...)

		case stream.EventDone:
			fmt.Println()
			ui.PrintSources(sources)
			return nil

		case stream.EventError:
			fmt.Println()
			ui.PrintError("%s", ev.Message)
			return fmt.Errorf("chat failed")

		case stream.EventTruncated:
			fmt.Println()
			ui.PrintSources(sources)
			ui.PrintWarning("connection closed before the answer completed")
			return fmt.Errorf("response truncated")
		}
	}
}
