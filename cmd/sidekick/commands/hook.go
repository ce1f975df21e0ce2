package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidekick-ai/sidekick/internal/handler"
	"github.com/sidekick-ai/sidekick/internal/logging"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Process one hook event from stdin",
	Long: `Reads a single JSON hook payload from stdin, queries live editor
instances for the current directory, and writes the decision to stdout.

Wire it into the agent's hook configuration for PreToolUse, PostToolUse
and UserPromptSubmit events.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		// stdout carries the response payload; logs go to a file.
		logging.InitFile(cfg.ResolvedLogFile(), logging.ParseLevel(cfg.LogLevel))

		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read hook input: %w", err)
		}

		h := handler.New(cfg)
		out, err := h.Handle(context.Background(), input)
		if err != nil {
			// The only fatal condition: a payload we cannot decode. Better
			// an explicit failure than a guessed decision.
			logging.Error().Err(err).Msg("unprocessable hook payload")
			return err
		}

		payload, err := out.Encode()
		if err != nil {
			return fmt.Errorf("encode hook output: %w", err)
		}
		_, err = os.Stdout.Write(payload)
		return err
	},
}
