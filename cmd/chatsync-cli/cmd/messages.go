package cmd

import (
	"fmt"
	"strconv"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/vibecheck/chatsync/internal/engine"
)

var messagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Print a conversation's message history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
		}

		injector := newInjector()
		defer injector.Shutdown()

		e, err := do.Invoke[*engine.Engine](injector)
		if err != nil {
			return err
		}
		defer e.Close()

		messages, err := e.API().ListMessages(cmd.Context(), conversationID)
		if err != nil {
			return err
		}

		for _, m := range messages {
			printMessage(m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(messagesCmd)
}
