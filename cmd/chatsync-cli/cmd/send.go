package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/engine"
)

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text...>",
	Short: "Send a message to a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
		}
		body := strings.Join(args[1:], " ")

		injector := newInjector()
		defer injector.Shutdown()

		e, err := do.Invoke[*engine.Engine](injector)
		if err != nil {
			return err
		}
		defer e.Close()

		msg, err := e.SendMessage(cmd.Context(), conversationID, body)
		if err != nil {
			return err
		}
		fmt.Printf("sent #%d\n", msg.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

// printMessage renders one message line, shared by messages and watch.
func printMessage(m domain.Message) {
	ts := m.CreatedAt.Local().Format("15:04:05")
	fmt.Printf("[%s] user %d: %s", ts, m.SenderID, m.Body)
	for _, a := range m.Attachments {
		fmt.Printf(" <%s %s>", a.Kind, a.URL)
	}
	fmt.Println()
}
