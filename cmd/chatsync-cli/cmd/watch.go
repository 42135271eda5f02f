package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/vibecheck/chatsync/internal/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Follow a conversation live",
	Long: `watch opens a conversation view: it prints the history, then streams
push-delivered messages, typing indicators and presence changes until
interrupted. The push connection is opened once and not retried; if it
drops, watch exits.`,
	Args: cobra.ExactArgs(1),
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

		changed := make(chan struct{}, 1)
		view, err := e.OpenView(cmd.Context(), conversationID,
			engine.WithChangeNotify(func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			}))
		if err != nil {
			return err
		}
		defer view.Close()

		printed := 0
		flush := func() {
			msgs := view.Messages()
			for _, m := range msgs[printed:] {
				printMessage(m)
			}
			printed = len(msgs)

			if users := view.TypingUsers(); len(users) > 0 {
				ids := make([]string, len(users))
				for i, id := range users {
					ids[i] = strconv.FormatInt(id, 10)
				}
				fmt.Printf("  typing: %s\n", strings.Join(ids, ", "))
			}
		}
		flush()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-changed:
				flush()
			case <-view.Done():
				fmt.Fprintln(os.Stderr, "push connection closed")
				return nil
			case <-interrupt:
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
