package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/vibecheck/chatsync/internal/engine"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List the conversations you are a member of",
	RunE: func(cmd *cobra.Command, args []string) error {
		injector := newInjector()
		defer injector.Shutdown()

		e, err := do.Invoke[*engine.Engine](injector)
		if err != nil {
			return err
		}
		defer e.Close()

		conversations, err := e.API().ListConversations(cmd.Context())
		if err != nil {
			return err
		}

		if len(conversations) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, c := range conversations {
			title := c.Title
			if title == "" {
				title = fmt.Sprintf("(%s)", c.Type)
			}
			members := make([]string, len(c.MemberUserIDs))
			for i, id := range c.MemberUserIDs {
				members[i] = fmt.Sprintf("%d", id)
			}
			fmt.Printf("#%d  %s  members: %s\n", c.ID, title, strings.Join(members, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}
