package cmd

import (
	"fmt"
	"strconv"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vibecheck/chatsync/internal/engine"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <conversation-id> <file>",
	Short: "Attach a file to a conversation",
	Long: `upload runs the three-step attachment flow: it asks the backend for a
presigned upload descriptor, transfers the file bytes directly to storage,
and finalizes a message referencing the new attachment.`,
	Args: cobra.ExactArgs(2),
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

		msg, err := e.Uploader().UploadFile(cmd.Context(), afero.NewOsFs(), args[1], conversationID)
		if err != nil {
			return err
		}

		fmt.Printf("sent #%d with %d attachment(s)\n", msg.ID, len(msg.Attachments))
		for _, a := range msg.Attachments {
			fmt.Printf("  %s %s\n", a.Kind, a.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
