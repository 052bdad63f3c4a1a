package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/notify"
)

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), args[0], WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")

	return cmd
}

func runDelete(ctx context.Context, id string, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := rt.sessions.RequireAdmin(); err != nil {
		return err
	}

	if err := rt.media.Delete(ctx, client.ItemID(id)); err != nil {
		return err
	}

	rt.notifier.Success(notify.MsgMediaDeleted)
	return nil
}
