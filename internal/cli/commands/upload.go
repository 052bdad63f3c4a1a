package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bodhini-dev/mediadmin/internal/cli/media"
	"github.com/bodhini-dev/mediadmin/internal/cli/notify"
)

// NewUploadCmd creates the upload command
func NewUploadCmd() *cobra.Command {
	var serverAlias string
	var in uploadInput

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a new media item",
		Long: `Upload a new media item.

The media type (image, audio or video) is detected from the file contents
unless --type is given.

Examples:
  $ mediadmin upload sunset.png --title "Sunset"
  $ mediadmin upload talk.mp3 --title "Keynote" --description "Day one" --type audio`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Path = args[0]
			return runUpload(cmd.Context(), in, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")
	cmd.Flags().StringVar(&in.Title, "title", "", "Title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.MediaType, "type", "", "Media type: image, audio or video (detected when omitted)")

	return cmd
}

type uploadInput struct {
	Path        string
	Title       string
	Description string
	MediaType   string
}

func runUpload(ctx context.Context, in uploadInput, opts ...Option) error {
	var data []byte
	if in.Path != "" {
		var err error
		data, err = os.ReadFile(in.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", in.Path, err)
		}
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := rt.sessions.RequireAdmin(); err != nil {
		return err
	}

	item, err := rt.media.Create(ctx, media.CreateInput{
		Title:       in.Title,
		Description: in.Description,
		MediaType:   in.MediaType,
		Filename:    in.Path,
		File:        data,
	})
	if err != nil {
		return err
	}

	rt.notifier.Success(notify.MsgMediaAdded)
	fmt.Fprintf(rt.out, "  ID:   %s\n", item.ID)
	fmt.Fprintf(rt.out, "  Type: %s\n", item.MediaType)
	if item.File != "" {
		fmt.Fprintf(rt.out, "  File: %s\n", item.File)
	}
	return nil
}
