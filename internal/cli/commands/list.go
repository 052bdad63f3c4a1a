package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bodhini-dev/mediadmin/internal/cli/media"
	"github.com/bodhini-dev/mediadmin/internal/cli/notify"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
)

// Output formats for ls
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var serverAlias, output string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all media items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), output, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	return cmd
}

func runList(ctx context.Context, output string, opts ...Option) error {
	switch output {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("invalid output format '%s', must be one of: table, json, yaml", output)
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := rt.sessions.RequireAdmin(); err != nil {
		return err
	}

	return listMedia(ctx, rt, output)
}

func listMedia(ctx context.Context, rt *runtime, output string) error {
	items, err := rt.media.List(ctx)
	if err != nil {
		return err
	}

	switch output {
	case outputJSON:
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode media: %w", err)
		}
		fmt.Fprintln(rt.out, string(data))
		return nil
	case outputYAML:
		return yaml.NewEncoder(rt.out).Encode(items)
	}

	if len(items) == 0 {
		rt.notifier.Info(notify.MsgNoMedia)
		return nil
	}

	fmt.Fprintf(rt.out, "Media on %s (%s):\n\n", rt.server.Alias, rt.server.URL)
	printMediaTable(rt.out, items)
	return nil
}

func printMediaTable(out io.Writer, items []media.Item) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tDESCRIPTION\tFILE")
	fmt.Fprintln(w, "──\t─────\t────\t───────────\t────")

	for _, item := range items {
		description := item.Description
		if description == "" {
			description = "-"
		}
		file := item.File
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			item.Title,
			item.MediaType,
			truncate(description, 40),
			file,
		)
	}

	w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session for a server and its media",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")

	return cmd
}

func runStatus(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(rt.out, "Server: %s (%s)\n", rt.server.Alias, rt.server.URL)

	switch rt.sessions.State() {
	case session.StateAuthenticated:
		rt.notifier.Success(notify.MsgWelcomeBack)
		return listMedia(ctx, rt, outputTable)
	case session.StateForbidden:
		return rt.sessions.RequireAdmin()
	default:
		rt.notifier.Info("Not logged in. Run 'mediadmin login' to manage media.")
		return nil
	}
}
