package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bodhini-dev/mediadmin/internal/cli/commands"
	"github.com/bodhini-dev/mediadmin/internal/cli/notify"
	"github.com/bodhini-dev/mediadmin/internal/logger"
)

var version = "dev" // Will be set during build

var debug bool

var rootCmd = &cobra.Command{
	Use:   "mediadmin",
	Short: "mediadmin - Staff console for a media library",
	Long: `mediadmin CLI - Manage the media library of a mediad server.

Log in as an administrator, then list, upload and delete image, audio and
video items. Sessions are kept in the OS keychain per server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			commands.SetLogger(logger.New("console", os.Stderr).Level(zerolog.DebugLevel))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log HTTP requests and session changes to stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mediadmin version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewSetupCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewUploadCmd())
	rootCmd.AddCommand(commands.NewDeleteCmd())
}

// Execute runs the root command. Errors are printed as notifications.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		notify.New(os.Stderr).Failure(err)
		return err
	}
	return nil
}
