package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bodhini-dev/mediadmin/internal/cli/notify"
	"github.com/bodhini-dev/mediadmin/internal/cli/userconfig"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var serverAlias, username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a media server as an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), loginInput{Username: username, Password: password}, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")
	cmd.Flags().StringVar(&username, "username", "", "Username (or set MEDIADMIN_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set MEDIADMIN_PASSWORD, will prompt if not provided)")

	return cmd
}

type loginInput struct {
	Username string
	Password string
}

func runLogin(ctx context.Context, in loginInput, opts ...Option) error {
	// Environment variables are useful for CI
	if in.Username == "" {
		in.Username = os.Getenv("MEDIADMIN_USERNAME")
	}
	if in.Password == "" {
		in.Password = os.Getenv("MEDIADMIN_PASSWORD")
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if in.Username == "" {
		in.Username, err = rt.prompter.Text("Username", userconfig.LastUsername(rt.server.URL))
		if err != nil {
			if errors.Is(err, errNotInteractive) {
				return fmt.Errorf("username is required in non-interactive mode (use --username flag or MEDIADMIN_USERNAME env var)")
			}
			return err
		}
	}
	if in.Password == "" {
		in.Password, err = rt.prompter.Secret("Password")
		if err != nil {
			if errors.Is(err, errNotInteractive) {
				return fmt.Errorf("password is required in non-interactive mode (use --password flag or MEDIADMIN_PASSWORD env var)")
			}
			return err
		}
	}

	fmt.Fprintf(rt.out, "Logging in to %s (%s)...\n", rt.server.Alias, rt.server.URL)

	sess, err := rt.sessions.Login(ctx, in.Username, in.Password)
	if err != nil {
		return err
	}

	if err := userconfig.RememberUsername(rt.server.URL, sess.Username); err != nil {
		logger.Debug().Err(err).Msg("Failed to remember username")
	}

	rt.notifier.Success(notify.MsgLoginSuccess)
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the session for a media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")

	return cmd
}

func runLogout(opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := rt.sessions.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	rt.notifier.Success(notify.MsgLoggedOut)
	return nil
}
