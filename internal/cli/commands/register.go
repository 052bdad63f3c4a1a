package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
)

// accountInput is the form shared by register and setup
type accountInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var serverAlias string
	var in accountInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a regular user account on a media server",
		Long: `Create a regular user account on a media server.

Accounts created this way cannot use the admin commands until a staff member
grants them administrator rights.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), in, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")
	cmd.Flags().StringVar(&in.Username, "username", "", "Username")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (will prompt if not provided)")

	return cmd
}

func runRegister(ctx context.Context, in accountInput, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := promptPasswords(rt.prompter, &in); err != nil {
		return err
	}

	resp, err := rt.api.Register(ctx, client.RegisterRequest{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		Password2: in.Password2,
	})
	if err != nil {
		return err
	}

	rt.notifier.Success(resp.Message)
	rt.notifier.Info("Log in with 'mediadmin login' once an administrator has approved the account.")
	return nil
}

// NewSetupCmd creates the setup command
func NewSetupCmd() *cobra.Command {
	var serverAlias string
	var in accountInput

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the first administrator on a new media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), in, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias or URL (uses the selected server if not specified)")
	cmd.Flags().StringVar(&in.Username, "username", "", "Administrator username")
	cmd.Flags().StringVar(&in.Email, "email", "", "Administrator email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (will prompt if not provided)")

	return cmd
}

func runSetup(ctx context.Context, in accountInput, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := promptPasswords(rt.prompter, &in); err != nil {
		return err
	}

	resp, err := rt.api.Setup(ctx, client.SetupRequest{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		Password2: in.Password2,
	})
	if err != nil {
		return err
	}

	rt.notifier.Success(resp.Message)
	rt.notifier.Info("Run 'mediadmin login' to start managing media.")
	return nil
}

// promptPasswords asks for the password and its confirmation when the
// password was not given as a flag. A flag password confirms itself.
func promptPasswords(p prompter, in *accountInput) error {
	if in.Password != "" {
		if in.Password2 == "" {
			in.Password2 = in.Password
		}
		return nil
	}

	var err error
	in.Password, err = p.Secret("Password")
	if err != nil {
		if errors.Is(err, errNotInteractive) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag)")
		}
		return err
	}
	in.Password2, err = p.Secret("Confirm password")
	return err
}
