package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"filemanager/internal/api"
	"filemanager/internal/forms"
	"filemanager/internal/notify"

	"github.com/spf13/cobra"
)

const (
	msgLoggedIn    = "Logged in successfully"
	msgLoginFailed = "Login failed. Please check your credentials."
	msgRegistered  = "Please check your email to verify your account before logging in."
	msgRegFailed   = "Registration failed. Please try again."
)

var errNotLoggedIn = errors.New("not logged in")

func newLoginCmd(a *app) *cobra.Command {
	var form forms.Login

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if form.Password == "" {
				pw, err := prompt(cmd, in, "Password: ")
				if err != nil {
					return err
				}
				form.Password = pw
			}
			if err := validateForm(ctx, a, form); err != nil {
				return err
			}

			id, err := a.sessions.Login(ctx, api.Credentials{Email: form.Email, Password: form.Password})
			if err != nil {
				return a.fail(ctx, err, msgLoginFailed)
			}

			a.notifier.Notify(ctx, notify.Success("Success", msgLoggedIn))
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", id.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "Account password (prompted if omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := a.sessions.Logout(ctx); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if !a.sessions.IsAuthenticated(ctx) {
				return errNotLoggedIn
			}
			id, ok := a.sessions.CurrentIdentity()
			if !ok {
				return errNotLoggedIn
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:   %s\n", id.Email)
			fmt.Fprintf(out, "Roles:   %s\n", strings.Join(id.Roles, ", "))
			if id.ExpiresAt.IsZero() {
				fmt.Fprintln(out, "Expires: never")
			} else {
				fmt.Fprintf(out, "Expires: %s\n", id.ExpiresAt.Local().Format(time.DateTime))
			}
			return nil
		}),
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var form forms.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. The backend mails a verification link that fmctl verify accepts.",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if form.Password == "" {
				pw, err := prompt(cmd, in, "Password: ")
				if err != nil {
					return err
				}
				form.Password = pw
			}
			if form.ConfirmPassword == "" {
				pw, err := prompt(cmd, in, "Confirm password: ")
				if err != nil {
					return err
				}
				form.ConfirmPassword = pw
			}
			if err := validateForm(ctx, a, form); err != nil {
				return err
			}

			_, err := a.client.Register(ctx, api.Registration{
				Name:     form.Name,
				Email:    form.Email,
				Password: form.Password,
			})
			if err != nil {
				return a.fail(ctx, err, msgRegFailed)
			}

			a.notifier.Notify(ctx, notify.Success("Registration Successful", msgRegistered))
			return nil
		}),
	}

	cmd.Flags().StringVar(&form.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "Password again (prompted if omitted)")
	return cmd
}

// validateForm prints every form problem and fails before any network call
func validateForm(ctx context.Context, a *app, form any) error {
	err := forms.Validate(form)
	if err == nil {
		return nil
	}
	for _, msg := range forms.Messages(err) {
		a.notifier.Notify(ctx, notify.Error("", msg))
	}
	return reported(err)
}

// prompt reads one line from in
func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
