package cli

import (
	"context"
	"fmt"
	"strings"

	"filemanager/internal/api"
	"filemanager/internal/verification"

	"github.com/spf13/cobra"
)

// newFlow builds a verification flow that prints its notices. The CLI exits
// right after, so there is no delayed redirect to wait for.
func (a *app) newFlow() *verification.Flow {
	return verification.NewFlow(a.client,
		verification.WithNotifier(a.notifier),
		verification.WithLogger(a.logger),
	)
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Confirm an email address with the token from the verification link",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = strings.TrimSpace(args[0])
			}

			flow := a.newFlow()
			defer flow.Close()

			// the argument plays the part of the link token; without one
			// there is only the manual path left
			if token == "" {
				return reported(flow.VerifyNow(ctx, token))
			}
			if state := flow.RunAutoVerify(ctx, token); state != verification.Verified {
				return reported(verification.ErrVerificationFailed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Continue with: fmctl login (%s)\n", verification.LoginPath)
			return nil
		}),
	}
}

func newResendCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send a new verification email",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			flow := a.newFlow()
			defer flow.Close()

			if err := flow.Resend(ctx, email); err != nil {
				return reported(err)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

var _ verification.Verifier = (*api.Client)(nil)
