// Package cli implements fmctl, the command line front end of the file
// manager client. It shares the session store with the web client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"filemanager/internal/api"
	"filemanager/internal/config"
	"filemanager/internal/gate"
	"filemanager/internal/logger"
	"filemanager/internal/notify"
	"filemanager/internal/session"
	"filemanager/internal/verification"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	server      string
	sessionFile string
	debug       bool
	logLevel    string
	logFormat   string
}

// app is built once per invocation, after flags are parsed
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    session.Store
	client   *api.Client
	sessions *session.Manager
	notifier notify.Notifier
	gate     *gate.Gate
}

// reportedError marks a failure the user has already been shown as a notice
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was already printed as a notice
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// NewRootCmd creates the root cobra command for fmctl.
func NewRootCmd() *cobra.Command {
	var flags rootFlags
	a := &app{}

	root := &cobra.Command{
		Use:   "fmctl",
		Short: "File manager client",
		Long:  "fmctl logs in to the file manager, verifies accounts and manages your files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.server, "server", "", "Backend URL (or FILEMANAGER_API_URL env)")
	root.PersistentFlags().StringVar(&flags.sessionFile, "session-file", "", "Session file for the file store (or SESSION_FILE env)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRegisterCmd(a),
		newVerifyCmd(a),
		newResendCmd(a),
		newFilesCmd(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.server != "" {
		cfg.APIURL = flags.server
	}
	if flags.sessionFile != "" {
		cfg.Session.Store = config.StoreFile
		cfg.Session.File = flags.sessionFile
	}
	if flags.debug {
		flags.logLevel = "debug"
	}

	a.cfg = cfg
	a.logger = logger.New(flags.logLevel, flags.logFormat, cmd.ErrOrStderr())
	a.notifier = notify.NewWriter(cmd.OutOrStdout(), cmd.ErrOrStderr())

	order, err := cfg.TokenOrder()
	if err != nil {
		return err
	}

	store, err := cfg.OpenSessionStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	a.store = store

	tokens := session.NewTokenStore(store)
	a.client = api.NewClient(cfg.APIURL, a.logger,
		api.WithTokenSource(tokens),
		api.WithTimeout(cfg.HTTPTimeout),
	)
	a.sessions = session.NewManager(tokens, a.client,
		session.WithLogger(a.logger),
		session.WithTokenOrder(order),
	)
	a.sessions.Bootstrap(cmd.Context())

	a.gate = gate.New(a.sessions, verification.NavigatorFunc(func(path string) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Not logged in. Run: fmctl login")
	}), a.logger)

	return nil
}

// run wraps a command body so the session store is closed afterwards
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if a.store != nil {
				if err := a.store.Close(); err != nil {
					a.logger.Warn("Failed to close session store", "error", err)
				}
			}
		}()
		return fn(cmd.Context(), cmd, args)
	}
}

// authenticated runs fn only while the stored session is valid
func (a *app) authenticated(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		err := a.gate.Render(ctx, func() error { return fn(ctx, cmd, args) })
		if errors.Is(err, gate.ErrAccessDenied) {
			return reported(err)
		}
		return err
	})
}

// fail shows err as a notice and returns it marked as reported
func (a *app) fail(ctx context.Context, err error, fallback string) error {
	title := "Error"
	if status := api.StatusCode(err); status != 0 {
		title = strconv.Itoa(status)
	}
	a.notifier.Notify(ctx, notify.Error(title, api.Describe(err, fallback)))
	return reported(err)
}
