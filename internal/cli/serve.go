package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/tactline/internal/server"
	"github.com/roach88/tactline/internal/session"
	"github.com/roach88/tactline/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	Database  string
	DefaultKB string
	KBRoot    string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API over HTTP",
		Long: `Start the HTTP session API. Each session owns a solver; clients
update working memory and request tacts. Prometheus metrics are served
on /metrics.

Create requests may name their own kb_dir only when --kb-root is set,
and only directories under it; otherwise every session uses --kb.

Example:
  tactline serve --addr :8080 --db ./tactline.db --kb ./kb
  tactline serve --kb-root ./kbs --kb ./kbs/default`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for tact logs")
	cmd.Flags().StringVar(&opts.DefaultKB, "kb", "", "knowledge base used when a create request names none")
	cmd.Flags().StringVar(&opts.KBRoot, "kb-root", "", "directory that request-supplied kb_dir values must lie under")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.Logger(cmd.ErrOrStderr())
	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	regOpts := []session.Option{session.WithLogger(logger)}
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		regOpts = append(regOpts, session.WithStore(st))
	}
	if opts.DefaultKB != "" {
		if _, err := os.Stat(opts.DefaultKB); err != nil {
			return WrapExitError(ExitCommandError, "default knowledge base", err)
		}
	}

	var handlerOpts []server.HandlerOption
	if opts.KBRoot != "" {
		if _, err := os.Stat(opts.KBRoot); err != nil {
			return WrapExitError(ExitCommandError, "knowledge base root", err)
		}
		handlerOpts = append(handlerOpts, server.WithKBRoot(opts.KBRoot))
	}

	reg := session.NewRegistry(regOpts...)
	router := server.NewRouter(server.NewHandlers(reg, opts.DefaultKB, handlerOpts...))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("serving", "addr", opts.Addr)
	if err := server.Serve(ctx, opts.Addr, router); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped")
	return nil
}
