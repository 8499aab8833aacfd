package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/yulifengwx/RazorRockstars/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Seed bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server on the configured address until interrupted.

The memory backend starts empty unless it has a data_dir to replay;
--seed loads the seed rockstars when the table is empty.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "reset the table to the seed rockstars when it is empty")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Seed {
		if err := seedIfEmpty(ctx, a); err != nil {
			return err
		}
	}

	a.startCompactor(ctx)

	gin.SetMode(a.cfg.Mode)

	logger := a.log.Named("api")
	router := api.NewRouter(a.service, a.renderer, logger)

	return api.Serve(ctx, a.cfg.Addr, router, logger)
}

func seedIfEmpty(ctx context.Context, a *app) error {
	count, err := a.store.Count(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	_, err = a.service.Reset(ctx)
	return err
}
