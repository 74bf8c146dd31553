package cli

import (
	"context"

	"github.com/spf13/cobra"

	"curetrack/internal/server"
	"curetrack/pkg/domain"
)

// ServeOptions overrides the server section of the config.
type ServeOptions struct {
	Addr string
}

func addServe(topLevel *cobra.Command, st *state) {
	so := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deliver reminders continuously and serve the HTTP API.",
		Long: `Deliver reminders as they come due and serve a read-only HTTP API:

  GET /healthz            liveness
  GET /metrics            Prometheus metrics
  GET /debug/vars         expvar counters
  GET /api/samples        every sample with its status
  GET /api/samples/{id}   one sample
  GET /api/stats          aggregate counts
  GET /api/next           the next sample to come due`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.serve(cmd, so)
		},
	}
	cmd.Flags().StringVar(&so.Addr, "addr", "", "Listen address. Overrides server.addr.")

	topLevel.AddCommand(cmd)
}

func (st *state) serve(cmd *cobra.Command, so *ServeOptions) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	addr := app.Config.Server.Addr
	if so.Addr != "" {
		addr = so.Addr
	}
	opts := []server.Option{
		server.WithAddr(addr),
		server.WithLogger(app.Logger),
		server.WithGatherer(app.Registry),
		server.WithNotifier(func(_ context.Context, n domain.Notification) error {
			p.notification(n)
			app.Logger.Info("reminder delivered", "sample", n.SampleID, "kind", string(n.Kind))
			return nil
		}),
	}
	if app.Spool != nil {
		opts = append(opts, server.WithDispatcher(app.Spool, app.Config.Server.DispatchInterval))
	} else {
		app.OnReminder(p.notification)
	}
	return server.New(app.Service, opts...).Run(ctx)
}
