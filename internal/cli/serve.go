package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/api"
	"github.com/rshade/adcarbon/internal/logging"
)

// NewServeCmd creates the serve command, which exposes activities, totals
// and the reference compute endpoint over HTTP.
func NewServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serves the activity API, totals and POST /api/emissions/compute, a
reference compute service backed by the local emission factors. Point
compute.endpoint of another adcarbon at it to test remote calculation.`,
		Example: `  adcarbon serve
  adcarbon serve --addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				log := logging.FromContext(ctx)
				h := api.NewHandler(a.tracker, a.table, a.estimator)
				router := api.NewRouter(h, api.RouterOptions{
					AllowedOrigins: a.cfg.Server.AllowedOrigins,
					Logger:         *log,
				})
				log.Info().Ctx(ctx).Str("addr", addr).Msg("serving HTTP API")
				cmd.Printf("Listening on %s\n", addr)
				return api.Serve(ctx, addr, router)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}
