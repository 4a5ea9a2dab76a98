package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/cli/formatter"
	"github.com/alexanderramin/sitesync/internal/scheduler"
)

const shutdownTimeout = 5 * time.Second

func newWatchCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the change feed and resync on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := st.app
			out := cmd.OutOrStdout()

			if app.Start != nil {
				if err := app.Start(ctx); err != nil {
					return fmt.Errorf("starting change feed: %w", err)
				}
			}
			id, res, err := st.hydrate(ctx)
			fmt.Fprint(out, formatter.FormatHydration(res))
			if err != nil {
				return err
			}

			sched := scheduler.New(app.Logger, app.Sink)
			if err := sched.Add(scheduler.Job{
				Name:     "resync",
				Schedule: app.Config.Session.ResyncSchedule,
				Run:      app.Session.Resync,
			}); err != nil {
				return err
			}
			if err := sched.Add(scheduler.Job{
				Name:     "expiry",
				Schedule: app.Config.Session.ExpirySchedule,
				Run: func(ctx context.Context) error {
					wiped, err := app.Session.CheckExpiry(ctx)
					if err != nil || !wiped {
						return err
					}
					app.Logger.Info("session expired, reloading", zap.String("user", id.UserID))
					return app.Session.Resync(ctx)
				},
			}); err != nil {
				return err
			}
			sched.Start(ctx)
			defer sched.Stop()

			stopMetrics := serveMetrics(app.Config.MetricsAddr, app.Logger)
			defer stopMetrics()

			app.Logger.Info("watching", zap.String("user", id.UserID), zap.Bool("admin", id.IsAdmin))
			<-ctx.Done()
			app.Logger.Info("shutting down")
			return nil
		},
	}
}

// serveMetrics exposes the Prometheus registry on addr. An empty addr
// disables it. The returned func shuts the server down.
func serveMetrics(addr string, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
