package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/leave-engine/api"
)

// serveCmd starts the HTTP API and the sweep scheduler.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP API. The auto-approval sweep runs in the background
every leave.sweep_interval until the server shuts down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := api.NewHandler(a.service, a.store, a.log)

		if scenario, _ := cmd.Flags().GetString("seed"); scenario != "" {
			if err := handler.ApplyScenario(cmd.Context(), scenario); err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
		}

		router := api.NewRouter(handler, api.RouterConfig{
			JWTSecret:      a.cfg.Auth.JWTSecret,
			AllowedOrigins: a.cfg.CORS.AllowedOrigins,
			RateLimitRPS:   a.cfg.RateLimit.RPS,
			RateLimitBurst: a.cfg.RateLimit.Burst,
			Metrics:        a.metrics,
		})

		scheduler := api.NewAutoApproveScheduler(a.service, a.log)
		scheduler.Interval = a.cfg.Leave.SweepInterval
		scheduler.Enabled = a.cfg.Leave.SweepEnabled
		scheduler.Start()
		defer scheduler.Stop()

		srv := &http.Server{
			Addr:              a.cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.WithField("addr", srv.Addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-quit:
		}

		a.log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		a.log.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("seed", "", "load a demo scenario before serving (resets the database)")
	rootCmd.AddCommand(serveCmd)
}
