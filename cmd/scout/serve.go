package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/api"
	"github.com/hurttlocker/scout/internal/config"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ResolveConfig(config.ResolveOptions{
				ConfigPath:  flags.configPath,
				CLIDBPath:   flags.dbPath,
				CLIProvider: flags.provider,
				CLIBaseURL:  flags.baseURL,
				CLIAddr:     addr,
				CLILogLevel: flags.logLevel,
			})
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, flags.offline, appOptions{withStore: true, metrics: true})
			if err != nil {
				return err
			}
			defer a.Close()

			router := api.NewRouter(api.Config{
				Manager:        a.manager,
				Metrics:        a.metrics,
				Images:         a.images,
				Logger:         a.logger,
				AllowedOrigins: origins,
				Version:        version,
			})
			srv := &http.Server{
				Addr:              cfg.ServerAddr.Value,
				Handler:           router.Setup(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8080)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "Allowed CORS origin (repeatable; default *)")
	return cmd
}
