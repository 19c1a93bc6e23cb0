package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/cli/config"
	controller "github.com/bssprx/data-platform-containers/pkg/controller/http"
	"github.com/bssprx/data-platform-containers/pkg/usecase"
	"github.com/bssprx/data-platform-containers/pkg/utils/async"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

func cmdServe(sentryCfg *config.Sentry) *cli.Command {
	var (
		fileCfg   config.File
		serverCfg config.Server
		authCfg   config.Auth
		storeCfg  config.UserStore
	)

	var flags []cli.Flag
	flags = append(flags, fileCfg.Flags()...)
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the ALB auth service",
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := fileCfg.Apply(c); err != nil {
				return nil, err
			}
			return ctx, authCfg.Validate()
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)

			logger.Info("Starting auth server",
				slog.String("addr", serverCfg.Addr),
				slog.String("auth_prefix", serverCfg.AuthPrefix),
				slog.String("user_store", storeCfg.Backend),
				slog.Any("auth", authCfg),
			)

			sentryEnabled, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer sentryCfg.Flush()

			store, closeStore, err := storeCfg.New(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			issuer, err := authCfg.NewIssuer()
			if err != nil {
				return err
			}

			authUC := usecase.NewAuth(store, issuer, authCfg.AuthOptions()...)
			if authCfg.BootstrapUser != "" {
				if err := authUC.Bootstrap(ctx, authCfg.BootstrapUser, authCfg.BootstrapPassword, authCfg.BootstrapRole); err != nil {
					return err
				}
			}

			server, err := controller.NewServer(
				ctx,
				authUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithAuthPrefix(serverCfg.AuthPrefix),
				controller.WithHeaders(authCfg.IdentityHeader, authCfg.ClaimsHeader),
				controller.WithTokenTTL(authCfg.JWTExpiration, authCfg.JWTCLIExpiration),
				controller.WithTLS(serverCfg.TLS),
				controller.WithSentry(sentryEnabled),
				controller.WithUserStoreName(storeCfg.Backend),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			case err := <-errCh:
				return goerr.Wrap(err, "HTTP server failed", goerr.V("addr", serverCfg.Addr))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}
			if err := async.Wait(shutdownCtx); err != nil {
				logger.Warn("Pending background tasks dropped", slog.Any("error", err))
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
