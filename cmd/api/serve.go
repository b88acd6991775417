package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/school-support/internal/api/http"
	"github.com/spec-kit/school-support/internal/api/http/handlers"
	"github.com/spec-kit/school-support/internal/auth"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.seedAdmin(ctx); err != nil {
		return err
	}

	server := fiber.New(fiber.Config{AppName: app.cfg.App.Name})
	httptransport.RegisterMiddlewares(server, app.logger, app.metrics, app.cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(app.cfg.App.Name, app.cfg.App.Version, app.checks, app.metrics),
		Auth:           handlers.NewAuthHandler(app.auth),
		Tickets:        handlers.NewTicketsHandler(app.tickets, app.assign),
		Leader:         handlers.NewLeaderHandler(app.tickets, app.assign, app.analytics),
		Admin:          handlers.NewAdminHandler(app.users, app.tickets, app.archive),
		AuthMiddleware: auth.NewAuthMiddleware(app.auth.TokenManager(), app.store.Users()),
	})

	go func() {
		if err := server.Listen(app.cfg.App.Addr()); err != nil {
			app.logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(app.logger)

	return server.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
