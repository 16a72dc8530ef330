package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/api"
	"github.com/chanwatch/chanwatch/internal/refresher"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the membership HTTP service",
		Long: `Starts the HTTP API, restores persisted cache state, and runs the
background subscription-index refresh loop until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if a.cfg.Engine.RefreshOnServeStart {
		go func() {
			res := a.engine.Refresh(ctx, false)
			if res.Ran {
				logger.Info("startup index refresh completed", zap.Int("total", res.Total))
			}
		}()
	}

	loop := refresher.New(
		a.engine,
		time.Duration(a.cfg.Engine.RefreshEveryMinutes)*time.Minute,
		logger.Named("refresher"),
	)
	go loop.Run(ctx)

	apiServer := api.NewServer(a.engine, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
