package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/api/handlers/image"
	"github.com/aliskhannn/image-optimizer/internal/api/router"
	"github.com/aliskhannn/image-optimizer/internal/api/server"
	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/config"
	"github.com/aliskhannn/image-optimizer/internal/converter"
	"github.com/aliskhannn/image-optimizer/internal/export"
	"github.com/aliskhannn/image-optimizer/internal/metrics"
	"github.com/aliskhannn/image-optimizer/internal/notify"
	"github.com/aliskhannn/image-optimizer/internal/optimizer"
	"github.com/aliskhannn/image-optimizer/internal/processor"
	imagesvc "github.com/aliskhannn/image-optimizer/internal/service/image"
	"github.com/aliskhannn/image-optimizer/internal/storage/file"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Encoder with every codec this build supports.
	enc := canvas.NewEncoder()
	zlog.Logger.Info().Interface("formats", enc.Supported()).Msg("encoder ready")

	// Notification bus and the center keeping the latest notifications.
	bus := notify.NewBus()
	center := notify.NewCenter(cfg.Notifications.Capacity)
	detach := center.Attach(bus)
	defer detach()

	opts := []imagesvc.Option{
		imagesvc.WithBus(bus),
		imagesvc.WithNotifications(center),
		imagesvc.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	}

	// Optional export of batch archives to MinIO.
	if cfg.Storage.Enabled {
		storage, err := file.NewStorage(ctx, cfg.Storage)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}

		strategy := retry.Strategy{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.Retry.Delay,
			Backoff:  cfg.Retry.Backoff,
		}
		opts = append(opts, imagesvc.WithExporter(export.NewExporter(storage, strategy, "batches")))
	}

	// Initialize optimizer, converter, processor and service layer.
	opt := optimizer.New(enc, nil, bus, cfg.Optimizer)
	conv := converter.New(enc)
	remote := processor.New(cfg.Remote)
	service := imagesvc.NewService(opt, conv, remote, enc, opts...)

	// HTTP handler for image routes.
	imgHandler := image.NewHandler(service)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(imgHandler)
	s := server.New(cfg.Server.HTTPPort, r, cfg.Server.WriteTimeout)
	go func() {
		zlog.Logger.Info().Str("addr", s.Addr).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}
}
