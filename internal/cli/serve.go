package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ofs-s111/internal/adapter/httpserver"
	"github.com/couchcryptid/ofs-s111/internal/adapter/kafka"
	"github.com/couchcryptid/ofs-s111/internal/adapter/nomads"
	"github.com/couchcryptid/ofs-s111/internal/config"
	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/model"
	"github.com/couchcryptid/ofs-s111/internal/observability"
	"github.com/couchcryptid/ofs-s111/internal/ops"
	"github.com/couchcryptid/ofs-s111/internal/pipeline"
)

// serveDownloadTimeout bounds each single-file archive request in serve mode.
const serveDownloadTimeout = 10 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operational daemon",
		Long: "Poll the archive for new forecast cycles of the configured models " +
			"and encode S-111 artifacts as they become available. Configured " +
			"through environment variables.",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadServe()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.ServeConfig) error {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	for _, dir := range []string{cfg.DownloadDir, cfg.OutputDir, cfg.IndexDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	models := make([]domain.Model, 0, len(cfg.Models))
	for _, id := range cfg.Models {
		m, err := domain.Lookup(id)
		if err != nil {
			return err
		}
		models = append(models, m)
	}

	client := nomads.NewClient(serveDownloadTimeout, logger)
	p := pipeline.New(client, model.AutoReader{}, pipeline.S111Encoder{}, logger, metrics)

	var notifier ops.Notifier
	if cfg.KafkaEnabled {
		n := kafka.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = n
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka notifications disabled")
	}

	sched := ops.NewScheduler(models, p, notifier, ops.Settings{
		DownloadDir: cfg.DownloadDir,
		OutputDir:   cfg.OutputDir,
		IndexDir:    cfg.IndexDir,
		TargetDepth: cfg.TargetDepth,
	}, clockwork.NewRealClock(), logger)

	srv := httpserver.NewServer(cfg.HTTPAddr, p, sched, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx, cfg.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
