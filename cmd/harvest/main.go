// Command harvest downloads historical hourly weather observations for the
// configured stations from the MET Norway Frost API, cross-references snow
// depth from the Open-Meteo archive, and writes one merged CSV per station.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjordsol/metharvest/internal/adapter/csvfile"
	"github.com/fjordsol/metharvest/internal/adapter/frost"
	httpadapter "github.com/fjordsol/metharvest/internal/adapter/http"
	"github.com/fjordsol/metharvest/internal/adapter/openmeteo"
	"github.com/fjordsol/metharvest/internal/config"
	"github.com/fjordsol/metharvest/internal/observability"
	"github.com/fjordsol/metharvest/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	frostClient := frost.NewClient(cfg.FrostClientID, cfg.FrostBaseURL, cfg.HTTPTimeout, logger, metrics)
	primary := pipeline.NewDownloader("frost",
		pipeline.NewRetrier(frostClient, cfg.MaxAttempts, cfg.Backoff, logger, metrics),
		cfg.Pacing, logger, metrics)

	var secondary *pipeline.Downloader
	if cfg.SnowEnabled {
		meteoClient := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.HTTPTimeout, logger, metrics)
		secondary = pipeline.NewDownloader("openmeteo",
			pipeline.NewRetrier(meteoClient, cfg.MaxAttempts, cfg.Backoff, logger, metrics),
			cfg.Pacing, logger, metrics)
		logger.Info("snow cross-reference enabled", "span_days", cfg.SnowSpanDays)
	} else {
		logger.Info("snow cross-reference disabled")
	}

	writer := csvfile.NewWriter(cfg.OutputDir, rune(cfg.Delimiter[0]), logger)
	runner := pipeline.NewRunner(primary, secondary, writer, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional progress server for watching long runs.
	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	spec := pipeline.RunSpec{
		Stations:     cfg.Stations,
		Start:        cfg.StartDate,
		End:          cfg.EndDate,
		Elements:     cfg.Elements,
		SpanDays:     cfg.SpanDays,
		SnowSpanDays: cfg.SnowSpanDays,
		Pacing:       cfg.Pacing,
	}
	if cfg.SnowEnabled {
		spec.SnowElements = cfg.SnowElements
	}

	result, err := runner.Run(ctx, spec)
	if err != nil {
		logger.Error("run aborted", "error", err)
		os.Exit(1)
	}
	if result.StationsSucceeded == 0 {
		logger.Error("no station yielded data")
		os.Exit(1)
	}
}
