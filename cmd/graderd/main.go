// Command graderd serves the answer grading pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/answerlab/go-grader/internal/audit"
	"github.com/answerlab/go-grader/internal/config"
	"github.com/answerlab/go-grader/internal/dataset"
	"github.com/answerlab/go-grader/internal/embed"
	"github.com/answerlab/go-grader/internal/ensemble"
	"github.com/answerlab/go-grader/internal/evaluator"
	"github.com/answerlab/go-grader/internal/faults"
	"github.com/answerlab/go-grader/internal/logging"
	"github.com/answerlab/go-grader/internal/monitor"
	"github.com/answerlab/go-grader/internal/server"
	"github.com/answerlab/go-grader/internal/startup"
	"github.com/answerlab/go-grader/internal/validation"
)

const startupCheckTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("graderd stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dataset.Open(cfg.Dataset.Path, logger)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing dataset store", "error", err)
		}
	}()
	if err := store.Seed(ctx); err != nil {
		return fmt.Errorf("seed dataset: %w", err)
	}

	sink, err := audit.NewFileSink(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("closing audit trail", "error", err)
		}
	}()

	mon := monitor.New(logger)
	handler := faults.New(logger)

	var oracle ensemble.SemanticScorer
	var breaker server.BreakerStater
	if cfg.Embedding.Enabled {
		client := embed.NewClient(cfg.Embedding.Endpoint, cfg.Embedding.Timeout(), cfg.Embedding.Retry.Policy(), logger)
		oracle = client
		breaker = client
	}

	eval := evaluator.New(evaluator.Deps{
		Ensemble: ensemble.New(oracle, logger),
		Faults:   handler,
		Audit:    sink,
		Metrics:  mon,
		Logger:   logger,
	}, evaluator.Params{
		ReviewThreshold:   cfg.Evaluation.ConfidenceThreshold,
		EnsembleSoftLimit: cfg.Evaluation.EnsembleSoftTimeout(),
	})

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	report := startup.Run(checkCtx, startup.Deps{
		Config:    cfg,
		Store:     store,
		Oracle:    oracle,
		Evaluator: eval,
		Logger:    logger,
	})
	cancel()
	report.Log(logger)
	if !report.CanStart {
		return errors.New("startup checks failed")
	}

	srv := server.New(server.Deps{
		Evaluator: eval,
		Store:     store,
		Monitor:   mon,
		Faults:    handler,
		Validator: validation.New(cfg.Evaluation.MaxTextLength),
		Embedding: breaker,
		Logger:    logger,
	}, server.Config{
		SimilarityThreshold: cfg.Evaluation.SimilarityThreshold,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("graderd listening", "addr", httpServer.Addr, "embedding", cfg.Embedding.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
