// Command comply runs the active storage compliance suite against a
// deployed service.
//
// Configuration comes from the environment (see comply.ConfigFromEnv).
// The process exits non-zero if any case failed or errored, so the suite
// slots directly into CI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/activestorage-tools/comply/comply"
	"github.com/activestorage-tools/comply/comply/s3"
)

func main() {
	os.Exit(run())
}

func run() int {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "comply: creating logger:", err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	cfg, err := comply.ConfigFromEnv()
	if err != nil {
		// Configuration errors are fatal before any case runs.
		log.Error("configuration error", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := s3.NewStoreFromConfig(ctx, cfg)
	if err != nil {
		log.Error("object store setup failed", zap.Error(err))
		return 2
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Error("fixture bucket setup failed", zap.Error(err))
		return 2
	}

	runner := comply.NewRunner(cfg, store, nil, log)
	if err := runner.Ping(ctx); err != nil {
		log.Error("service under test is unreachable", zap.String("proxy_url", cfg.ProxyURL), zap.Error(err))
		return 2
	}

	report := runner.Run(ctx, comply.AllCases(comply.DefaultMatrix(cfg)))
	printReport(log, report)

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("run was cancelled; results are partial")
	}
	if !report.Summary.Ok() {
		return 1
	}
	return 0
}

func printReport(log *zap.Logger, report *comply.Report) {
	for _, v := range report.Verdicts {
		switch v.Status {
		case comply.StatusFailed:
			log.Warn("FAIL",
				zap.String("case", v.Case.Identity()),
				zap.String("reason", string(v.Failure.Reason)),
				zap.String("detail", v.Failure.Detail),
			)
		case comply.StatusErrored:
			log.Warn("ERROR", zap.String("case", v.Case.Identity()), zap.Error(v.Err))
		case comply.StatusSkipped:
			log.Info("SKIP", zap.String("case", v.Case.Identity()))
		}
	}
	s := report.Summary
	log.Info("summary",
		zap.Int("total", s.Total()),
		zap.Int("passed", s.Passed),
		zap.Int("failed", s.Failed),
		zap.Int("errored", s.Errored),
		zap.Int("skipped", s.Skipped),
	)
}
