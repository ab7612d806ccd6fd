package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"buildingsearch/internal/components/telemetry"
	"buildingsearch/internal/query"
	"buildingsearch/internal/sink"

	"github.com/spf13/cobra"
)

// run executes action over targets with the output and telemetry the flags
// and config ask for.
func run(cmd *cobra.Command, action query.Action, targets []query.Target) error {
	ctx := cmd.Context()
	telemetry.InitSlog(*verbose)

	cfg, err := readConfig(*configPath)
	if err != nil {
		return err
	}

	otel, err := telemetry.Setup(ctx, "hcr-cli", cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		err := otel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()
	if cfg.PerfStatsSeconds > 0 {
		telemetry.InstrumentPerfStats(ctx, time.Duration(cfg.PerfStatsSeconds)*time.Second)
	}

	outFormat, err := sink.ParseFormat(*format)
	if err != nil {
		return err
	}
	out, err := sink.Open(outFormat, os.Stdout, os.Stderr, *dbPath)
	if err != nil {
		return err
	}
	if s, ok := out.(*sink.SQLiteSink); ok {
		slog.Info("writing results", "db", *dbPath, "run", s.RunId())
	}

	tel := telemetry.SlogAPI{}
	newDriver, err := cfg.driverFactory(tel)
	if err != nil {
		out.Close()
		return err
	}
	executor := query.NewExecutor(newDriver, tel)

	t1 := time.Now()
	runErr := executor.RunBatch(ctx, action, targets, out)
	slog.Debug("run finished", "targets", len(targets), "seconds", time.Since(t1).Seconds())

	err = out.Close()
	if runErr != nil {
		return runErr
	}
	return err
}
