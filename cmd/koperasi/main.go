package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/koperasi/cmd/koperasi/cli"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/app"
	"github.com/odyssey-erp/koperasi/jobs"
)

const usage = `usage: koperasi <command> [flags]

commands:
  serve                              run the HTTP API (default)
  seed [-file path]                  apply the chart of accounts seed
  report -kind <statement> [-period YYYY-MM]
                                     print a financial statement
  jobs gl-integrity [-period YYYY-MM]
                                     queue a GL integrity check
  jobs sync -file batch.json         queue a batch sync
  jobs stats                         show queue counters
  jobs scheduled [-n 10]             list tasks waiting for their run time
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command, args := "serve", os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "seed":
		err = runSeed(ctx, cfg, logger, args)
	case "report":
		err = runReport(ctx, cfg, logger, os.Stdout, args)
	case "jobs":
		err = runJobs(ctx, cfg, os.Stdout, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command+" failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.Redis == nil {
		logger.Warn("REDIS_ADDR empty: statement cache, sync lock and async batches disabled")
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(rt.Routes()),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openServices wires the ledger without Redis; the CLI commands read and
// write the store directly.
func openServices(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Stores, *app.Services, error) {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return stores, app.NewServices(cfg, stores, nil, prometheus.NewRegistry(), logger), nil
}

func runSeed(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := fs.String("file", cfg.COASeedFile, "seed YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	stores, services, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()
	res, err := app.SeedFromFile(ctx, *file, services, stores, logger)
	if err != nil {
		return err
	}
	fmt.Printf("accounts created=%d existing=%d mappings=%d\n", res.AccountsCreated, res.AccountsExisting, res.Mappings)
	return nil
}

func runReport(ctx context.Context, cfg *app.Config, logger *slog.Logger, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	kind := fs.String("kind", "balance-sheet", "statement to print")
	period := fs.String("period", periods.Of(time.Now()).Code(), "period YYYY-MM")
	if err := fs.Parse(args); err != nil {
		return err
	}
	stores, services, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()
	return cli.NewReportCLI(services.Reports).Print(ctx, w, *kind, *period)
}

func runJobs(ctx context.Context, cfg *app.Config, w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: missing subcommand (gl-integrity, sync, stats, scheduled)")
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisOptions())
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	sub, args := args[0], args[1:]
	fs := flag.NewFlagSet("jobs "+sub, flag.ContinueOnError)
	switch sub {
	case "gl-integrity":
		period := fs.String("period", "", "period YYYY-MM, empty for the current month")
		if err := fs.Parse(args); err != nil {
			return err
		}
		id, err := jobsCLI.TriggerGLIntegrity(ctx, *period)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "queued %s id=%s\n", jobs.TaskGLIntegrity, id)
	case "sync":
		file := fs.String("file", "", "JSON batch file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		id, err := jobsCLI.EnqueueBatch(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "queued %s id=%s\n", jobs.TaskLedgerSyncBatch, id)
	case "stats":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "scheduled":
		size := fs.Int("n", 10, "number of tasks to list")
		if err := fs.Parse(args); err != nil {
			return err
		}
		tasks, err := jobsCLI.ListScheduled(*size)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(w, "%s %s at=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", sub)
	}
	return nil
}
