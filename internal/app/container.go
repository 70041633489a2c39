package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/mappings"
	"github.com/odyssey-erp/koperasi/internal/accounting/memstore"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/reports"
	"github.com/odyssey-erp/koperasi/internal/accounting/sqlstore"
	"github.com/odyssey-erp/koperasi/internal/integration"
	"github.com/odyssey-erp/koperasi/internal/observability"
	"github.com/odyssey-erp/koperasi/internal/platform/cache"
	"github.com/odyssey-erp/koperasi/internal/platform/db"
	"github.com/odyssey-erp/koperasi/internal/seed"
	"github.com/odyssey-erp/koperasi/internal/shared"
	"github.com/odyssey-erp/koperasi/jobs"
)

// Directory resolves loans and members for the syncer.
type Directory interface {
	integration.LoanSettings
	integration.MemberDirectory
}

// Stores holds the repositories of the configured STORE_DRIVER.
type Stores struct {
	Driver    string
	Accounts  accounts.Repository
	Journals  journals.Repository
	Periods   periods.Repository
	Mappings  mappings.Repository
	Audit     journals.AuditPort
	Directory Directory
	// Static is set for drivers without host loan tables; the seed file
	// fills it.
	Static *integration.StaticDirectory
	Pool   *pgxpool.Pool

	closers []func()
}

// OpenStores connects the repositories selected by cfg.StoreDriver.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Driver:    DriverPostgres,
			Accounts:  accounts.NewRepository(pool),
			Journals:  journals.NewRepository(pool),
			Periods:   periods.NewRepository(pool),
			Mappings:  mappings.NewRepository(pool),
			Audit:     shared.NewAuditLogger(pool),
			Directory: integration.NewPGDirectory(pool),
			Pool:      pool,
			closers:   []func(){pool.Close},
		}, nil
	case DriverSQLite:
		store, err := sqlstore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		static := integration.NewStaticDirectory()
		return &Stores{
			Driver:    DriverSQLite,
			Accounts:  store.Accounts(),
			Journals:  store.Journals(),
			Periods:   store.Periods(),
			Mappings:  store.Mappings(),
			Audit:     shared.NewLogAuditor(logger),
			Directory: static,
			Static:    static,
			closers:   []func(){func() { _ = store.Close() }},
		}, nil
	case DriverMemory:
		store := memstore.New()
		static := integration.NewStaticDirectory()
		return &Stores{
			Driver:    DriverMemory,
			Accounts:  store.Accounts(),
			Journals:  store.Journals(),
			Periods:   store.Periods(),
			Mappings:  store.Mappings(),
			Audit:     shared.NewLogAuditor(logger),
			Directory: static,
			Static:    static,
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Services wires the ledger services on top of a Stores.
type Services struct {
	Accounts      *accounts.Service
	Journals      *journals.Service
	Periods       *periods.Service
	Ledger        *ledger.Service
	Reports       *reports.Service
	Syncer        *integration.Syncer
	LedgerMetrics *observability.LedgerMetrics
}

// NewServices builds the services. redisClient may be nil, which disables the
// statement cache and the cross-worker sync lock.
func NewServices(cfg *Config, stores *Stores, redisClient *redis.Client, registerer prometheus.Registerer, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	accountSvc := accounts.NewService(stores.Accounts, logger)
	journalSvc := journals.NewService(stores.Journals, stores.Audit, logger)
	periodSvc := periods.NewService(stores.Periods, stores.Audit, logger)
	ledgerSvc := ledger.NewService(stores.Accounts, stores.Journals)

	statementCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportSvc := reports.NewService(ledgerSvc, statementCache, logger).WithBuildTimeout(cfg.AppRequestTimeout)

	ledgerMetrics := observability.NewLedgerMetrics(registerer)
	journalSvc.AddListener(ledgerMetrics)
	if redisClient != nil {
		journalSvc.AddListener(reports.NewInvalidator(statementCache, func(err error) {
			logger.Warn("statement cache invalidation failed", slog.Any("error", err))
		}))
	}

	syncer := integration.NewSyncer(journalSvc, stores.Journals, stores.Mappings, stores.Directory, stores.Directory, logger,
		integration.Config{AutoPost: cfg.SyncAutoPost, Concurrency: cfg.SyncConcurrency}).
		WithRecorder(ledgerMetrics)
	if locker := shared.NewRedisLocker(redisClient, cfg.SyncLockTTL); locker != nil {
		syncer.WithLocker(locker)
	}

	return &Services{
		Accounts:      accountSvc,
		Journals:      journalSvc,
		Periods:       periodSvc,
		Ledger:        ledgerSvc,
		Reports:       reportSvc,
		Syncer:        syncer,
		LedgerMetrics: ledgerMetrics,
	}
}

// SeedFromFile applies the chart of accounts and mappings in path. Members
// and loans go to the static directory when the driver has one.
func SeedFromFile(ctx context.Context, path string, services *Services, stores *Stores, logger *slog.Logger) (seed.Result, error) {
	f, err := seed.Load(path)
	if err != nil {
		return seed.Result{}, err
	}
	res, err := seed.Apply(ctx, f, services.Accounts, stores.Mappings, logger)
	if err != nil {
		return res, err
	}
	if stores.Static != nil {
		if res.Loans, err = seed.FillDirectory(f, stores.Static); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Runtime is everything the API process needs.
type Runtime struct {
	Config   *Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Stores   *Stores
	Services *Services
	Redis    *redis.Client
	Jobs     *jobs.Client

	inspector *asynq.Inspector
}

// Build connects stores and Redis and wires services. Drivers without host
// tables are seeded from COA_SEED_FILE when it exists.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.Stores = stores

	if redisOpts := cfg.RedisOptions(); redisOpts.Enabled() {
		client, err := cache.New(ctx, redisOpts)
		if err != nil {
			stores.Close()
			return nil, err
		}
		rt.Redis = client
		if rt.Jobs, err = jobs.NewClient(redisOpts.Asynq()); err != nil {
			rt.Close()
			return nil, err
		}
		rt.inspector = asynq.NewInspector(redisOpts.Asynq())
	}

	rt.Services = NewServices(cfg, stores, rt.Redis, rt.Metrics.Registerer(), logger)

	if stores.Static != nil && cfg.COASeedFile != "" {
		if _, err := os.Stat(cfg.COASeedFile); err == nil {
			if _, err := SeedFromFile(ctx, cfg.COASeedFile, rt.Services, stores, logger); err != nil {
				rt.Close()
				return nil, fmt.Errorf("seed %s: %w", cfg.COASeedFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

// Routes collects the handlers served by the API.
func (rt *Runtime) Routes() RouterParams {
	var (
		enqueuer  integration.Enqueuer
		inspector jobs.QueueInspector
	)
	if rt.Jobs != nil {
		enqueuer = rt.Jobs
	}
	if rt.inspector != nil {
		inspector = rt.inspector
	}
	s := rt.Services
	return RouterParams{
		Logger:             rt.Logger,
		Config:             rt.Config,
		Metrics:            rt.Metrics,
		AccountsHandler:    accounts.NewHandler(rt.Logger, s.Accounts),
		JournalsHandler:    journals.NewHandler(rt.Logger, s.Journals),
		LedgerHandler:      ledger.NewHandler(rt.Logger, s.Ledger),
		ReportsHandler:     reports.NewHandler(rt.Logger, s.Reports),
		PeriodsHandler:     periods.NewHandler(rt.Logger, s.Periods),
		IntegrationHandler: integration.NewHandler(rt.Logger, s.Syncer, enqueuer),
		JobHandler:         jobs.NewHandler(inspector, rt.Logger),
	}
}

// Close releases Redis, the queue client and the stores.
func (rt *Runtime) Close() {
	if rt.inspector != nil {
		_ = rt.inspector.Close()
	}
	if rt.Jobs != nil {
		_ = rt.Jobs.Close()
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	rt.Stores.Close()
}
