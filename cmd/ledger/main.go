// Command ledger is the operational entry point of the LMS ledger. It
// prepares the schema, seeds sample data and audits batch seat counts.
// It does not serve requests.
//
//	ledger                 migrate (unless -migrate=false) and print status
//	ledger -seed           also insert the sample course and batch
//	ledger -admin <email>  create an admin user (LEDGER_ADMIN_PASSWORD, or random)
//	ledger -rollback       roll back the latest migration and exit
//	ledger -audit          compare every batch's seat count with its rows
//	ledger -watch          keep running and audit on LEDGER_AUDIT_INTERVAL
//	ledger -outline <id>   print a course outline as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/learnforge/lms-ledger/config"
	"github.com/learnforge/lms-ledger/internal/application/command"
	"github.com/learnforge/lms-ledger/internal/application/query"
	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/internal/infrastructure/messaging"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/memory"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/postgres"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/redis"
	"github.com/learnforge/lms-ledger/internal/infrastructure/scheduler"
	"github.com/learnforge/lms-ledger/internal/infrastructure/scheduler/jobs"
	"github.com/learnforge/lms-ledger/internal/infrastructure/security"
	"github.com/learnforge/lms-ledger/pkg/circuitbreaker"
	"github.com/learnforge/lms-ledger/pkg/logger"
	"github.com/learnforge/lms-ledger/pkg/retry"
)

type options struct {
	envFile  string
	migrate  bool
	seed     bool
	rollback bool
	audit    bool
	watch    bool
	admin    string
	outline  string
}

func main() {
	var opts options
	flag.StringVar(&opts.envFile, "env", ".env", "optional .env file")
	flag.BoolVar(&opts.migrate, "migrate", true, "apply pending migrations")
	flag.BoolVar(&opts.seed, "seed", false, "insert a sample course and batch when no batch exists")
	flag.BoolVar(&opts.rollback, "rollback", false, "roll back the latest migration and exit")
	flag.BoolVar(&opts.audit, "audit", false, "audit seat counts of every batch")
	flag.StringVar(&opts.admin, "admin", "", "create an admin user with this email")
	flag.BoolVar(&opts.watch, "watch", false, "keep running and audit seat counts periodically")
	flag.StringVar(&opts.outline, "outline", "", "print the outline of a course id")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything run wires together.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   store.Store
	pg      *postgres.Store
	bus     shared.EventBus
	ledger  *command.LedgerHandler
	reader  *query.Reader
	board   *redis.SeatBoard
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, opts options) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting lms ledger",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("store", string(cfg.Ledger.Store)),
		logger.String("version", cfg.App.Version),
	)

	a := &app{cfg: cfg, log: log}
	defer a.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORE
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.openStore(ctx, opts); err != nil {
		return err
	}
	if opts.rollback {
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENTS AND CACHES (optional Redis)
	// ─────────────────────────────────────────────────────────────────────────
	outlines := a.wireEvents(ctx)

	deps := command.Deps{Store: a.store, Publisher: a.bus, Flags: cfg.Features, Logger: log}
	a.ledger = command.NewLedgerHandler(deps)
	a.reader = query.NewReader(query.Deps{Store: a.store, Outlines: outlines, Flags: cfg.Features, Logger: log})

	// ─────────────────────────────────────────────────────────────────────────
	// 4. TASKS
	// ─────────────────────────────────────────────────────────────────────────
	if opts.seed {
		if err := a.seed(ctx); err != nil {
			return err
		}
	}
	if opts.admin != "" {
		if err := a.createAdmin(ctx, opts.admin); err != nil {
			return err
		}
	}
	if opts.audit {
		if err := a.auditAll(ctx); err != nil {
			return err
		}
	}
	if opts.outline != "" {
		if err := a.printOutline(ctx, opts.outline); err != nil {
			return err
		}
	}
	if opts.watch {
		return a.watch(ctx)
	}
	return nil
}

func (a *app) openStore(ctx context.Context, opts options) error {
	if a.cfg.Ledger.Store == config.StoreMemory {
		if opts.rollback || opts.seed {
			return errors.New("-rollback and -seed need STORE_DRIVER=postgres")
		}
		a.store = memory.New(memory.WithRetrier(retry.DatabaseRetrier(a.cfg.Ledger.TxAttempts, shared.IsRetryable)))
		a.log.Warn("using in-memory store; nothing is persisted")
		return nil
	}

	db := a.cfg.Database
	pgCfg := postgres.DefaultConfig(db.URL)
	pgCfg.MaxConns = int32(db.MaxOpenConns)
	pgCfg.MinConns = int32(db.MinIdleConns)
	pgCfg.MaxConnLifetime = db.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = db.ConnMaxIdleTime

	a.log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() {
		a.log.Info("closing database connection...")
		conn.Close()
	})

	migrator := postgres.NewMigrator(conn)
	if opts.rollback {
		version, err := migrator.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
		a.log.Info("rolled back migration", logger.Int("version", version))
		return printStatus(ctx, migrator)
	}
	if opts.migrate && a.cfg.Ledger.AutoMigrate {
		n, err := migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.log.Info("database schema is up to date", logger.Int("applied", n))
	}
	if err := printStatus(ctx, migrator); err != nil {
		return err
	}
	if err := a.logPoolHealth(ctx, conn); err != nil {
		return err
	}

	a.pg = postgres.NewStore(conn,
		postgres.WithTxAttempts(a.cfg.Ledger.TxAttempts),
		postgres.WithTxTimeout(db.QueryTimeout),
		postgres.WithLogger(a.log),
	)
	a.store = a.pg
	return nil
}

// logPoolHealth reports ping latency and pool usage after the schema check.
func (a *app) logPoolHealth(ctx context.Context, conn *postgres.Connection) error {
	h, err := conn.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check database health: %w", err)
	}
	if !h.Healthy {
		return fmt.Errorf("database unhealthy: %s", h.Error)
	}
	a.log.Info("database pool healthy",
		logger.Duration("ping", h.PingLatency),
		logger.Int("total_conns", int(h.TotalConns)),
		logger.Int("idle_conns", int(h.IdleConns)),
		logger.Int("max_conns", int(h.MaxConns)),
	)
	return nil
}

// wireEvents builds the event bus. With Redis it fans events out to other
// instances and keeps the outline cache and the seat board current. The
// returned cache is nil without Redis.
func (a *app) wireEvents(ctx context.Context) query.OutlineCache {
	local := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: a.log})
	a.bus = local
	a.closers = append(a.closers, func() { _ = local.Close() })

	rc := a.cfg.Redis
	if rc.Disabled {
		return nil
	}
	addr := rc.RedisAddr()
	cache, err := redis.NewCache(redis.Config{
		URL:          rc.URL,
		Addr:         addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	if err != nil {
		a.log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return nil
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })

	fanout := a.cfg.Features.IsEnabled(config.FeatureEventFanout)
	a.log.Debug("redis features", logger.Bool("event_fanout", fanout))
	if fanout {
		remote, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
			Client:      cache.Client(),
			ChannelName: rc.EventChannel,
			Logger:      a.log,
		})
		if err != nil {
			a.log.Warn("redis event fan-out disabled", logger.Err(err))
		} else {
			a.bus = remote
			a.closers = append(a.closers, func() { _ = remote.Close() })
		}
	}

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		a.log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	outlines := redis.NewOutlineCache(cache, rc.OutlineTTL).WithBreaker(breaker)
	board := redis.NewSeatBoard(cache)
	inv := redis.NewInvalidator(outlines, board, a.log)
	if err := inv.Register(a.bus); err != nil {
		a.log.Warn("cache invalidation disabled", logger.Err(err))
		return nil
	}
	a.board = board
	a.log.Info("Redis connection established", logger.String("addr", addr))
	return outlines
}

func (a *app) seed(ctx context.Context) error {
	if a.pg == nil {
		return errors.New("seed needs the postgres store")
	}
	res, err := postgres.Seed(ctx, a.pg)
	if err != nil {
		return err
	}
	if res.Skipped {
		a.log.Info("seed skipped, batches already exist")
		return nil
	}
	a.log.Info("seeded sample data", logger.CourseID(res.CourseID), logger.BatchID(res.BatchID))
	return nil
}

// createAdmin registers an admin account. An existing email is not an error.
func (a *app) createAdmin(ctx context.Context, email string) error {
	users := command.NewUserHandler(
		command.Deps{Store: a.store, Publisher: a.bus, Flags: a.cfg.Features, Logger: a.log},
		security.NewBcryptHasher(),
	)
	_, err := users.CreateUser(ctx, command.CreateUserCommand{
		Email:    email,
		FullName: "Administrator",
		Role:     "admin",
		Password: os.Getenv("LEDGER_ADMIN_PASSWORD"),
	})
	if shared.IsAlreadyExists(err) {
		a.log.Info("admin user already exists", logger.String("email", email))
		return nil
	}
	return err
}

func (a *app) seatAuditJob() *jobs.SeatAuditJob {
	job := jobs.NewSeatAuditJob(a.reader, a.ledger, a.log)
	if a.board != nil {
		job.WithBoard(a.board)
	}
	return job
}

// auditAll prints one seat audit pass. Drift is an error; a board that
// lags behind is only shown.
func (a *app) auditAll(ctx context.Context) error {
	report, err := a.seatAuditJob().Audit(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tCODE\tSTORED\tROWS\tBOARD\tOK")
	for _, row := range report.Rows {
		board := "-"
		if row.OnBoard {
			board = strconv.Itoa(row.Board)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%t\n", row.BatchID, row.Code, row.Stored, row.SeatHolders, board, row.Consistent())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if report.Drift > 0 {
		return fmt.Errorf("%w in %d batch(es)", jobs.ErrSeatDrift, report.Drift)
	}
	return nil
}

// watch runs the seat audit on a schedule until ctx is cancelled. Drift is
// logged, not fatal.
func (a *app) watch(ctx context.Context) error {
	sched := scheduler.New(scheduler.Config{Logger: a.log})
	job := a.seatAuditJob()
	if err := sched.Register(job, scheduler.Every(a.cfg.Ledger.AuditInterval)); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.log.Info("watching seat counts", logger.Duration("interval", a.cfg.Ledger.AuditInterval))

	<-ctx.Done()
	return sched.Stop()
}

func (a *app) printOutline(ctx context.Context, courseID string) error {
	outline, err := a.reader.CourseOutline(ctx, courseID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outline)
}

func printStatus(ctx context.Context, m *postgres.Migrator) error {
	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, mg := range status {
		applied := "-"
		if mg.IsApplied {
			applied = mg.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", mg.Version, mg.Name, applied)
	}
	return w.Flush()
}

func setupLogger(cfg *config.Config) *logger.Logger {
	format := logger.FormatJSON
	if cfg.Observability.LogFormat == "text" {
		format = logger.FormatText
	}
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     level,
		Format:    format,
		AddCaller: cfg.App.Debug,
	}).With(logger.String("app", cfg.App.Name))
}
