package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/audit"
	"github.com/MrSnakeDoc/qrlink/internal/cache"
	"github.com/MrSnakeDoc/qrlink/internal/config"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/idgen"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/management"
	"github.com/MrSnakeDoc/qrlink/internal/qrimage"
	"github.com/MrSnakeDoc/qrlink/internal/redis"
	"github.com/MrSnakeDoc/qrlink/internal/resolver"
	"github.com/MrSnakeDoc/qrlink/internal/scheduler"
	"github.com/MrSnakeDoc/qrlink/internal/seed"
	"github.com/MrSnakeDoc/qrlink/internal/stats"
	"github.com/MrSnakeDoc/qrlink/internal/store"
	"github.com/MrSnakeDoc/qrlink/internal/store/memory"
	"github.com/MrSnakeDoc/qrlink/internal/store/postgres"
	"github.com/MrSnakeDoc/qrlink/internal/utils"
	"github.com/MrSnakeDoc/qrlink/internal/version"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	handler http.Handler

	store   store.Store
	closers []namedCloser // closed in reverse order on shutdown
	audit   *audit.Logger
	warmer  *scheduler.CacheWarmer
	seeder  *seed.Seeder
}

type namedCloser struct {
	name string
	c    io.Closer
}

// New loads the configuration from the environment and wires every component.
// It exits the process when a backend cannot be reached.
func New() *App {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a, err := Build(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("failed to initialize qrlink: %v", err)
		os.Exit(1)
	}
	return a
}

// Build wires the application from cfg without starting anything.
func Build(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: loggerClient}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, namedCloser{"store", st})

	c, err := a.openCache(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	res := resolver.New(st, st, c, cfg.ResolveCacheTTL, loggerClient.Named("resolver"))
	images := qrimage.New(res, c, cfg.BaseURL, cfg.ImageCacheTTL, loggerClient.Named("qrimage"))
	gen := idgen.New(st, idgen.WithMaxAttempts(cfg.IDMaxAttempts))
	mgmt := management.New(st, gen, res, images, loggerClient.Named("management"))
	agg := stats.New(st)

	a.audit = audit.New(st, loggerClient.Named("audit"), audit.Options{
		QueueSize:    cfg.AuditQueueSize,
		Workers:      cfg.AuditWorkers,
		WriteTimeout: cfg.AuditWriteTimeout,
		DropPolicy:   audit.ParseDropPolicy(cfg.AuditDropPolicy),
	})

	var warmTrigger chan struct{}
	if cfg.WarmInterval > 0 {
		warmTrigger = make(chan struct{}, 1)
		a.warmer = scheduler.NewCacheWarmer(agg, res, loggerClient.Named("warmer"), cfg.WarmInterval, cfg.WarmTopN, warmTrigger)
	}

	if cfg.SeedFile != "" {
		a.seeder = seed.NewSeeder(cfg.SeedFile, st, loggerClient.Named("seed"))
	}

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		BaseURL:         cfg.BaseURL,
		AllowedHosts:    cfg.AllowedHosts,
		AdminCIDRS:      cfg.AdminAllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Resolver:        res,
		Images:          images,
		Audit:           a.audit,
		Stats:           agg,
		Management:      mgmt,
		Store:           st,
		Cache:           c,
		WarmTrigger:     warmTrigger,
	}

	a.handler = httpserver.NewRouter(loggerClient, d)
	a.server = httpserver.New(cfg, loggerClient, a.handler)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store {
	case config.StorePostgres:
		st, err := postgres.Open(ctx, a.cfg.DatabaseDSN, postgres.Options{
			MaxOpenConns:    a.cfg.DBMaxOpenConns,
			MaxIdleConns:    a.cfg.DBMaxIdleConns,
			ConnMaxLifetime: a.cfg.DBConnMaxLife,
			Retry:           a.backoff(),
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if a.cfg.DBMigrate {
			if err := postgres.Migrate(st.DB(), a.logger); err != nil {
				_ = st.Close()
				return nil, err
			}
		}
		a.logger.Info("store initialized", logger.String("backend", config.StorePostgres))
		return st, nil
	default:
		a.logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	switch a.cfg.Cache {
	case config.CacheRedis:
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:         a.cfg.RedisAddr,
			User:         a.cfg.RedisUser,
			Password:     a.cfg.RedisPassword,
			DB:           a.cfg.RedisDB,
			DialTimeout:  a.cfg.RedisDT,
			ReadTimeout:  a.cfg.RedisRT,
			WriteTimeout: a.cfg.RedisWT,
			PoolSize:     a.cfg.RedisPoolSize,
			Retry:        a.backoff(),
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, namedCloser{"redis", client})
		a.logger.Info("cache initialized", logger.String("backend", config.CacheRedis))
		return cache.NewRedis(client, a.cfg.RedisNamespace), nil
	default:
		a.logger.Info("cache initialized",
			logger.String("backend", config.CacheMemory),
			logger.Int("capacity", a.cfg.CacheCapacity))
		return cache.NewMemory(a.cfg.CacheCapacity), nil
	}
}

func (a *App) backoff() utils.Backoff {
	return utils.Backoff{
		Initial:       a.cfg.ConnectRetry,
		Max:           a.cfg.ConnectMaxWait,
		Total:         a.cfg.ConnectTimeout,
		PerAttempt:    a.cfg.ConnectPingTimeout,
		WarnThreshold: a.cfg.ConnectWarnAttempts,
	}
}

// Handler exposes the router, for in-process tests.
func (a *App) Handler() http.Handler { return a.handler }

// Start seeds the store and launches the background workers.
func (a *App) Start(ctx context.Context) error {
	if a.seeder != nil {
		res, err := a.seeder.Apply(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply seed file: %w", err)
		}
		a.logger.Info("seed file applied",
			logger.String("file", a.cfg.SeedFile),
			logger.Int("created", res.Created),
			logger.Int("skipped", res.Skipped))
	}

	a.audit.Start(ctx)

	if a.warmer != nil {
		if err := a.warmer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cache warmer: %w", err)
		}
		a.logger.Info("cache warmer started",
			logger.Duration("interval", a.cfg.WarmInterval),
			logger.Int("top_n", a.cfg.WarmTopN))
	}
	return nil
}

// Shutdown stops the workers, flushes the audit queue and closes the backends.
func (a *App) Shutdown() {
	if a.warmer != nil {
		a.warmer.Stop()
	}
	a.audit.Stop()
	a.closeAll()
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		utils.CloseOrWarn(a.closers[i].c, a.closers[i].name, a.logger)
	}
	a.closers = nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting qrlink %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.Shutdown()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.Shutdown()

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ qrlink stopped cleanly")
	return nil
}
