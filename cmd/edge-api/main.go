// Command edge-api serves the celebrity profile API behind the edge cache
// and rate limiter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/7and1/famouspeople.id-sub000/internal/profiles"
	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/7and1/famouspeople.id-sub000/pkg/config"
	"github.com/7and1/famouspeople.id-sub000/pkg/deferred"
	"github.com/7and1/famouspeople.id-sub000/pkg/httpapi"
	"github.com/7and1/famouspeople.id-sub000/pkg/logging"
	"github.com/7and1/famouspeople.id-sub000/pkg/ratelimit"
	"github.com/7and1/famouspeople.id-sub000/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const redisPingTimeout = 3 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "edge-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("edge-api", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML or JSON config file")
	printConfig := fs.Bool("print-config", false, "print the effective configuration and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if *printConfig {
		return config.WriteYAML(stdout, cfg)
	}

	logger := logging.Setup(cfg.Log.LoggingConfig(nil))

	loader.Watch(func(next config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid config reload")
			return
		}
		logging.SetLevel(logging.LogLevel(next.Log.Level))
		logger.Info().Str("level", next.Log.Level).Msg("Config reloaded")
	})

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.serve(ctx)
}

type app struct {
	cfg    config.Config
	logger zerolog.Logger
	server *http.Server
	pool   *deferred.Pool
	redis  *redis.Client
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	dir, err := loadProfiles(cfg.Profiles)
	if err != nil {
		return nil, err
	}

	tiers, err := cfg.RateLimit.LimiterTiers()
	if err != nil {
		return nil, err
	}

	binding, redisClient := openStore(ctx, cfg.Store, logger)

	a := &app{cfg: cfg, logger: logger, redis: redisClient}

	var scheduler deferred.Scheduler
	if cfg.Deferred.Mode == config.DeferredPool {
		a.pool = deferred.NewPool(cfg.Deferred.PoolConfig(), logging.NewLogger("deferred"))
		scheduler = a.pool
	} else {
		inline := deferred.NewInline(logging.NewLogger("deferred"))
		inline.Timeout = cfg.Deferred.TaskTimeout
		scheduler = inline
	}

	storeLogger := logging.NewLogger("store")
	cacheAdapter := store.NewAdapter(binding, cfg.Cache.Prefix,
		store.WithTimeout(cfg.Store.Timeout), store.WithLogger(storeLogger))
	limitAdapter := store.NewAdapter(binding, cfg.RateLimit.Prefix,
		store.WithTimeout(cfg.Store.Timeout), store.WithLogger(storeLogger))

	managerCfg := cfg.Cache.ManagerConfig()
	managerCfg.Logger = logging.NewLogger("cache")

	gin.SetMode(cfg.Server.Mode)
	router := httpapi.NewRouter(httpapi.Deps{
		Cache: cache.NewManager(cacheAdapter, scheduler, managerCfg),
		Limiter: ratelimit.NewLimiter(limitAdapter, scheduler,
			ratelimit.WithTiers(tiers),
			ratelimit.WithLogger(logging.NewLogger("ratelimit"))),
		Directory:     dir,
		Probes:        map[string]httpapi.Pinger{"store": cacheAdapter},
		ServiceToken:  cfg.Auth.PurgeToken,
		TrustedHeader: cfg.RateLimit.TrustedHeader,
		SlowRequest:   cfg.Server.SlowRequest,
		Logger:        logging.NewLogger("http"),
	})

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("store", binding.String()).
		Str("deferred", cfg.Deferred.Mode).
		Int("profiles", dir.Len()).
		Bool("purge_enabled", cfg.Auth.PurgeToken != "").
		Msg("Edge API configured")

	return a, nil
}

// serve runs the server until ctx ends, then drains in-flight requests and
// deferred work.
func (a *app) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.close()
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.serveListener(ctx, ln)
}

func (a *app) serveListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting edge API")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if a.pool != nil {
		if err := a.pool.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain deferred work: %w", err))
		}
	}
	a.close()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.logger.Info().Msg("Shutdown complete")
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}

// openStore builds the store binding. An unreachable Redis leaves the
// store disabled so the API keeps serving uncached and unlimited.
func openStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (store.Binding, *redis.Client) {
	switch cfg.Backend {
	case config.BackendNone:
		return store.Disabled(), nil
	case config.BackendMemory:
		return store.Configured(store.NewMemoryStore()), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().
			Err(err).
			Str("addr", cfg.Redis.Addr).
			Msg("Redis unreachable, running with cache and rate limiting disabled")
		client.Close()
		return store.Disabled(), nil
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("Connected to Redis")
	return store.Configured(store.NewRedisStore(client)), client
}

func loadProfiles(cfg config.ProfilesConfig) (*profiles.StaticDirectory, error) {
	if cfg.File == "" {
		return profiles.LoadEmbedded()
	}
	return profiles.LoadFile(cfg.File)
}
