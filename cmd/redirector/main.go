package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/redirector/internal/broadcast"
	"github.com/vadimbarashkov/redirector/internal/cache"
	"github.com/vadimbarashkov/redirector/internal/clicks"
	"github.com/vadimbarashkov/redirector/internal/config"
	dbpostgres "github.com/vadimbarashkov/redirector/internal/database/postgres"
	"github.com/vadimbarashkov/redirector/internal/ratelimit"
	"github.com/vadimbarashkov/redirector/internal/service"
	"github.com/vadimbarashkov/redirector/pkg/postgres"

	myhttp "github.com/vadimbarashkov/redirector/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("redirector", httplog.Options{
		LogLevel: logLevel(cfg.Env),
		JSON:     cfg.Env == config.EnvProd,
		Concise:  cfg.Env != config.EnvProd,
	})

	db, err := postgres.Connect(ctx, cfg.Postgres.DSN(), postgres.Pool{
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return err
	}

	// The cache is optional: without a redis address the redirect path
	// always falls through to storage.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, link cache degraded", slog.Any("err", err))
		}
	}
	linkCache := cache.New(redisClient, cfg.Cache.TTL, logger.Logger)

	limiter := ratelimit.New(map[ratelimit.Tier]ratelimit.Limit{
		ratelimit.TierBurst:    {Max: cfg.RateLimit.BurstMax, Window: cfg.RateLimit.BurstWindow},
		ratelimit.TierAPI:      {Max: cfg.RateLimit.APIMax, Window: cfg.RateLimit.APIWindow},
		ratelimit.TierAuth:     {Max: cfg.RateLimit.AuthMax, Window: cfg.RateLimit.AuthWindow},
		ratelimit.TierCreate:   {Max: cfg.RateLimit.CreateMax, Window: cfg.RateLimit.CreateWindow},
		ratelimit.TierRedirect: {Max: cfg.RateLimit.RedirectMax, Window: cfg.RateLimit.RedirectWindow},
	})
	sweeper := ratelimit.NewSweeper(limiter, cfg.RateLimit.SweepInterval, logger.Logger)

	linkRepo := dbpostgres.NewLinkRepository(db)
	clickRepo := dbpostgres.NewClickRepository(db)

	buffer := clicks.NewBuffer(cfg.Buffer.MaxSize, logger.Logger)
	flusher := clicks.NewFlusher(buffer, clickRepo, cfg.Buffer.FlushInterval, logger.Logger)
	hub := broadcast.NewHub()

	redirectSvc := service.NewRedirectService(linkRepo, linkCache, buffer, flusher, hub, service.NopEnricher{})
	linkSvc := service.NewLinkService(linkRepo, linkCache, cfg.ShortCodeLength)

	r := myhttp.NewRouter(myhttp.Deps{
		Logger:          logger,
		RedirectSvc:     redirectSvc,
		LinkSvc:         linkSvc,
		Limiter:         limiter,
		Hub:             hub,
		JWTSecret:       []byte(cfg.JWT.Secret),
		PasswordPageURL: cfg.PasswordPageURL,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return flusher.Run(ctx)
	})

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func logLevel(env string) slog.Level {
	if env == config.EnvProd {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
