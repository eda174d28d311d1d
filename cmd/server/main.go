package main // Entry point package

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/changefeed"
	"github.com/iliyamo/family-kitchen/internal/config"
	"github.com/iliyamo/family-kitchen/internal/database"
	"github.com/iliyamo/family-kitchen/internal/handler"
	"github.com/iliyamo/family-kitchen/internal/logger"
	"github.com/iliyamo/family-kitchen/internal/middleware"
	"github.com/iliyamo/family-kitchen/internal/realtime"
	"github.com/iliyamo/family-kitchen/internal/repository"
	"github.com/iliyamo/family-kitchen/internal/router"
)

func main() {
	migrate := flag.Bool("migrate", false, "create missing tables before serving")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "kitchen-server")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()
	if *migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			zl.Fatal("migrate failed", zap.Error(err))
		}
		zl.Info("schema up to date")
	}

	// Redis is optional: without it the cache and rate limiter are off.
	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	feed, err := newFeed(cfg, rdb, zl)
	if err != nil {
		zl.Fatal("change feed", zap.Error(err))
	}
	defer feed.Close()

	// ---- Repositories ----
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	meals := repository.NewMealRepo(db)

	// ---- Realtime + cache ----
	hub := realtime.NewHub(zl)
	var cache *middleware.ResponseCache
	var limiter echo.MiddlewareFunc
	if rdb != nil {
		cache = middleware.NewResponseCache(config.LoadCacheConfig(), rdb, zl)
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		// Events from other instances: drop the cache before clients are
		// told to re-read.
		consumers := changefeed.Fanout(cache.InvalidateOnChange, hub.HandleChange)
		if err := feed.Run(ctx, consumers); err != nil && !errors.Is(err, context.Canceled) {
			zl.Error("change feed stopped", zap.Error(err))
		}
	}()

	// ---- Handlers ----
	auth := handler.NewAuthHandler(cfg, users, tokens, profiles)
	var oauth *handler.OAuthHandler
	if cfg.OAuth.ClientID != "" {
		var states handler.StateStore = handler.NewMemoryStateStore()
		if rdb != nil {
			states = handler.NewRedisStateStore(rdb)
		}
		oauth = handler.NewOAuthHandler(cfg.OAuth, auth, states, zl)
	}
	kitchen := handler.NewKitchenHandler(
		meals,
		repository.NewSelectionRepo(db),
		repository.NewConfirmedRepo(db),
		repository.NewInventoryRepo(db),
		repository.NewCartRepo(db),
		repository.NewChatRepo(db),
		feed, zl,
	)
	profile := handler.NewProfileHandler(profiles, meals, feed, zl)
	if cache != nil {
		kitchen.UseCache(cache)
		profile.UseCache(cache)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl))

	router.RegisterRoutes(e, handler.Ready(db))
	router.RegisterAuth(e, auth, oauth, cfg.JWTSecret)
	router.RegisterProfile(e, profile, cfg.JWTSecret)
	router.RegisterFamily(e, kitchen, handler.NewChangesHandler(hub), router.FamilyDeps{
		JWTSecret: cfg.JWTSecret,
		Profiles:  profiles,
		Cache:     cache,
		RateLimit: limiter,
	})

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("changefeed", cfg.ChangeFeedKind()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("shutdown", zap.Error(err))
	}
}

// newFeed picks the change feed transport. The broker and Redis feeds let
// several server instances share events; the local feed only reaches
// subscribers in this process.
func newFeed(cfg config.Config, rdb *redis.Client, log *zap.Logger) (changefeed.Feed, error) {
	switch cfg.ChangeFeedKind() {
	case "amqp":
		if cfg.AMQPURL == "" {
			return nil, errors.New("CHANGEFEED=amqp needs RABBITMQ_URL or AMQP_URL")
		}
		return changefeed.NewAMQP(cfg.AMQPURL, log), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("CHANGEFEED=redis needs a reachable redis")
		}
		return changefeed.NewRedis(rdb, log), nil
	default:
		return changefeed.NewLocal(log), nil
	}
}
