package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/book-delivery/internal/config"
	"github.com/iliyamo/book-delivery/internal/database"
	"github.com/iliyamo/book-delivery/internal/handler"
	"github.com/iliyamo/book-delivery/internal/observability/metrics"
	"github.com/iliyamo/book-delivery/internal/observability/tracing"
	"github.com/iliyamo/book-delivery/internal/queue"
	"github.com/iliyamo/book-delivery/internal/repository"
	"github.com/iliyamo/book-delivery/internal/router"
	"github.com/iliyamo/book-delivery/internal/service"
)

const serviceName = "book-delivery"

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Env, "prod") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, serviceName, cfg.Env)
	if err != nil {
		log.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.RateLimit.Enabled || cfg.Cache.Enabled {
		if rdb, err = config.NewRedisClient(cfg.Redis); err != nil {
			log.Warn("redis unavailable; rate limiting and caching disabled", slog.String("error", err.Error()))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	books := repository.NewBookRepo(db)
	orders := repository.NewOrderRepo(db)
	placement := repository.NewPlacementStore(db, books, orders)

	jwt := service.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTTL)
	authSvc := service.NewAuthService(users, tokens, jwt, cfg.Auth.RefreshTTL, cfg.Auth.BcryptCost, log)
	bookSvc := service.NewBookService(books)
	statsSvc := service.NewStatisticsService(orders)

	orderOpts := []service.OrderOption{service.WithRetry(cfg.Orders.RetryAttempts, cfg.Orders.RetryBackoff)}
	// the publisher outlives the HTTP server so orders accepted during
	// shutdown still get their event flushed
	pubCtx, stopPub := context.WithCancel(context.Background())
	pubDone := make(chan struct{})
	if cfg.AMQP.PublishEnabled {
		pub := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, log)
		go func() {
			defer close(pubDone)
			pub.Run(pubCtx)
		}()
		orderOpts = append(orderOpts, service.WithEventPublisher(pub))
	} else {
		close(pubDone)
	}
	defer func() {
		stopPub()
		<-pubDone
	}()
	orderSvc := service.NewOrderService(placement, orders, log, orderOpts...)

	if cfg.AMQP.ConsumerEnabled {
		consumer := &queue.Consumer{URL: cfg.AMQP.URL, Queue: cfg.AMQP.Queue, LogDir: cfg.AMQP.LogDir, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("order consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	}))
	e.Use(metrics.EchoMiddleware())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	router.RegisterRoutes(e, db)
	router.RegisterAPI(e, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc, log),
		Books:      handler.NewBookHandler(bookSvc, log),
		Orders:     handler.NewOrderHandler(orderSvc, log, cfg.Orders.RequestTimeout),
		Statistics: handler.NewStatisticsHandler(statsSvc, log),
	}, router.Deps{Cfg: cfg, DB: db, Redis: rdb, Validator: jwt, Log: log})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", slog.String("error", err.Error()))
	}
	log.Info("shutdown complete")
	return nil
}
