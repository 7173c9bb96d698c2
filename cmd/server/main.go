package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/iliyamo/salon-appointment-scheduler/internal/config"
	"github.com/iliyamo/salon-appointment-scheduler/internal/database"
	"github.com/iliyamo/salon-appointment-scheduler/internal/handler"
	"github.com/iliyamo/salon-appointment-scheduler/internal/metrics"
	"github.com/iliyamo/salon-appointment-scheduler/internal/middleware"
	"github.com/iliyamo/salon-appointment-scheduler/internal/notification"
	"github.com/iliyamo/salon-appointment-scheduler/internal/queue"
	"github.com/iliyamo/salon-appointment-scheduler/internal/reminder"
	"github.com/iliyamo/salon-appointment-scheduler/internal/repository"
	"github.com/iliyamo/salon-appointment-scheduler/internal/router"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("service", "salon-scheduler", "env", cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Error("migrate database", "error", err)
			os.Exit(1)
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		cancel()
		if err != nil {
			logger.Error("seed admin account", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("admin account created", "email", cfg.AdminEmail)
		}
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable; cache, rate limiting and shared event dedupe are disabled")
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulingMetrics(reg)

	sched := config.LoadSchedulingConfig()
	dispatchCfg := config.LoadDispatchConfig()
	store := repository.NewStore(db)

	var dedupe queue.Deduper = queue.NewMemoryDeduper(dispatchCfg.DedupeTTL)
	if rdb != nil {
		dedupe = queue.NewRedisDeduper(rdb, dispatchCfg.DedupePrefix, dispatchCfg.DedupeTTL)
	}
	dispatcher := queue.NewDispatcher(
		notification.NewRenderer(sched.Location, dispatchCfg.OwnerEmail),
		notification.NewLogNotifier(dispatchCfg.NotificationLog, logger),
		logger,
	).WithDeduper(dedupe).
		WithMetrics(m).
		WithMaxAttempts(dispatchCfg.MaxAttempts).
		WithBaseDelay(dispatchCfg.BaseDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		events scheduling.EventPublisher
		drain  func()
	)
	if dispatchCfg.RabbitMQURL != "" {
		topology := queue.Topology{
			Queue:           dispatchCfg.Queue,
			RetryDelay:      dispatchCfg.RetryDelay,
			MaxRedeliveries: dispatchCfg.MaxRedeliveries,
		}
		pub := queue.NewPublisher(dispatchCfg.RabbitMQURL, topology)
		events = pub
		consumer := queue.NewConsumer(dispatchCfg.RabbitMQURL, topology, dispatcher, logger)
		consumed := make(chan struct{})
		go func() {
			defer close(consumed)
			_ = consumer.Run(ctx)
		}()
		drain = func() {
			<-consumed
			_ = pub.Close()
		}
		logger.Info("booking events go through rabbitmq", "queue", dispatchCfg.Queue)
	} else {
		local := queue.NewLocalPublisher(dispatcher)
		events = local
		drain = local.Wait
		logger.Info("booking events dispatched in process")
	}

	scheduler := scheduling.NewScheduler(store, logger).
		WithPublisher(events).
		WithMetrics(m).
		WithLocation(sched.Location).
		WithPolicy(scheduling.Policy{
			SlotStep:               sched.SlotStep,
			CancellationNotice:     sched.CancellationNotice,
			AutoConfirm:            sched.AutoConfirm,
			DefaultMinAdvanceHours: sched.DefaultMinAdvanceHours,
			DefaultMaxAdvanceDays:  sched.DefaultMaxAdvanceDays,
		})

	remCfg := config.LoadReminderConfig()
	if remCfg.Enabled {
		rem := reminder.NewService(store, events, logger).
			WithMetrics(m).
			WithWindow(remCfg.Lead, remCfg.MinNotice).
			WithBatchLimit(remCfg.BatchLimit)
		c, err := rem.Start(ctx, remCfg.Schedule)
		if err != nil {
			logger.Error("start reminders", "error", err)
			os.Exit(1)
		}
		defer func() { <-c.Stop().Done() }()
	}

	housekeeping := cron.New()
	if _, err := housekeeping.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := tokens.PurgeExpired(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			logger.Warn("purge refresh tokens", "error", err)
			return
		}
		logger.Info("refresh tokens purged", "rows", n)
	}); err != nil {
		logger.Error("schedule token purge", "error", err)
		os.Exit(1)
	}
	housekeeping.Start()
	defer func() { <-housekeeping.Stop().Done() }()

	cacheCfg := config.LoadCacheConfig()
	adminServices := handler.NewAdminServiceHandler(scheduler, logger)
	adminServices.OnCatalogChange = func(ctx context.Context) {
		if err := middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix); err != nil {
			logger.Warn("purge catalog cache", "error", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.Register(e, router.Handlers{
		Health:        &handler.HealthHandler{DB: db},
		Auth:          handler.NewAuthHandler(cfg, users, tokens, logger),
		Public:        handler.NewPublicHandler(scheduler, logger),
		Bookings:      handler.NewBookingHandler(scheduler, store, users, logger),
		AdminServices: adminServices,
		AdminBookings: handler.NewAdminBookingHandler(scheduler, logger),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "timezone", sched.Location.String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	drain()
}
