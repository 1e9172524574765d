package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"scilems/config"
	"scilems/controllers"
	"scilems/lending"
	"scilems/metrics"
	"scilems/middleware"
	"scilems/notify"
	"scilems/routes"
	"scilems/store"
	"scilems/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.Release())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Settings, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	utils.SetSecret(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using the development key")
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	repos, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// side effects
	var mailer notify.Mailer
	if cfg.MailEnabled() {
		mailer = utils.NewMailer(utils.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			CC:       cfg.MailCC,
		}, location)
	} else {
		logger.Warn("SMTP not configured, emails are disabled")
	}
	dispatcher := notify.NewDispatcher(
		notify.NewStoreSink(repos.Notifications),
		mailer,
		notify.StoreDirectory{Carts: repos.Carts, Users: repos.Users},
		notify.Config{
			Workers:     cfg.NotifyWorkers,
			QueueSize:   cfg.NotifyQueueSize,
			MaxAttempts: cfg.NotifyMaxAttempts,
			BaseBackoff: cfg.NotifyBackoff,
		},
		logger.Named("notify"),
	)
	dispatcher.Start(context.Background())

	svc := lending.NewService(repos, dispatcher, logger.Named("lending")).WithLocation(location)

	// overdue sweep
	var locker utils.Locker = utils.NoopLocker{}
	rdb, err := utils.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		locker = utils.NewRedisLocker(rdb)
	}
	scheduler, err := utils.ScheduleOverdueSweep(location, cfg.OverdueSweepAt, &utils.OverdueJob{
		Sweeper: svc,
		Lock:    locker,
		Log:     logger.Named("cron"),
	})
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	// http
	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("starting", zap.String("mode", gin.Mode()), zap.String("store", cfg.StoreDriver))

	r := gin.Default()

	metrics.InitMetrics()
	r.Use(middleware.PrometheusMiddleware())
	r.GET("/metrics", middleware.IPAllowList(cfg.MetricsAllow), gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	srv := controllers.NewSrv(svc, repos, location, logger.Named("http"))
	srv.SecureCookie = cfg.Release()
	routes.InitializeRoutes(r, srv)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
	return nil
}

// openStore picks the persistence backend. The memory driver keeps nothing
// across restarts and is meant for local runs.
func openStore(ctx context.Context, cfg config.Settings, logger *zap.Logger) (store.Repos, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using the in-memory store")
		return store.NewMemory().Repos(), func() {}, nil
	}

	client, db, err := config.ConnectDatabase(ctx, cfg, logger)
	if err != nil {
		return store.Repos{}, nil, err
	}
	closeFn := func() { disconnect(client, logger) }
	if err := config.EnsureIndexes(ctx, db); err != nil {
		closeFn()
		return store.Repos{}, nil, err
	}
	return store.NewMongo(db), closeFn, nil
}

func disconnect(client *mongo.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("mongo disconnect", zap.Error(err))
	}
}
