package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/api"
	"github.com/d60-Lab/pumproom/internal/api/handler"
	"github.com/d60-Lab/pumproom/internal/cache"
	"github.com/d60-Lab/pumproom/internal/distill"
	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/internal/pump"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/internal/stream"
	rediscli "github.com/d60-Lab/pumproom/pkg/cache"
	"github.com/d60-Lab/pumproom/pkg/database"
	"github.com/d60-Lab/pumproom/pkg/errtrack"
	"github.com/d60-Lab/pumproom/pkg/logger"
	"github.com/d60-Lab/pumproom/pkg/tracing"
)

// @title pumproom API
// @version 1.0
// @description 情报源聚合网关
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := errtrack.Init(cfg.Sentry, cfg.App.Env); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer errtrack.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name)
	if err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.L().Fatal("db open failed", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		logger.L().Fatal("auto-migrate failed", zap.Error(err))
	}

	rdb, err := rediscli.NewRedis(cfg.Redis)
	if err != nil {
		// 缓存不可用时直接查库
		logger.Warn("redis unavailable, recent documents served from db", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	registry, err := platform.FromConfig(cfg.Reservoirs)
	if err != nil {
		logger.L().Fatal("build reservoirs failed", zap.Error(err))
	}

	reservoirRepo := repository.NewReservoirRepository(db)
	stampRepo := repository.NewStampRepository(db)
	streamRepo := repository.NewStreamRepository(db)
	watcherRepo := repository.NewWatcherRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	inRepo := repository.NewIncomingEdgeRepository(db)

	reservoirSvc := service.NewReservoirService(reservoirRepo)
	if err := reservoirSvc.Sync(ctx, cfg.Reservoirs); err != nil {
		logger.L().Fatal("sync reservoirs failed", zap.Error(err))
	}

	defs := make([]*distill.Distillery, 0, len(cfg.Distilleries))
	for _, d := range cfg.Distilleries {
		defs = append(defs, distill.FromConfig(d))
	}
	recent := cache.NewRecentDocuments(docRepo, rdb, cfg.Redis.TTL)
	distillery := service.NewDistillery(db, recent, defs)

	room := pump.NewPumpRoom(reservoirRepo, registry, stampRepo)
	searchSvc := service.NewSearchService(room, distillery)
	controller := stream.NewController(ctx, reservoirRepo, streamRepo, stampRepo, registry, distillery)

	authSvc := service.NewAuthService(watcherRepo, cfg.JWT)
	if err := authSvc.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Warn("ensure admin failed", zap.Error(err))
	}

	notifier := service.NewNotifier(cfg.Mail, stampRepo)
	fanout := service.NewAlertFanout(db, subRepo, watcherRepo, notifier,
		cfg.Alerts.Workers, cfg.Alerts.BatchSize, cfg.Alerts.ClaimLimit, cfg.Alerts.PollInterval)
	stopFanout := fanout.Start()

	replicator := service.NewEdgeReplicator(inRepo, cfg.Graph.ReplicatorQueue)
	stopReplicator := replicator.Start(cfg.Graph.ReplicatorWorkers)
	graphSvc := service.NewGraphService(repository.NewNodeRepository(db), repository.NewEdgeRepository(db), inRepo, replicator)

	scheduler := service.NewScheduler(ctx, searchSvc)
	for _, sc := range cfg.Schedules {
		if _, err := scheduler.Add(sc); err != nil {
			logger.L().Fatal("add schedule failed", zap.String("schedule", sc.Name), zap.Error(err))
		}
	}
	scheduler.Start()

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.New(handler.Deps{
		DB:         db,
		Auth:       authSvc,
		Reservoirs: reservoirSvc,
		Search:     searchSvc,
		Streams:    controller,
		Stamps:     stampRepo,
		Distillery: distillery,
		Alerts:     service.NewAlertService(subRepo, alertRepo, distillery),
		Graph:      graphSvc,
		Replicator: replicator,
		Fanout:     fanout,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(h, authSvc, cfg.App.Name),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
	// ctx 已取消，流会尽快结束并回写状态
	controller.Wait()
	if err := stopFanout(shutdownCtx); err != nil {
		logger.Warn("alert fanout stop", zap.Error(err))
	}
	if err := stopReplicator(shutdownCtx); err != nil {
		logger.Warn("edge replicator stop", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
