package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TH_treasure_hunt/internal/api"
	"TH_treasure_hunt/internal/blobstore"
	"TH_treasure_hunt/internal/events"
	"TH_treasure_hunt/internal/geo"
	"TH_treasure_hunt/internal/ledger"
	"TH_treasure_hunt/internal/middleware"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/internal/service"
	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	ledgerTickSchedule = "@every 1m"
	jobTimeout         = 2 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := events.NewBroker(0)

	repo, err := repository.New(cfg.Database, broker)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	network, err := selectNetwork(ctx, repo, cfg)
	if err != nil {
		zapLogger.Fatal("Failed to select network", zap.Error(err))
	}
	zapLogger.Info("Using network", zap.String("network", network.Key), zap.Int64("chain_id", network.ChainID))

	if cfg.Blobstore.KeyMaterial == "" {
		zapLogger.Warn("blobstore.keyMaterial is not set, new hunts are stored unsealed")
	}

	store := repo.WithChain(network.ChainID)
	ledgerClient := ledger.NewLocal(store, network, broker)
	blobs := blobstore.NewLocal(store)
	locations := geo.NewReported(cfg.Geo.MaxFixAge, cfg.Geo.WaitTimeout)

	clueResolver := service.NewClueResolver(store, ledgerClient, blobs, cfg.Blobstore.KeyMaterial)
	lifecycle := service.NewLifecycleService(store, store, ledgerClient, blobs, service.LifecycleConfig{
		FilterListing: cfg.Hunts.FilterListing,
		KeyMaterial:   cfg.Blobstore.KeyMaterial,
	})
	engine := service.NewVerificationEngine(store, clueResolver, locations, lifecycle, cfg.Engine)
	riddles := service.NewRiddleService(cfg.OpenAI.APIKey)
	svc := service.NewService(clueResolver, engine, lifecycle, riddles)

	reconciler := service.NewReconciler(store, clueResolver, ledgerClient)

	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(cfg.Reconcile.Schedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if _, err := reconciler.Run(jobCtx); err != nil {
			zapLogger.Error("Reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		zapLogger.Fatal("Failed to schedule reconcile", zap.String("schedule", cfg.Reconcile.Schedule), zap.Error(err))
	}
	_, err = c.AddFunc(ledgerTickSchedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if err := ledgerClient.Tick(jobCtx, time.Now()); err != nil {
			zapLogger.Error("Ledger tick failed", zap.Error(err))
		}
	})
	if err != nil {
		zapLogger.Fatal("Failed to schedule ledger tick", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	if cfg.TelegramAuth.BotToken != "" {
		notifier, err := service.NewTelegramNotifier(service.NotifierConfig{
			BotToken: cfg.TelegramAuth.BotToken,
			Debug:    cfg.TelegramAuth.Debug,
		}, store)
		if err != nil {
			zapLogger.Warn("Telegram notifications disabled", zap.Error(err))
		} else {
			go notifier.Run(ctx, broker.Subscribe(ctx))
		}
	}

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.BotToken, cfg.TelegramAuth.Debug)
	authorization := middleware.NewAuthorization(cfg.Hunts.Creators)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	api.NewHuntRoutes(a, svc, telegramAuth)
	api.NewClueRoutes(a, svc, telegramAuth)
	api.NewAdminRoutes(a, svc, svc, svc, telegramAuth, authorization)
	api.NewSessionRoutes(a, svc, broker, telegramAuth)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
}

// selectNetwork persists an explicitly configured network and otherwise
// keeps the one chosen on a previous run.
func selectNetwork(ctx context.Context, repo *repository.Repository, cfg *Config) (ledger.Network, error) {
	key := cfg.Network
	if !cfg.NetworkPinned {
		stored, err := repo.CurrentNetwork(ctx, cfg.Network)
		if err != nil {
			return ledger.Network{}, err
		}
		key = stored
	}

	network, err := ledger.ResolveNetwork(cfg.Networks, key)
	if err != nil {
		return ledger.Network{}, err
	}

	if err := repo.SetSetting(ctx, repository.SettingCurrentNetwork, network.Key); err != nil {
		return ledger.Network{}, err
	}

	return network, nil
}
