package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sentinelrisk/screening/api"
	"github.com/sentinelrisk/screening/internal/config"
	"github.com/sentinelrisk/screening/internal/engine"
	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/match"
	"github.com/sentinelrisk/screening/internal/screening/refcache"
	"github.com/sentinelrisk/screening/internal/screening/risk"
	"github.com/sentinelrisk/screening/internal/screening/sources"
	"github.com/sentinelrisk/screening/internal/watcher"
	"github.com/sentinelrisk/screening/pkg/logger"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck
	sugar := zl.Sugar()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	matcher := match.NewMatcher(match.DefaultConfig())

	sdnCache := refcache.NewListCache("ofac_sdn", cfg.Sources.SDN.URLs(), cfg.Sources.SDN.TTL,
		httpClient, refcache.ParseSDN, sugar)

	var walletCaches []*refcache.ListCache
	if cfg.Sources.WalletList.URL != "" {
		walletCaches = append(walletCaches, refcache.NewListCache("sanctioned_wallets",
			cfg.Sources.WalletList.URLs(), cfg.Sources.WalletList.TTL,
			httpClient, refcache.ParseAddressList, sugar))
	}

	adapters := []screening.Adapter{
		sources.NewSDNAdapter(sdnCache, matcher, sugar),
		sources.NewWalletAdapter(walletCaches, matcher, sugar),
		sources.NewOpenSanctionsAdapter(cfg.Sources.OpenSanctions.BaseURL, cfg.Sources.OpenSanctions.APIKey, matcher, sugar),
		sources.NewCourtRecordsAdapter(cfg.Sources.CourtRecords.BaseURL, cfg.Sources.CourtRecords.APIKey, sugar),
	}
	if cfg.Sources.OffshoreLeaks.Enabled {
		adapters = append(adapters, sources.NewOffshoreLeaksAdapter(cfg.Sources.OffshoreLeaks.BaseURL, matcher, sugar))
	}

	svc := engine.NewService(adapters, risk.NewAggregator(cfg.Risk, sugar), cfg.Sources.FanOutTimeout, sugar)

	var store watcher.WatchlistStore = watcher.NewMemoryWatchlist()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = watcher.NewRedisWatchlist(rdb)
		sugar.Infow("Using Redis watchlist store", "address", cfg.Redis.Address)
	}

	var publisher watcher.AlertPublisher = watcher.NopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = watcher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		sugar.Infow("Publishing alerts to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AlertTopic)
	}

	w := watcher.New(watcher.Options{
		Feeds:     cfg.Watcher.Feeds,
		Store:     store,
		Alerts:    watcher.NewAlertBuffer(cfg.Watcher.AlertCapacity),
		Publisher: publisher,
		Backoff:   cfg.Watcher.Backoff,
		Logger:    sugar,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	w.Start(ctx)

	server := api.NewServer(zl, svc, w, cfg.Server.AllowedOrigins)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sugar.Infow("Starting HTTP server", "addr", addr, "sources", svc.Sources())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("HTTP shutdown failed", "error", err)
	}

	w.Wait()
	if err := publisher.Close(); err != nil {
		sugar.Errorw("Publisher close failed", "error", err)
	}
	sugar.Info("Shutdown complete")
}
