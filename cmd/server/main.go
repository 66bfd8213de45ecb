package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/pug-queue-backend/internal/allocator"
	"github.com/DoyleJ11/pug-queue-backend/internal/config"
	"github.com/DoyleJ11/pug-queue-backend/internal/database"
	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/httpapi"
	"github.com/DoyleJ11/pug-queue-backend/internal/hub"
	"github.com/DoyleJ11/pug-queue-backend/internal/kafka"
	"github.com/DoyleJ11/pug-queue-backend/internal/logger"
	"github.com/DoyleJ11/pug-queue-backend/internal/matchmaking"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/repository"
	"github.com/DoyleJ11/pug-queue-backend/internal/store"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

func main() {
	// A missing .env is fine; the environment wins anyway.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog, err := logger.New(cfg.App.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.OTel.Enabled,
		ServiceName:   cfg.OTel.ServiceName,
		Environment:   cfg.App.Environment,
		CollectorAddr: cfg.OTel.CollectorAddr,
	}); err != nil {
		return err
	}
	if err := metrics.Init(); err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := matchmaking.Deps{
		Store:  st,
		Rand:   engine.NewLockedRand(engine.NewRand(uint64(time.Now().UnixNano()))),
		Logger: zlog.Named("matchmaking"),
	}

	var sources []allocator.Source
	var routeOpts []httpapi.Option
	if cfg.Database.URL != "" {
		db, err := database.Connect(database.Config{
			URL:           cfg.Database.URL,
			SlowThreshold: cfg.Database.SlowThreshold,
			Debug:         cfg.IsDevelopment(),
		}, zlog)
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}
		pool := repository.NewServerPool(db)
		sources = append(sources, allocator.OwnerPool(pool), allocator.PublicPool(pool))
		players := repository.NewPlayerDirectory(db)
		matches := repository.NewMatchStore(db)
		deps.Users = players
		deps.Matches = matches
		routeOpts = append(routeOpts, httpapi.WithMatches(matches), httpapi.WithPlayers(players))
	} else {
		zlog.Warn("DATABASE_URL not set; matches will not be persisted")
	}
	if cfg.Allocator.ProvisionerURL != "" {
		sources = append(sources, allocator.NewProvisioner(cfg.Allocator.ProvisionerURL, cfg.Allocator.Timeout))
	}
	if len(sources) > 0 {
		deps.Servers = allocator.NewChain(zlog, sources...)
	}

	h := hub.NewHub(ctx, zlog)
	publishers := matchmaking.MultiPublisher{h}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := kafka.NewPublisher(ctx, kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			Source:   cfg.App.Name,
		}, zlog)
		if err != nil {
			return err
		}
		defer func() {
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kp.Close(fctx); err != nil {
				zlog.Warn("kafka close", zap.Error(err))
			}
		}()
		publishers = append(publishers, kp)
	}
	deps.Events = publishers

	coord := matchmaking.NewCoordinator(deps, matchmaking.Config{
		MaxQueuesPerOwner: cfg.Queue.MaxPerOwner,
		MinCapacity:       cfg.Queue.MinCapacity,
		DefaultCapacity:   cfg.Queue.DefaultCapacity,
		QueueTTL:          cfg.Queue.TTL,
		DefaultMode:       cfg.Queue.DefaultMode,
		SlugRetries:       cfg.Queue.SlugRetries,
		Rules:             cfg.Rules(),
		AllocationTimeout: cfg.Allocator.Timeout,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.SetupRoutes(coord, h, []byte(cfg.JWT.Secret), zlog, routeOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info("listening", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		err := srv.Shutdown(sctx)
		if terr := telemetry.Shutdown(sctx); terr != nil {
			zlog.Warn("telemetry shutdown", zap.Error(terr))
		}
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (store.Store, func(), error) {
	if cfg.Store.Backend != "redis" {
		zlog.Info("using in-memory queue store")
		return store.NewMemoryStore(nil), func() {}, nil
	}
	client, err := store.NewRedisClient(ctx, store.RedisConfig{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MaxRetries:    cfg.Redis.MaxRetries,
		RetryInterval: cfg.Redis.RetryInterval,
	})
	if err != nil {
		return nil, nil, err
	}
	return store.NewRedisStore(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil
}
