package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/duomatch/duomatch/internal/config"
	"github.com/duomatch/duomatch/internal/database"
	"github.com/duomatch/duomatch/internal/refresh"
	"github.com/duomatch/duomatch/internal/sessions"
	"github.com/duomatch/duomatch/pkg/logger"
	"github.com/duomatch/duomatch/pkg/metrics"
)

// The sweeper removes expired refresh tokens and sessions. It runs once by
// default; give -interval to keep it running as a sidecar.
func main() {
	interval := flag.Duration("interval", 0, "sweep repeatedly at this interval (0 = run once)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(os.Getenv("LOG_LEVEL"), cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	var refreshStore refresh.Store
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			log.Fatal("mongodb connect failed", zap.Error(err))
		}
		defer func() { _ = client.Disconnect(ctx) }()
		refreshStore = refresh.NewMongoStore(client.Database(cfg.MongoDB.Database).Collection("refresh_tokens"))
	}

	var sessionRepo sessions.Repository
	if addr := cfg.RedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connect failed", zap.String("addr", addr), zap.Error(err))
		}
		sessionRepo = sessions.NewRedisRepository(client, "session:")
	}

	if refreshStore == nil && sessionRepo == nil {
		log.Fatal("nothing to sweep: neither MONGODB_URI nor REDIS_HOST is set")
	}

	sweep := func() {
		if refreshStore != nil {
			n, err := refreshStore.SweepExpired(ctx)
			if err != nil {
				log.Error("refresh token sweep failed", zap.Error(err))
			} else {
				metrics.SessionsSwept.WithLabelValues("refresh_tokens").Add(float64(n))
				log.Info("swept refresh tokens", zap.Int64("removed", n))
			}
		}
		if sessionRepo != nil {
			n, err := sessionRepo.SweepExpired(ctx)
			if err != nil {
				log.Error("session sweep failed", zap.Error(err))
			} else {
				metrics.SessionsSwept.WithLabelValues("sessions").Add(float64(n))
				log.Info("swept sessions", zap.Int64("removed", n))
			}
		}
	}

	sweep()
	if *interval <= 0 {
		return
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for range ticker.C {
		sweep()
	}
}
