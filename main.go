package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/duomatch/duomatch/handlers"
	"github.com/duomatch/duomatch/internal/config"
	"github.com/duomatch/duomatch/internal/database"
	"github.com/duomatch/duomatch/internal/oauth"
	"github.com/duomatch/duomatch/internal/refresh"
	"github.com/duomatch/duomatch/internal/sessions"
	"github.com/duomatch/duomatch/internal/storage"
	"github.com/duomatch/duomatch/internal/tokens"
	"github.com/duomatch/duomatch/internal/users"
	"github.com/duomatch/duomatch/pkg/logger"
	"github.com/duomatch/duomatch/pkg/metrics"
	"github.com/duomatch/duomatch/pkg/middleware"
)

var startTime = time.Now()

func main() {
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

	tokenMgr, err := tokens.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		log.Fatal("token manager init failed", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorHandler(log), middleware.Recovery(log))

	// Lightweight CORS for the popup-based login flow; production fronts
	// this with a stricter policy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Redis: sessions, blacklist and the distributed rate limiter all ride
	// on it; everything degrades to in-process fallbacks without it.
	var redisClient *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, using in-memory fallbacks", zap.String("addr", addr), zap.Error(err))
		} else {
			redisClient = client
			log.Info("connected to redis", zap.String("addr", addr))
		}
	}
	blacklist := sessions.NewBlacklist(redisClient)

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB: users + refresh token ledger. Retry to tolerate startup races.
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		backoff := time.Second
		for attempt := 1; attempt <= 5; attempt++ {
			mongoClient, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if err == nil {
				break
			}
			log.Warn("mongodb connect failed", zap.Int("attempt", attempt), zap.Error(err))
			if attempt < 5 {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if mongoClient != nil {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
		}
	}

	var userRepo users.Repository
	var refreshStore refresh.Store
	if mongoClient != nil {
		db := mongoClient.Database(cfg.MongoDB.Database)
		mur := users.NewMongoRepository(db.Collection("users"))
		if err := mur.EnsureIndexes(ctx); err != nil {
			log.Fatal("user indexes failed", zap.Error(err))
		}
		mrs := refresh.NewMongoStore(db.Collection("refresh_tokens"))
		if err := mrs.EnsureIndexes(ctx); err != nil {
			log.Fatal("refresh token indexes failed", zap.Error(err))
		}
		userRepo = mur
		refreshStore = mrs
		log.Info("using mongodb storage", zap.String("database", cfg.MongoDB.Database))
	} else {
		log.Warn("mongodb unavailable, users and refresh tokens are in-memory")
		userRepo = users.NewMemoryRepository()
		refreshStore = refresh.NewMemoryStore()
	}

	usersSvc := users.NewService(userRepo, log)
	if cfg.MinIO.Endpoint != "" {
		mirror, err := storage.NewMinIOStorage(&storage.MinIOConfig{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			UseSSL:        cfg.MinIO.UseSSL,
			Bucket:        cfg.MinIO.Bucket,
			PublicBaseURL: cfg.MinIO.PublicBaseURL,
		})
		if err != nil {
			log.Warn("avatar mirroring disabled", zap.Error(err))
		} else {
			usersSvc.WithAvatarMirror(mirror)
			log.Info("avatar mirroring enabled", zap.String("bucket", cfg.MinIO.Bucket))
		}
	}

	var sessionRepo sessions.Repository
	if redisClient != nil {
		sessionRepo = sessions.NewRedisRepository(redisClient, "session:")
	} else {
		sessionRepo = sessions.NewMemoryRepository()
	}
	sessionsSvc := sessions.NewService(sessionRepo, usersSvc)

	base := strings.TrimRight(cfg.OAuth.BaseURL, "/")
	registry := oauth.NewRegistry(
		oauth.NewFacebook(cfg.OAuth.Facebook.ClientID, cfg.OAuth.Facebook.ClientSecret,
			base+"/auth/facebook/callback", oauth.DefaultHTTPClient()),
		oauth.NewInstagram(cfg.OAuth.Instagram.ClientID, cfg.OAuth.Instagram.ClientSecret,
			base+"/auth/instagram/callback", oauth.DefaultHTTPClient()),
	)

	auth := middleware.NewAuth(tokenMgr, usersSvc, blacklist)
	h := handlers.NewAuthHandler(registry, usersSvc, sessionsSvc, refreshStore, tokenMgr, blacklist, log)
	h.Register(r.Group("/"), auth)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"mongodb": mongoClient != nil,
			"redis":   redisClient != nil,
		}
		// memory fallbacks keep the service functional, so readiness only
		// fails when nothing can serve requests
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"deps":   deps,
			"uptime": time.Since(startTime).String(),
		})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting auth service",
		zap.String("addr", addr),
		zap.Bool("mongodb", mongoClient != nil),
		zap.Bool("redis", redisClient != nil),
		zap.Strings("providers", registry.Names()))

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed", zap.Error(err))
	}
}
