package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pdfmarker/pdfmarker/internal/config"
	"github.com/pdfmarker/pdfmarker/internal/database"
	"github.com/pdfmarker/pdfmarker/internal/document/handler"
	"github.com/pdfmarker/pdfmarker/internal/document/service"
	"github.com/pdfmarker/pdfmarker/internal/oidc"
	"github.com/pdfmarker/pdfmarker/internal/sessions"
	"github.com/pdfmarker/pdfmarker/internal/storage"
	"github.com/pdfmarker/pdfmarker/internal/users"
	"github.com/pdfmarker/pdfmarker/pkg/logger"
	"github.com/pdfmarker/pdfmarker/pkg/metrics"
	"github.com/pdfmarker/pdfmarker/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())

	// Redis backs the token denylist and, when enabled, the shared rate limiter
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			rdb = nil
		} else {
			logger.Infof("connected to Redis: %s", addr)
			defer rdb.Close()
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	svc, userSvc, mongoClient := openServices(ctx, cfg)
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	}

	verifier := buildVerifier(ctx, cfg)

	var files handler.FileStore
	if cfg.MinIO.Endpoint != "" {
		fs, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("document file storage disabled: %v", err)
		} else {
			files = fs
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{
			"mongo":    cfg.MongoDB.URI == "" || mongoClient != nil,
			"redis":    cfg.Redis.Host == "" || rdb != nil,
			"verifier": !cfg.Auth.Require || verifier != nil,
			"files":    cfg.MinIO.Endpoint == "" || files != nil,
		}
		ready := true
		for _, ok := range deps {
			ready = ready && ok.(bool)
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handler.RegisterSwagger(r)

	api := r.Group("/api")
	opts := []handler.Option{handler.WithUsers(userSvc)}
	if files != nil {
		opts = append(opts, handler.WithFiles(files, cfg.MinIO.PresignTTL))
	}
	if verifier != nil {
		var authOpts []middleware.AuthOption
		if !cfg.Auth.Require {
			authOpts = append(authOpts, middleware.Optional())
		}
		// logout needs somewhere to record revocations; without Redis the route is absent
		if rdb != nil {
			denylist := sessions.NewRedisDenylist(rdb, "")
			authOpts = append(authOpts, middleware.WithRevocation(denylist))
			opts = append(opts, handler.WithDenylist(denylist, cfg.JWT.AccessTokenTTL))
		} else {
			logger.Warnf("redis unavailable; POST /api/auth/logout is disabled")
		}
		api.Use(middleware.AuthMiddleware(verifier, authOpts...))
	} else if cfg.Auth.Require {
		logger.Fatalf("REQUIRE_AUTH is set but no token verifier could be configured")
	} else {
		logger.Warnf("no token verifier configured; comment API is unauthenticated")
	}
	handler.RegisterDocumentRoutes(api, svc, opts...)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("pdfmarker-api listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// openServices prefers MongoDB when configured and falls back to in-memory repositories.
func openServices(ctx context.Context, cfg *config.Config) (service.Service, *users.Service, *mongo.Client) {
	if cfg.MongoDB.URI == "" {
		return service.NewMemoryService(), users.NewService(users.NewMemoryUserRepository()), nil
	}

	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, database.Retry{Attempts: 5, Backoff: time.Second})
	if err != nil {
		logger.Warnf("using memory repositories: %v", err)
		return service.NewMemoryService(), users.NewService(users.NewMemoryUserRepository()), nil
	}

	db := client.Database(cfg.MongoDB.Database)
	svc, err := service.NewMongoService(ctx, db)
	if err != nil {
		logger.Fatalf("mongo service: %v", err)
	}
	logger.Infof("using MongoDB database %q", cfg.MongoDB.Database)
	return svc, users.NewService(users.NewMongoUserRepository(db.Collection("users"))), client
}

// buildVerifier chains every configured verifier: Keycloak OIDC, then HMAC for locally
// minted tokens. The insecure verifier is used only when nothing else is configured.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	var chain oidc.Chain
	if cfg.Keycloak.URL != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if cfg.JWT.Secret != "" {
		ver, err := oidc.NewHMACVerifier(cfg.JWT.Secret)
		if err != nil {
			logger.Warnf("failed to initialize HMAC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if len(chain) == 0 && cfg.Auth.AllowInsecureTokens {
		logger.Warnf("enabling insecure token verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// cors is a permissive policy for the browser viewer in development.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
