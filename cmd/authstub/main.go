// authstub is the reference auth backend for developing against the
// netpanel session client without a full platform deployment. It serves the
// same wire contract the production auth service does: password login,
// rotating refresh, logout and the bearer-protected /api/v1/me.
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
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/netpanel/netpanel/clients/go-auth/internal/config"
	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
	"github.com/netpanel/netpanel/clients/go-auth/internal/stub"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/logger"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/metrics"
)

var startTime = time.Now()

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-only-secret"
		logger.Warn("JWT_SECRET not set, using dev-only secret")
	}
	logger.Infof("config loaded: mongo=%v redis=%v upstream=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Upstream.Issuer != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so the rate limiter and session repo can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(stub.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(stub.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Session storage: Redis when available, then Mongo, then memory
	var sessionRepo stub.SessionRepository
	if redisClient != nil {
		sessionRepo = stub.NewRedisSessionRepository(redisClient, "refresh:")
		logger.Info("using Redis for refresh sessions")
	}

	// Account storage: Mongo when configured, memory with seeded dev
	// accounts otherwise
	ctx := context.Background()
	var accounts stub.AccountRepository
	if cfg.MongoDB.URI != "" {
		client, errConn := connectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB: %v", errConn)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			db := client.Database(cfg.MongoDB.Database)
			accounts = stub.NewMongoAccountRepository(db.Collection("accounts"))
			if sessionRepo == nil {
				sessionRepo = stub.NewMongoSessionRepository(db.Collection("refresh_sessions"))
			}
			logger.Infof("connected to MongoDB database %q", cfg.MongoDB.Database)
		}
	}
	if accounts == nil {
		mem := stub.NewMemoryAccountRepository()
		seedDevAccounts(mem)
		accounts = mem
		logger.Warn("MongoDB unavailable, using in-memory accounts with dev seed data")
	}
	if sessionRepo == nil {
		sessionRepo = stub.NewMemorySessionRepository()
	}
	sessions := stub.NewSessionService(sessionRepo)

	// Bearer verification: upstream OIDC when configured, the local HS256
	// verifier otherwise. ALLOW_INSECURE_TOKEN skips signatures entirely
	// for integration runs.
	var verifier stub.Verifier
	if cfg.Upstream.Issuer != "" && cfg.Upstream.ClientID != "" {
		ver, err := stub.NewOIDCVerifier(ctx, cfg.Upstream.Issuer, cfg.Upstream.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warn("enabling insecure token verifier (integration mode)")
			verifier = stub.NewInsecureVerifier()
		} else {
			verifier = stub.NewLocalVerifier(cfg.JWT.Secret)
		}
	}

	h := stub.NewAuthHandler(cfg, accounts, sessions, verifier)
	h.Register(r.Group("/"))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"accounts": accounts != nil,
			"sessions": sessionRepo != nil,
		}
		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = redisClient != nil
			if redisClient == nil {
				ready = false
			}
		} else {
			deps["redis"] = true
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting auth stub on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// connectMongo dials with retry/backoff to tolerate container startup races.
func connectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	const maxAttempts = 5
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
		if err == nil {
			err = client.Ping(dialCtx, nil)
			if err == nil {
				cancel()
				return client, nil
			}
			_ = client.Disconnect(dialCtx)
		}
		cancel()
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, lastErr
}

// seedDevAccounts registers one account per portal so every flow is testable
// out of the box.
func seedDevAccounts(repo *stub.MemoryAccountRepository) {
	seeds := []struct {
		user     models.User
		password string
	}{
		{
			user: models.User{
				ID: "dev-admin", Email: "admin@netpanel.local", Name: "Dev Admin",
				Role: models.RoleSuperAdmin, TenantID: "tenant-dev",
			},
			password: "admin123",
		},
		{
			user: models.User{
				ID: "dev-reseller", Email: "reseller@netpanel.local", Name: "Dev Reseller",
				Role: models.RoleReseller, TenantID: "tenant-dev",
				Permissions: []string{"customers:read", "customers:write", "billing:read"},
			},
			password: "reseller123",
		},
		{
			user: models.User{
				ID: "dev-tech", Email: "tech@netpanel.local", Name: "Dev Technician",
				Role: models.RoleTechnician, TenantID: "tenant-dev",
				Permissions: []string{"tickets:read", "tickets:write", "network:read"},
			},
			password: "tech123",
		},
		{
			user: models.User{
				ID: "dev-customer", Email: "customer@netpanel.local", Name: "Dev Customer",
				Role: models.RoleCustomer, TenantID: "tenant-dev",
				Permissions: []string{"invoices:read", "tickets:read"},
				MFAEnabled:  true,
			},
			password: "customer123",
		},
	}
	for _, s := range seeds {
		if err := repo.Seed(s.user, s.password); err != nil {
			logger.Warnf("failed to seed dev account %s: %v", s.user.Email, err)
		}
	}
}
