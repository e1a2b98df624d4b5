package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mdreader/mdreader/handlers"
	"github.com/mdreader/mdreader/internal/config"
	"github.com/mdreader/mdreader/internal/mirror"
	"github.com/mdreader/mdreader/internal/ratelimit"
	"github.com/mdreader/mdreader/internal/store"
	"github.com/mdreader/mdreader/pkg/logger"
	"github.com/mdreader/mdreader/pkg/metrics"
	"github.com/mdreader/mdreader/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: docs=%s rate_backend=%s redis=%v mirror=%v",
		cfg.Documents.Dir, cfg.RateLimit.Backend, cfg.Redis.Host != "", cfg.Mirror.Enabled)

	docStore, err := store.New(cfg.Documents.Dir, cfg.Documents.MaxContentBytes)
	if err != nil {
		logger.Fatalf("failed to open document store: %v", err)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(handlers.MethodNotAllowed)
	r.Use(middleware.CORS())

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	if cfg.RateLimit.FloodGuard {
		r.Use(middleware.FloodGuard(cfg.RateLimit.FloodRPS, cfg.RateLimit.FloodBurst))
	}

	// Connect to Redis early when the counter store needs it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	counterStore, err := newCounterStore(cfg, redisClient)
	if err != nil {
		logger.Fatalf("failed to open rate counter store: %v", err)
	}
	limiter := ratelimit.New(counterStore, cfg.RateLimit.Limit, cfg.RateLimit.Window)

	// Optional off-host record mirror. The interface stays nil when the
	// mirror is off or failed to initialize, so the handler skips uploads.
	var mir handlers.RecordMirror
	if cfg.Mirror.Enabled {
		m, merr := mirror.New(cfg.Mirror)
		if merr != nil {
			logger.Warnf("record mirror disabled: %v", merr)
		} else {
			mir = m
		}
	}

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		// documents dir must be writable for saves to commit
		probe := cfg.Documents.Dir + "/.ready"
		if werr := os.WriteFile(probe, []byte("ok"), 0o644); werr != nil {
			deps["documents"] = false
			ready = false
		} else {
			_ = os.Remove(probe)
			deps["documents"] = true
		}

		// Redis readiness when used for rate counters
		if cfg.RateLimit.Backend == "redis" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
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

	// Share API + Swagger
	h := handlers.NewShareHandler(docStore, limiter, cfg.Server.BaseURL, mir)
	h.Register(r)
	handlers.RegisterSwagger(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting share service on %s (limit=%d window=%s)", addr, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// newCounterStore picks the rate-limit counter backend. Unknown backends fall
// back to the file store so a typo cannot silently disable the quota.
func newCounterStore(cfg *config.Config, redisClient *redis.Client) (ratelimit.CounterStore, error) {
	switch cfg.RateLimit.Backend {
	case "memory":
		return ratelimit.NewMemoryStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("rate limit backend is redis but Redis is not reachable")
		}
		return ratelimit.NewRedisStore(redisClient, cfg.RateLimit.Window), nil
	case "file":
		return ratelimit.NewFileStore(cfg.RateLimit.Dir)
	default:
		logger.Warnf("unknown rate limit backend %q, using file store", cfg.RateLimit.Backend)
		return ratelimit.NewFileStore(cfg.RateLimit.Dir)
	}
}
