// Package app wires the storage backends together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/pkg/queue"
	queuememory "github.com/wagate/wagate/internal/pkg/queue/memory"
	queueredis "github.com/wagate/wagate/internal/pkg/queue/redis"
	"github.com/wagate/wagate/internal/pkg/ratelimiter"
	limitermemory "github.com/wagate/wagate/internal/pkg/ratelimiter/memory"
	limiterredis "github.com/wagate/wagate/internal/pkg/ratelimiter/redis"
	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/postgres"
	storeredis "github.com/wagate/wagate/internal/storage/redis"
	"github.com/wagate/wagate/internal/storage/sqlite"
)

// Repositories bundles the storage-facing dependencies selected by config.
type Repositories struct {
	Client       storage.ClientRepository
	Message      storage.MessageRepository
	RedisClient  *storeredis.Client // nil when Redis is disabled
	WebhookQueue queue.Queue
	RateLimiter  ratelimiter.Limiter
}

// NewRepositories builds the backends: sqlite or postgres for the registry
// and history, Redis-backed queue and limiter when available, in-memory
// fallbacks otherwise.
func NewRepositories(cfg config.Config, log *zap.Logger) (*Repositories, error) {
	repos := &Repositories{}

	if cfg.Redis.Enabled {
		redisClient, err := storeredis.New(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		repos.RedisClient = redisClient
		repos.WebhookQueue = queueredis.NewQueue(redisClient.RDB(), "webhook:events")
		repos.RateLimiter = limiterredis.NewLimiter(redisClient.RDB())
		log.Info("redis queue and limiter configured")
	} else {
		repos.WebhookQueue = queuememory.NewQueue(cfg.Webhook.QueueSize)
		repos.RateLimiter = limitermemory.NewLimiter()
		log.Info("using in-memory queue and limiter (redis disabled)")
	}

	switch cfg.Storage.Driver {
	case "sqlite", "":
		db, err := sqlite.New(cfg.Storage.DataDir, log)
		if err != nil {
			return nil, err
		}
		repos.Client = sqlite.NewClientRepo(db)
		repos.Message = sqlite.NewMessageRepo(db)
	case "postgres":
		db, err := postgres.New(cfg.DB, log)
		if err != nil {
			return nil, err
		}
		repos.Client = postgres.NewClientRepo(db)
		repos.Message = postgres.NewMessageRepo(db)
	default:
		return nil, errors.New("storage: unknown driver: " + cfg.Storage.Driver)
	}

	log.Info("repositories ready", zap.String("driver", cfg.Storage.Driver))
	return repos, nil
}

// App owns the HTTP server lifecycle.
type App struct {
	cfg    config.Config
	log    *zap.Logger
	server *http.Server
}

func New(cfg config.Config, log *zap.Logger, router *gin.Engine) *App {
	return &App{
		cfg: cfg,
		log: log,
		server: &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (a *App) Run() error {
	a.log.Info("http server listening", zap.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
