package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wagate/wagate/internal/api/handler"
	"github.com/wagate/wagate/internal/api/middleware"
)

type Options struct {
	Env            string
	AuthSecret     string
	HealthHandler  *handler.HealthHandler
	SessionHandler *handler.SessionHandler
	MessageHandler *handler.MessageHandler
	RateLimit      middleware.RateLimitOption
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		MaxAge:       12 * time.Hour,
	}))

	opts.HealthHandler.Register(router.Group("/"))

	api := router.Group("/api/v1")
	if opts.RateLimit.Enabled {
		api.Use(middleware.RateLimit(opts.RateLimit))
	}
	api.Use(middleware.Auth(opts.AuthSecret))

	opts.SessionHandler.Register(api)
	opts.MessageHandler.Register(api)

	return router
}
