package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/config"
	"github.com/DTADMI/gamehub-api/internal/http/handler"
	"github.com/DTADMI/gamehub-api/internal/http/middleware"
	"github.com/DTADMI/gamehub-api/internal/ratelimit"
	"github.com/DTADMI/gamehub-api/internal/service"
)

// NewRouter wires Gin routes and middleware. Rate limiting runs before
// identity resolution; the class heuristic only needs the header.
func NewRouter(cfg config.Config, logger *zap.Logger, admitter ratelimit.Admitter, auth *middleware.Auth, authHandler *handler.AuthHandler, featureHandler *handler.FeatureHandler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	if admitter != nil {
		r.Use(middleware.RateLimit(admitter, logger))
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/exchange", authHandler.Exchange)
		authGroup.POST("/logout", auth.Identify, auth.RequireAuth, authHandler.Logout)
		authGroup.GET("/me", auth.Identify, auth.RequireAuth, authHandler.Me)
	}

	api.GET("/meta/features", auth.Identify, featureHandler.List)

	admin := api.Group("/admin", auth.Identify, auth.RequireAuth, auth.RequireRole(service.RoleAdmin))
	{
		admin.POST("/features/:flag", featureHandler.Toggle)
	}

	return r
}
