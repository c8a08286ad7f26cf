package v1

import (
	"wecom_ops/api/v1/auth"
	"wecom_ops/api/v1/mass"
	"wecom_ops/api/v1/middleware"
	"wecom_ops/internal/audit"
	internalauth "wecom_ops/internal/auth"
	"wecom_ops/internal/cache"
	"wecom_ops/internal/httpx"
	internalmass "wecom_ops/internal/mass"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer is wired with
type Deps struct {
	DB        *gorm.DB
	Logger    *logrus.Entry
	Mass      *internalmass.Service
	Estimator *internalmass.Estimator
	Audit     *audit.Recorder
	Cache     *cache.Store
	// Tokens is nil when operator auth is disabled
	Tokens *internalauth.TokenIssuer
}

// SetupRouter sets up middleware and the API v1 routes
func SetupRouter(r *gin.Engine, d Deps) {
	if d.Logger == nil {
		d.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	r.Use(middleware.RequestID(), middleware.AccessLog(d.Logger.WithField("component", "http")), middleware.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		if d.Tokens != nil {
			authGroup := v1.Group("/auth")
			{
				authGroup.POST("/login", auth.LoginHandler(d.DB, d.Tokens))
			}
		}

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired(d.Tokens))
		{
			protected.GET("/me", meHandler)

			massHandler := mass.NewHandler(d.Mass, d.Estimator, d.Audit, d.Cache)
			massHandler.Register(protected.Group("/mass"))
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns current operator information
func meHandler(c *gin.Context) {
	uid, _ := c.Get(middleware.UIDKey)
	role, _ := c.Get(middleware.RoleKey)

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": middleware.Operator(c),
		"role":     role,
	})
}
