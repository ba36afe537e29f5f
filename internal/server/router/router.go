package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/server/handlers"
)

// Handlers groups the HTTP adapters. Webhook is nil when WhatsApp is not configured.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Products      *handlers.ProductHandler
	Notifications *handlers.NotificationHandler
	Webhook       *handlers.WebhookHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	session := r.Group("/", h.Auth.RequireSession())
	session.POST("/auth/logout", h.Auth.Logout)
	session.GET("/auth/me", h.Auth.Me)
	session.POST("/notifications/permission", h.Notifications.Permission)

	collections := session.Group("/collections/:collection")
	collections.GET("/products", h.Products.List)
	collections.POST("/products", h.Products.Create)
	collections.PUT("/products/:id", h.Products.Update)
	collections.DELETE("/products/:id", h.Products.Delete)
	collections.POST("/products/:id/consume", h.Products.Consume)
	collections.POST("/products/:id/restock", h.Products.Restock)
	collections.POST("/reconcile", h.Products.Reconcile)
	collections.POST("/export", h.Products.Export)

	if h.Webhook != nil {
		r.GET("/webhook", h.Webhook.Verify)
		r.POST("/webhook", h.Webhook.Receive)
		session.POST("/send-message", h.Webhook.SendMessage)
	}

	if logger != nil {
		logger.Info("router initialized", zap.Bool("whatsapp", h.Webhook != nil))
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
