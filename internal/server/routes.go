package server

import (
	"time"

	"github.com/farellandr/ticketgate/config"
	"github.com/farellandr/ticketgate/internal/handlers"
	"github.com/farellandr/ticketgate/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(h *handlers.Handler, tokens middleware.TokenVerifier, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	if cfg.HTTP.Mode != "" {
		gin.SetMode(cfg.HTTP.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig(cfg.HTTP.AllowedOrigins)))

	setupRoutes(r, h, tokens, cfg)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func setupRoutes(r *gin.Engine, h *handlers.Handler, tokens middleware.TokenVerifier, cfg *config.Config) {
	r.GET("/healthz", h.Health)
	r.GET("/files/*path", h.ServeFile)

	public := r.Group("/v1")
	{
		public.POST("/auth/login", h.Login)
		public.POST("/orders", h.CreateOrder)
		public.POST("/registrations/verify", h.VerifyPayment)
		public.POST("/registrations/free", h.RegisterFree)

		public.GET("/tickets", h.GetTicket)
		public.GET("/tickets/qr.png", h.GetTicketQR)

		eventPublic := public.Group("/events")
		{
			eventPublic.GET("", h.ListEvents)
			eventPublic.GET("/:slug", h.GetEvent)
		}
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.OperatorAuth(tokens), middleware.RequireRole(cfg.Auth.Admins))
	{
		admin.POST("/checkin", h.CheckIn)
		admin.GET("/registrations", h.SearchRegistrations)
		admin.GET("/registrations/:id", h.GetRegistration)
		admin.POST("/registrations/:id/resend", h.ResendTicket)
		admin.GET("/events/stats", h.EventStats)
		admin.GET("/diagnostics", h.Diagnostics)
	}

	ops := r.Group("/v1/ops")
	ops.Use(middleware.OperatorAuth(tokens), middleware.RequireRole(cfg.Auth.Managers))
	{
		ops.GET("/events", h.OpsListEvents)
		ops.PUT("/events/:slug", h.UpsertEvent)
		ops.POST("/events/:slug/image", h.UploadEventImage)
	}
}
