// Package server exposes the editing pipeline and billing flows over HTTP,
// mirroring the flows of the browser client.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chaos-io/clearpic/config"
)

type Server struct {
	engine *gin.Engine
	cfg    *config.Config
	log    zerolog.Logger
}

func New(cfg *config.Config, h *Handlers, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	engine.GET("/", h.Root)

	api := engine.Group("/api")
	{
		api.POST("/images", h.UploadImages)
		api.GET("/images", h.ListImages)
		api.DELETE("/images", h.ClearImages)
		api.DELETE("/images/:id", h.RemoveImage)
		api.PATCH("/images/:id", h.UpdateImage)
		api.GET("/images/:id/file", h.DownloadImage)
		api.POST("/images/:id/remove-bg", h.RemoveBackground)
		api.POST("/images/:id/replace-bg", h.ReplaceBackground)
		api.POST("/images/process", h.ProcessAll)
		api.GET("/images/export", h.ExportAll)

		api.POST("/prompt/rewrite", h.RewritePrompt)

		api.GET("/credits", h.CreditBalance)
		api.GET("/credits/history", h.CreditHistory)
		api.POST("/credits/purchase", h.PurchaseCredits)
		api.POST("/subscription/create", h.CreateSubscription)
		api.POST("/subscription/portal", h.CustomerPortal)

		api.GET("/pricing", h.Pricing)
	}

	return &Server{engine: engine, cfg: cfg, log: log}
}

func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.log.Info().Str("addr", addr).Msg("server listening")
	return s.engine.Run(addr)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
