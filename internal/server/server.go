package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/service"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Pipeline  *service.PipelineService
	Scheduler *service.Scheduler
	Auth      *service.AuthService
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database when the postgres-backed record store is enabled
	var db *gorm.DB
	if cfg.Database.Enabled {
		var err error
		db, err = service.NewDatabase(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	// Initialize services
	pipeline, err := service.NewPipelineService(cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, pipeline)
	auth := service.NewAuthService(logger, cfg.Server.APIToken, cfg.Server.TOTPSecret)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:    cfg,
		DB:        db,
		Router:    router,
		Logger:    logger,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Auth:      auth,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-Code")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.Router.Use(s.Auth.AuthMiddleware())
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		records := api.Group("/records")
		{
			records.GET("", s.handleListRecords)
			records.GET("/:slug", s.handleGetRecord)
		}

		runs := api.Group("/runs")
		{
			runs.GET("", s.handleListReports)
			runs.POST("", s.handleTriggerRun)
		}
	}
}

func (s *Server) handleListRecords(c *gin.Context) {
	records, err := s.Pipeline.Records().List(c.Request.Context())
	if err != nil {
		s.Logger.Error("Failed to list publish records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) handleGetRecord(c *gin.Context) {
	slug := c.Param("slug")
	record, err := s.Pipeline.Records().Get(c.Request.Context(), slug)
	if err != nil {
		s.Logger.Error("Failed to get publish record", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get record"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No record for slug"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListReports(c *gin.Context) {
	reports, err := s.Pipeline.ListReports()
	if err != nil {
		s.Logger.Error("Failed to list run reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": reports})
}

func (s *Server) handleTriggerRun(c *gin.Context) {
	report, err := s.Pipeline.Run(c.Request.Context())
	if err != nil {
		s.Logger.Error("Manual run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
