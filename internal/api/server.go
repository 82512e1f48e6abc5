package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/trafficcam/internal/database"
	"github.com/yourusername/trafficcam/internal/panel"
	"go.uber.org/zap"
)

// CameraCatalog는 카메라 카탈로그 저장소입니다
type CameraCatalog interface {
	Upsert(ctx context.Context, camera *database.Camera) error
	List(ctx context.Context) ([]*database.Camera, error)
	Delete(ctx context.Context, id string) error
}

// Server는 HTTP API 서버입니다
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	router     *gin.Engine
	port       int

	panel   *panel.Panel
	catalog CameraCatalog

	// 핸들러
	healthHandler    func() map[string]interface{}
	metricsHandler   http.Handler
	websocketHandler func(http.ResponseWriter, *http.Request)
}

// ServerConfig는 API 서버 설정
type ServerConfig struct {
	Port       int
	Production bool
	Logger     *zap.Logger
	Panel      *panel.Panel
	// Catalog가 nil이면 카탈로그 API는 503을 반환합니다
	Catalog          CameraCatalog
	HealthHandler    func() map[string]interface{}
	MetricsHandler   http.Handler
	WebSocketHandler func(http.ResponseWriter, *http.Request)
}

// NewServer는 새로운 API 서버를 생성합니다
func NewServer(config ServerConfig) *Server {
	if !config.Production {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggerMiddleware(logger))

	server := &Server{
		logger:           logger,
		router:           router,
		port:             config.Port,
		panel:            config.Panel,
		catalog:          config.Catalog,
		healthHandler:    config.HealthHandler,
		metricsHandler:   config.MetricsHandler,
		websocketHandler: config.WebSocketHandler,
	}

	server.setupRoutes()

	return server
}

// setupRoutes는 라우트를 설정합니다
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	if s.metricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/refresh", s.handleRefresh)
		v1.GET("/cameras", s.handleCameras)
		v1.POST("/stop", s.handleStop)

		v1.GET("/selection", s.handleGetSelection)
		v1.PUT("/selection", s.handleSelect)
		v1.DELETE("/selection", s.handleDeselect)
		v1.GET("/selection/frame", s.handleFrame)
		v1.POST("/selection/cursor", s.handleCursor)

		v1.POST("/playback/toggle", s.handleTogglePlayback)

		catalog := v1.Group("/catalog")
		{
			catalog.GET("/cameras", s.handleListCatalog)
			catalog.POST("/cameras", s.handleUpsertCatalog)
			catalog.DELETE("/cameras/:id", s.handleDeleteCatalog)
		}
	}

	if s.websocketHandler != nil {
		s.router.GET("/ws", gin.WrapF(s.websocketHandler))
	}
}

// Handler는 라우터를 반환합니다
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start는 API 서버를 시작합니다
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting API server",
		zap.String("addr", addr),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop은 API 서버를 종료합니다
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth는 헬스 체크를 처리합니다
func (s *Server) handleHealth(c *gin.Context) {
	var health map[string]interface{}

	if s.healthHandler != nil {
		health = s.healthHandler()
	} else {
		health = map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC(),
		}
	}

	c.JSON(http.StatusOK, health)
}

// corsMiddleware는 CORS 미들웨어입니다
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// loggerMiddleware는 로깅 미들웨어입니다
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
