package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	v1 "github.com/aidingjing/rain-gauge-api/internal/api/v1"
	"github.com/aidingjing/rain-gauge-api/internal/config"
	"github.com/aidingjing/rain-gauge-api/internal/observability"
	"github.com/aidingjing/rain-gauge-api/internal/service/exception"
)

const readyTimeout = 2 * time.Second

// 导出进度流，持续时间取决于数据量
const exportStreamPath = "/api/exception-data/export/stream"

// Options 服务器可选依赖
type Options struct {
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	ExportDir string
}

// Server HTTP服务器
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	svc        *exception.Service
	logger     *zap.Logger
	v1         *v1.Handler
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, svc *exception.Service, opts Options) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router: gin.New(),
		svc:    svc,
		logger: logger,
		v1: v1.NewHandler(svc, v1.Options{
			Logger:          logger.Named("api"),
			ExportDir:       opts.ExportDir,
			DownloadTTL:     cfg.Business.DownloadTTL.Std(),
			DefaultPageSize: cfg.Pagination.DefaultPageSize,
		}),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      withoutWriteDeadline(s.router, exportStreamPath),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.Server.CORSOrigins, opts.Metrics)
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(origins []string, metrics *observability.Metrics) {
	s.router.Use(gin.Recovery(), requestID(), requestLogger(s.logger))
	if metrics != nil {
		s.router.Use(requestMetrics(metrics))
	}
	s.router.Use(cors(origins))

	// 存活 / 就绪 / 指标
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/readyz", s.readyz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		s.v1.RegisterRoutes(api)
	}
}

func (s *Server) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Addr 监听地址
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run 启动服务器；优雅关闭时返回 http.ErrServerClosed
func (s *Server) Run() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown 在 ctx 截止前等待进行中的请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP 便于测试直接驱动路由
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
