package v1

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/exporter"
	"github.com/aidingjing/rain-gauge-api/internal/service/exception"
)

// Options 处理器可选配置
type Options struct {
	Logger          *zap.Logger
	Clock           clockwork.Clock
	ExportDir       string        // SSE 导出的临时文件目录
	DownloadTTL     time.Duration // 下载链接有效期
	DefaultPageSize int
}

// Handler V1 API 处理器
type Handler struct {
	svc             *exception.Service
	exporter        *exporter.Exporter
	downloads       *exportDownloadStore
	logger          *zap.Logger
	exportDir       string
	downloadTTL     time.Duration
	defaultPageSize int
}

// NewHandler 创建 V1 API 处理器
func NewHandler(svc *exception.Service, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = os.TempDir()
	}
	if opts.DownloadTTL <= 0 {
		opts.DownloadTTL = 10 * time.Minute
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}

	registerValidators()

	return &Handler{
		svc:             svc,
		exporter:        exporter.NewExporter(),
		downloads:       newExportDownloadStore(opts.Clock),
		logger:          opts.Logger,
		exportDir:       opts.ExportDir,
		downloadTTL:     opts.DownloadTTL,
		defaultPageSize: opts.DefaultPageSize,
	}
}

// RegisterRoutes 注册 V1 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 异常数据查询（export=excel 时直接下载）
	router.GET("/getExecStationList", h.ListExceptions)
	// 填写异常原因
	router.POST("/remarkExecInfo", h.RemarkException)

	// 团场列表
	router.GET("/farms", h.ListFarms)
	// 统计
	router.GET("/exception-data/statistics", h.GetStatistics)

	// 异步导出
	router.POST("/exception-data/export/stream", h.ExportStream)
	router.GET("/exception-data/export/download/:token", h.DownloadExport)

	router.GET("/health", h.Health)
}
