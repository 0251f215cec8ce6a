package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// StatisticsResponse 待反馈异常统计
type StatisticsResponse struct {
	PendingTotal            int64   `json:"pending_total"`             // 待反馈记录数（不去重）
	DistinctPendingStations int64   `json:"distinct_pending_stations"` // 涉及测站数
	DistinctPendingRegions  int64   `json:"distinct_pending_regions"`  // 涉及团场数
	LatestExceptionTime     *string `json:"latest_exception_time"`     // 最新异常时间

	// 兼容旧前端字段
	TotalPending int64   `json:"total_pending"`
	StationCount int64   `json:"station_count"`
	FarmCount    int64   `json:"farm_count"`
	LatestTime   *string `json:"latest_time"`
}

func newStatisticsResponse(s model.Statistics) StatisticsResponse {
	var latest *string
	if s.LatestExceptionTime != nil {
		v := model.FormatTime(*s.LatestExceptionTime)
		latest = &v
	}
	return StatisticsResponse{
		PendingTotal:            s.PendingTotal,
		DistinctPendingStations: s.DistinctPendingStations,
		DistinctPendingRegions:  s.DistinctPendingRegions,
		LatestExceptionTime:     latest,
		TotalPending:            s.PendingTotal,
		StationCount:            s.DistinctPendingStations,
		FarmCount:               s.DistinctPendingRegions,
		LatestTime:              latest,
	}
}

// GetStatistics 获取异常数据统计信息（单项失败降级为默认值）
// GET /api/exception-data/statistics
func (h *Handler) GetStatistics(c *gin.Context) {
	stats := h.svc.GetStatistics(c.Request.Context())
	writeOK(c, "查询成功", newStatisticsResponse(stats))
}

// ListFarms 获取团场列表
// GET /api/farms
func (h *Handler) ListFarms(c *gin.Context) {
	writeOK(c, "查询成功", h.svc.Regions())
}

// Health 健康检查
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	result := h.svc.Health(c.Request.Context())
	if !result.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "数据库连接异常",
			"data":    result,
		})
		return
	}
	writeOK(c, "API服务正常运行", result)
}
