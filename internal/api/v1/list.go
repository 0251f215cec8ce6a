package v1

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/exporter"
	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// ListExceptions 查询异常数据
// GET /api/getExecStationList
func (h *Handler) ListExceptions(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("export") == "excel" {
		h.exportExcel(c, f)
		return
	}

	page, err := parseIntWithDefault(c.Query("page"), 1)
	if err != nil {
		h.writeError(c, model.NewValidationError("page", "page 必须为整数"))
		return
	}
	pageSize, err := parseIntWithDefault(c.Query("page_size"), h.defaultPageSize)
	if err != nil {
		h.writeError(c, model.NewValidationError("page_size", "page_size 必须为整数"))
		return
	}

	result, err := h.svc.ListExceptions(c.Request.Context(), f, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	writeOK(c, "查询成功", result)
}

// exportExcel 导出全部符合条件的数据（不分页）
func (h *Handler) exportExcel(c *gin.Context, f model.Filter) {
	items, err := h.svc.ExportExceptions(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := h.svc.Now()
	file, err := h.exporter.Export(exporter.ExportOptions{
		Items:      items,
		Total:      len(items),
		Filter:     f,
		ExportedAt: now,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", exporter.ContentDisposition(now))
	c.Header("Content-Type", exporter.ContentType)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	if err := file.Write(c.Writer); err != nil {
		// 响应头已写出，只能记录日志
		h.logger.Error("failed to write excel export", zap.Error(err))
		return
	}
	h.logger.Info("excel export written",
		zap.String("filename", exporter.FileName(now)),
		zap.Int("rows", len(items)))
}

// parseFilter 解析查询条件；支持 adcd|aid、bt|start_time、et|end_time 别名
func parseFilter(c *gin.Context) (model.Filter, error) {
	f := model.Filter{
		RegionPrefix:  strings.TrimSpace(param(c, "adcd", "aid")),
		StationCode:   strings.TrimSpace(param(c, "stcd")),
		NameSubstring: strings.TrimSpace(param(c, "name")),
	}

	status, err := model.ParseStatusFilter(param(c, "status"))
	if err != nil {
		return model.Filter{}, err
	}
	f.Status = status

	if f.StartTime, err = parseTimeParam("bt", param(c, "bt", "start_time")); err != nil {
		return model.Filter{}, err
	}
	if f.EndTime, err = parseTimeParam("et", param(c, "et", "end_time")); err != nil {
		return model.Filter{}, err
	}
	return f, nil
}

// param 按顺序取第一个非空参数（先查询串，后表单）
func param(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	for _, k := range keys {
		if v := c.PostForm(k); v != "" {
			return v
		}
	}
	return ""
}

func parseTimeParam(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := model.ParseTime(raw)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			return nil, model.NewValidationError(field, ve.Message)
		}
		return nil, err
	}
	return &t, nil
}

func parseIntWithDefault(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
