package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/exporter"
)

type exportProgressEvent struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// ExportStream 导出 Excel（SSE 进度 + 完成后提供下载地址）
// POST /api/exception-data/export/stream
func (h *Handler) ExportStream(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "message": "不支持流式响应"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(typ, message string, data interface{}) {
		b, err := json.Marshal(exportProgressEvent{
			Type:      typ,
			Message:   message,
			Data:      data,
			Timestamp: h.svc.Now().Format(time.RFC3339),
		})
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}
	fail := func(message string, err error) {
		h.logger.Error("export stream failed", zap.String("stage", message), zap.Error(err))
		send("error", message+": "+err.Error(), map[string]any{})
	}

	send("start", "开始导出", map[string]any{"status": f.Status.Label()})

	items, err := h.svc.ExportExceptions(c.Request.Context(), f)
	if err != nil {
		fail("查询数据失败", err)
		return
	}

	lastPercent := -1
	now := h.svc.Now()
	file, err := h.exporter.Export(exporter.ExportOptions{
		Items:      items,
		Total:      len(items),
		Filter:     f,
		ExportedAt: now,
		Progress: func(p exporter.ProgressEvent) {
			if p.Percent == lastPercent {
				return
			}
			lastPercent = p.Percent
			send("progress", p.Stage, map[string]any{"percent": p.Percent})
		},
	})
	if err != nil {
		fail("导出失败", err)
		return
	}
	defer file.Close()

	tempPath := filepath.Join(h.exportDir, fmt.Sprintf("raingauge_export_%s_%s.xlsx", now.Format("20060102150405"), newRandomToken(9)))
	if err := file.SaveAs(tempPath); err != nil {
		_ = os.Remove(tempPath)
		fail("写入导出文件失败", err)
		return
	}

	token := h.downloads.put(tempPath, now, h.downloadTTL)
	prefix := strings.TrimSuffix(c.FullPath(), "/exception-data/export/stream")
	downloadURL := fmt.Sprintf("%s/exception-data/export/download/%s", prefix, token)

	send("done", "导出完成", map[string]any{
		"percent":     100,
		"rows":        len(items),
		"downloadUrl": downloadURL,
	})
}

// DownloadExport 下载导出的 Excel 文件（一次性）
// GET /api/exception-data/export/download/:token
func (h *Handler) DownloadExport(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeBadRequest, "message": "缺少 token"})
		return
	}

	item, ok := h.downloads.take(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "下载链接已失效"})
		return
	}
	defer os.Remove(item.filePath)

	if _, err := os.Stat(item.filePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "导出文件不存在"})
		return
	}

	c.Header("Content-Disposition", exporter.ContentDisposition(item.exportedAt))
	c.Header("Content-Type", exporter.ContentType)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.File(item.filePath)
}
