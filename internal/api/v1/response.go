package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// 业务错误码
const (
	codeOK            = 200
	codeBadRequest    = 400
	codeInternal      = 500
	codeNotFound      = 1001
	codeUpdateMissing = 1003
)

func writeOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    codeOK,
		"message": message,
		"data":    data,
	})
}

// writeError 领域错误到 HTTP 响应的统一映射
func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		h.logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.String("field", ve.Field), zap.String("error", ve.Message))
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    codeBadRequest,
			"message": "请求参数错误",
			"error":   ve.Error(),
		})

	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{
			"code":       codeNotFound,
			"success":    false,
			"message":    "未找到符合条件的异常数据",
			"error":      err.Error(),
			"suggestion": "请检查测站编码和异常时间是否正确，或该异常数据可能已经被处理过",
			"action":     "建议：1. 核对测站编码 2. 确认异常时间精确到秒 3. 检查数据是否已被处理",
		})

	case errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusOK, gin.H{
			"code":       codeUpdateMissing,
			"success":    false,
			"message":    "未找到匹配的异常记录",
			"error":      err.Error(),
			"suggestion": "请检查异常时间是否准确，或查看可用异常时间列表",
			"action":     "建议：1. 确认测站编码正确 2. 检查异常时间是否准确 3. 确认数据存在且未处理",
		})

	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    codeInternal,
			"message": "服务器内部错误",
			"error":   err.Error(),
		})
	}
}
