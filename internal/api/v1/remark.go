package v1

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// remarkRequest 填写异常原因请求（表单或 JSON）
type remarkRequest struct {
	StationCode   string `form:"stcd" json:"stcd" binding:"required,max=50"`
	Remark        string `form:"rem" json:"rem" binding:"required,max=500"`
	ExceptionTime string `form:"tm" json:"tm" binding:"required,exceptime"`
	ResolverName  string `form:"name" json:"name" binding:"required,max=100"`
	Status        *int   `form:"status" json:"status" binding:"required,min=0,max=10"`
}

// remarkResponseData 处理结果
type remarkResponseData struct {
	StationCode   string  `json:"station_code"`
	StationName   string  `json:"station_name"`
	ExceptionTime string  `json:"exception_time"`
	OldRemark     *string `json:"old_remark"`
	NewRemark     string  `json:"new_remark"`
	ResolverName  string  `json:"resolver_name"`
	Status        int     `json:"status"`
	UpdatedAt     string  `json:"updated_at"`
}

var registerOnce sync.Once

// registerValidators 在 gin 的校验器上注册 exceptime 规则
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("exceptime", validExceptionTime)
		}
	})
}

// validExceptionTime 可规范化为 YYYY-MM-DD HH:MM:SS 的时间
func validExceptionTime(fl validator.FieldLevel) bool {
	_, err := model.ParseTime(fl.Field().String())
	return err == nil
}

// RemarkException 填写异常原因
// POST /api/remarkExecInfo
func (h *Handler) RemarkException(c *gin.Context) {
	var req remarkRequest
	if err := c.ShouldBind(&req); err != nil {
		h.writeError(c, bindingError(err))
		return
	}

	tm, err := model.ParseTime(req.ExceptionTime)
	if err != nil {
		h.writeError(c, model.NewValidationError("tm", err.Error()))
		return
	}

	detail, err := h.svc.ResolveException(c.Request.Context(), model.ResolveRequest{
		StationCode:   req.StationCode,
		ExceptionTime: tm,
		Remark:        req.Remark,
		ResolverName:  req.ResolverName,
		Status:        *req.Status,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    codeOK,
		"success": true,
		"message": "异常原因更新成功",
		"data": remarkResponseData{
			StationCode:   detail.StationCode,
			StationName:   detail.StationName,
			ExceptionTime: model.FormatTime(detail.ExceptionTime),
			OldRemark:     detail.OldRemark,
			NewRemark:     detail.NewRemark,
			ResolverName:  detail.ResolverName,
			Status:        detail.Status,
			UpdatedAt:     model.FormatTime(detail.ResolvedAt),
		},
	})
}

// 表单字段名
var remarkFieldNames = map[string]string{
	"StationCode":   "stcd",
	"Remark":        "rem",
	"ExceptionTime": "tm",
	"ResolverName":  "name",
	"Status":        "status",
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewValidationError("body", err.Error())
	}

	fe := verrs[0]
	field := remarkFieldNames[fe.Field()]
	switch fe.Tag() {
	case "required":
		return model.NewValidationError(field, field+" 不能为空")
	case "max":
		return model.NewValidationError(field, fmt.Sprintf("%s 长度不能超过 %s", field, fe.Param()))
	case "min":
		return model.NewValidationError(field, fmt.Sprintf("%s 不能小于 %s", field, fe.Param()))
	case "exceptime":
		return model.NewValidationError(field, "时间格式错误，应为 YYYY-MM-DD HH:MM:SS")
	}
	return model.NewValidationError(field, fe.Error())
}
