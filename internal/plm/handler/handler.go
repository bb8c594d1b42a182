package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomio"
	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
	"github.com/bitfantasy/nimo-bom/internal/plm/service"
	"github.com/bitfantasy/nimo-bom/internal/plm/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	BOM      *BOMTreeHandler
	Template *TemplateHandler
	SSE      *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, maxUploadSize int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		BOM:      NewBOMTreeHandler(svc.BOM, maxUploadSize, logger),
		Template: NewTemplateHandler(svc.Template),
		SSE:      NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 带数据的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// respondError 按错误类型映射状态码
func respondError(c *gin.Context, err error) {
	var mismatch *bomtree.CategoryMismatchError
	switch {
	case errors.As(err, &mismatch):
		ErrorWithData(c, 42200, err.Error(), gin.H{
			"source_category": mismatch.Source,
			"target_category": mismatch.Target,
		})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrNodeNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrLevelMismatch),
		errors.Is(err, service.ErrInvalidFormat),
		errors.Is(err, bomio.ErrUnsupportedFormat):
		BadRequest(c, err.Error())
	default:
		_ = c.Error(err)
		InternalError(c, err.Error())
	}
}
