// Package response 提供统一的 HTTP 响应信封：{success, data, message}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 统一响应结构，所有接口共用
type Envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Message *string `json:"message"`
}

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Error 返回业务失败响应（HTTP 200，信封层标记失败）
func Error(c *gin.Context, message string) {
	ErrorWithStatus(c, http.StatusOK, message)
}

// ErrorWithStatus 返回指定状态码的失败响应
func ErrorWithStatus(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: &message})
}

// InternalError 返回通用内部错误，细节只进日志不出信封
func InternalError(c *gin.Context) {
	ErrorWithStatus(c, http.StatusInternalServerError, "internal server error")
}
