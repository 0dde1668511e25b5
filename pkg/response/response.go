package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 统一响应信封：{ success, code, message?, ...payload }
// payload 字段平铺到顶层，与前端约定一致

// OK 200 成功响应，payload 的键直接并入信封
func OK(c *gin.Context, payload gin.H) {
	write(c, http.StatusOK, "", payload)
}

// Created 201 创建成功
func Created(c *gin.Context, payload gin.H) {
	write(c, http.StatusCreated, "", payload)
}

// Message 200 仅带提示信息的成功响应
func Message(c *gin.Context, message string, payload gin.H) {
	write(c, http.StatusOK, message, payload)
}

func write(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"success": true, "code": 0}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		switch k {
		case "success", "code":
			continue
		}
		body[k] = v
	}
	c.JSON(status, body)
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// ── 常见快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// InternalError 500，不向调用方暴露内部错误
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 10000, "Internal server error")
}
