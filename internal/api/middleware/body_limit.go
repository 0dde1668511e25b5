package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classhub/pkg/response"
)

// BodyLimit 全局请求体大小限制中间件
// maxBytes: 允许的最大请求体字节数（multipart 上传需覆盖 5×10MB 附件及表单开销）
// 声明长度超限直接拒绝；分块上传由 MaxBytesReader 截断，Handler 通过 IsBodyTooLarge 识别
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "Request body too large")
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// IsBodyTooLarge 判断错误是否由请求体超限引起
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
