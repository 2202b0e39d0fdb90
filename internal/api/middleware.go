package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// TraceIDKey gin 上下文中的 trace id
	TraceIDKey = "trace_id"
	// TraceIDHeader 透传的请求头
	TraceIDHeader = "X-Request-ID"
)

// TraceID 为每个请求分配 trace id，优先沿用请求头
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TraceIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(TraceIDKey, id)
		c.Header(TraceIDHeader, id)
		c.Next()
	}
}

// AccessLog 使用 zap 记录访问日志
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("access",
			zap.String("trace_id", c.GetString(TraceIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Recovery 捕获 panic 并返回 500
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("trace_id", c.GetString(TraceIDKey)),
			zap.Any("error", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Detail: "Internal Server Error"})
	})
}
