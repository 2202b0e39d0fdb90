package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_analysis/internal/config"
	"stock_analysis/internal/metrics"
)

// NewRouter 创建 Gin 引擎并挂载中间件、业务路由与指标
func NewRouter(cfg *config.Config, h *Handler, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(TraceID(), AccessLog(logger), Recovery(logger))

	// 配置 CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", TraceIDHeader},
		ExposeHeaders:    []string{TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h.RegisterRoutes(r)

	if cfg.Metrics.Enabled && m != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	return r
}
