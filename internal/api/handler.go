package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_analysis/internal/models"
	"stock_analysis/internal/service"
)

// BarService 日线查询与同步
type BarService interface {
	GetBars(ctx context.Context, q service.BarQuery) (*service.BarsResult, error)
	SyncStock(ctx context.Context, code string) (*service.SyncResult, error)
}

// StockService 证券列表、搜索与列表同步
type StockService interface {
	List(ctx context.Context, stockType string) ([]models.StockInfo, error)
	Search(ctx context.Context, keyword string) ([]models.StockInfo, error)
	SyncStockList(ctx context.Context) (*service.StockListResult, error)
}

// Handler API 处理器
type Handler struct {
	bars   BarService
	stocks StockService
	ping   func(ctx context.Context) error
	logger *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(bars BarService, stocks StockService, ping func(ctx context.Context) error, logger *zap.Logger) *Handler {
	return &Handler{
		bars:   bars,
		stocks: stocks,
		ping:   ping,
		logger: logger,
	}
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// StockListResponse 证券列表
type StockListResponse struct {
	Total  int                `json:"total"`
	Stocks []models.StockInfo `json:"stocks"`
}

// SearchResponse 搜索结果
type SearchResponse struct {
	Keyword string             `json:"keyword"`
	Total   int                `json:"total"`
	Results []models.StockInfo `json:"results"`
}

// SyncListResponse 股票列表同步结果
type SyncListResponse struct {
	Success     bool   `json:"success"`
	TotalStocks int    `json:"total_stocks"`
	Message     string `json:"message"`
}

// SyncStockResponse 单只证券同步结果
type SyncStockResponse struct {
	Success          bool             `json:"success"`
	Code             string           `json:"code"`
	TotalFromAkshare int              `json:"total_from_akshare"`
	Inserted         int64            `json:"inserted"`
	DatabaseInfo     models.DataRange `json:"database_info"`
}

// Bar 日线
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// BarsResponse 日线查询结果
type BarsResponse struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Data         []Bar  `json:"data"`
	Total        int    `json:"total"`
	FromDatabase bool   `json:"from_database"`
	AutoSynced   bool   `json:"auto_synced"`
}

// ListRequest 证券列表参数
type ListRequest struct {
	Type string `form:"type" binding:"omitempty,oneof=stock index"`
}

// SearchRequest 搜索参数
type SearchRequest struct {
	Keyword string `form:"keyword" binding:"required"`
}

// BarsRequest 日线查询参数
type BarsRequest struct {
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Days      *int   `form:"days" binding:"omitempty,min=1"`
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)

	api := r.Group("/api")
	{
		// 健康检查
		api.GET("/health", h.HealthCheck)

		// 证券列表与搜索
		api.GET("/stocks/list", h.ListStocks)
		api.GET("/stocks/search", h.SearchStocks)

		// 同步
		sync := api.Group("/sync")
		{
			sync.POST("/stock-list", h.SyncStockList)
			sync.POST("/stock/:code", h.SyncStock)
		}

		// 日线数据
		api.GET("/stock/:code", h.GetStockData)
	}
}

// Root 服务状态
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Stock Analysis API is running"})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.log(c).Error("数据库健康检查失败", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ListStocks 获取证券列表
func (h *Handler) ListStocks(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	stocks, err := h.stocks.List(c.Request.Context(), req.Type)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, StockListResponse{Total: len(stocks), Stocks: stocks})
}

// SearchStocks 搜索证券
func (h *Handler) SearchStocks(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	results, err := h.stocks.Search(c.Request.Context(), req.Keyword)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Keyword: req.Keyword, Total: len(results), Results: results})
}

// SyncStockList 同步 A 股股票列表
func (h *Handler) SyncStockList(c *gin.Context) {
	h.log(c).Info("收到股票列表同步请求")

	result, err := h.stocks.SyncStockList(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SyncListResponse{
		Success:     true,
		TotalStocks: result.TotalStocks,
		Message:     result.Message,
	})
}

// SyncStock 强制同步指定证券的历史数据
func (h *Handler) SyncStock(c *gin.Context) {
	code := c.Param("code")
	h.log(c).Info("收到日线同步请求", zap.String("code", code))

	result, err := h.bars.SyncStock(c.Request.Context(), code)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SyncStockResponse{
		Success:          true,
		Code:             result.Code,
		TotalFromAkshare: result.TotalFromAkshare,
		Inserted:         result.Inserted,
		DatabaseInfo:     result.DatabaseInfo,
	})
}

// GetStockData 获取日线数据，库中没有时自动同步
func (h *Handler) GetStockData(c *gin.Context) {
	var req BarsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	q := service.BarQuery{Code: c.Param("code")}
	q.StartDate = parseDate(req.StartDate)
	q.EndDate = parseDate(req.EndDate)
	if req.Days != nil {
		q.Days = *req.Days
	}

	result, err := h.bars.GetBars(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	data := make([]Bar, 0, len(result.Bars))
	for _, b := range result.Bars {
		data = append(data, Bar{
			Date:   b.Date.Format(models.DateLayout),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: b.Volume,
		})
	}

	c.JSON(http.StatusOK, BarsResponse{
		Code:         result.Code,
		Name:         result.Name,
		Data:         data,
		Total:        len(data),
		FromDatabase: result.FromDatabase,
		AutoSynced:   result.AutoSynced,
	})
}

// parseDate 已通过 binding 校验格式
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "参数错误: " + err.Error()})
}

// fail 按错误类型映射状态码
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	log := h.log(c).With(zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		log.Error("请求处理失败")
	} else {
		log.Warn("请求处理失败")
	}
	c.JSON(status, ErrorResponse{Detail: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrUpstreamEmpty), errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUpstreamCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) log(c *gin.Context) *zap.Logger {
	return h.logger.With(zap.String("trace_id", c.GetString(TraceIDKey)))
}
