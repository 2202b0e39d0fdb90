package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock_analysis/internal/config"
	"stock_analysis/internal/metrics"
	"stock_analysis/internal/models"
)

// 上游接口名称
const (
	FuncEquityDaily    = "stock_zh_a_hist"
	FuncIndexDaily     = "stock_zh_index_daily"
	FuncEquitySnapshot = "stock_zh_a_spot"

	// AdjustForward 前复权
	AdjustForward = "qfq"
)

// Provider 行情数据源
type Provider interface {
	FetchEquityDaily(ctx context.Context, code, adjust string) ([]models.Bar, error)
	FetchIndexDaily(ctx context.Context, code string) ([]models.Bar, error)
	FetchAllEquitySnapshot(ctx context.Context) ([]SpotRow, error)
}

// SpotRow A 股实时行情列表中的代码与名称
type SpotRow struct {
	Code string
	Name string
}

// Record 上游返回的一行数据
type Record map[string]interface{}

// barFields 不同接口的列名
type barFields struct {
	Date, Open, High, Low, Close, Volume string
}

var (
	// 股票接口返回中文列名
	equityFields = barFields{Date: "日期", Open: "开盘", High: "最高", Low: "最低", Close: "收盘", Volume: "成交量"}

	// 指数接口返回英文列名
	indexFields = barFields{Date: "date", Open: "open", High: "high", Low: "low", Close: "close", Volume: "volume"}
)

// AkshareClient AKTools HTTP 网关客户端
type AkshareClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAkshareClient 创建客户端，超时取自配置，不重试
func NewAkshareClient(cfg *config.AkshareConfig, logger *zap.Logger, m *metrics.Metrics) *AkshareClient {
	return &AkshareClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.UpstreamTimeout(),
		},
		logger:  logger,
		metrics: m,
	}
}

// FetchEquityDaily 获取股票日线，code 为不带市场前缀的代码
func (c *AkshareClient) FetchEquityDaily(ctx context.Context, code, adjust string) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("symbol", code)
	params.Set("period", "daily")
	params.Set("adjust", adjust)

	records, err := c.request(ctx, FuncEquityDaily, params)
	if err != nil {
		return nil, err
	}
	return c.parseBars(records, equityFields), nil
}

// FetchIndexDaily 获取指数日线，code 为带市场前缀的代码
func (c *AkshareClient) FetchIndexDaily(ctx context.Context, code string) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("symbol", code)

	records, err := c.request(ctx, FuncIndexDaily, params)
	if err != nil {
		return nil, err
	}
	return c.parseBars(records, indexFields), nil
}

// FetchAllEquitySnapshot 获取全部 A 股代码与名称
func (c *AkshareClient) FetchAllEquitySnapshot(ctx context.Context) ([]SpotRow, error) {
	records, err := c.request(ctx, FuncEquitySnapshot, url.Values{})
	if err != nil {
		return nil, err
	}

	result := make([]SpotRow, 0, len(records))
	for _, rec := range records {
		row := SpotRow{
			Code: getString(rec, "代码"),
			Name: getString(rec, "名称"),
		}
		if row.Code == "" || row.Name == "" {
			c.logger.Warn("跳过无效的股票列表行", zap.Any("record", rec))
			continue
		}
		result = append(result, row)
	}
	return result, nil
}

// request 发送请求并解析为记录数组
func (c *AkshareClient) request(ctx context.Context, fn string, params url.Values) ([]Record, error) {
	start := time.Now()
	records, err := c.doRequest(ctx, fn, params)

	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case len(records) == 0:
		result = "empty"
	}
	c.metrics.ObserveUpstream(fn, result, time.Since(start))

	if err != nil {
		c.logger.Error("上游请求失败", zap.String("func", fn), zap.String("params", params.Encode()), zap.Error(err))
		return nil, err
	}
	c.logger.Info("上游请求完成",
		zap.String("func", fn),
		zap.String("params", params.Encode()),
		zap.Int("rows", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

// doRequest 执行 HTTP 请求
func (c *AkshareClient) doRequest(ctx context.Context, fn string, params url.Values) ([]Record, error) {
	endpoint := fmt.Sprintf("%s/api/public/%s", c.baseURL, fn)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建请求失败: %v", ErrUpstreamCall, err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: 发送请求失败: %v", ErrUpstreamCall, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", ErrUpstreamCall, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamCall, httpResp.StatusCode, truncate(body, 200))
	}

	var records []Record
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: 解析响应失败: %v", ErrUpstreamCall, err)
	}

	return records, nil
}

// parseBars 按列名映射把上游记录转换为统一结构，无法解析的行跳过
func (c *AkshareClient) parseBars(records []Record, fields barFields) []models.Bar {
	result := make([]models.Bar, 0, len(records))
	skipped := 0

	for _, rec := range records {
		bar, err := parseBar(rec, fields)
		if err != nil {
			skipped++
			c.logger.Warn("跳过无法解析的行情", zap.Any("record", rec), zap.Error(err))
			continue
		}
		result = append(result, bar)
	}

	if skipped > 0 {
		c.logger.Warn("部分行情解析失败", zap.Int("skipped", skipped), zap.Int("parsed", len(result)))
	}
	return result
}

func parseBar(rec Record, fields barFields) (models.Bar, error) {
	var bar models.Bar
	var err error

	if bar.Date, err = getDate(rec, fields.Date); err != nil {
		return bar, err
	}
	if bar.Open, err = getDecimal(rec, fields.Open); err != nil {
		return bar, err
	}
	if bar.High, err = getDecimal(rec, fields.High); err != nil {
		return bar, err
	}
	if bar.Low, err = getDecimal(rec, fields.Low); err != nil {
		return bar, err
	}
	if bar.Close, err = getDecimal(rec, fields.Close); err != nil {
		return bar, err
	}
	volume, err := getDecimal(rec, fields.Volume)
	if err != nil {
		return bar, err
	}
	bar.Volume = volume.IntPart()
	return bar, nil
}

// 辅助函数
func getString(rec Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func getDecimal(rec Record, key string) (decimal.Decimal, error) {
	switch v := rec[key].(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case nil:
		return decimal.Zero, fmt.Errorf("缺少字段 %s", key)
	default:
		return decimal.Zero, fmt.Errorf("字段 %s 类型不支持: %T", key, v)
	}
}

// 上游日期可能是纯日期、带时间或紧凑格式
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"20060102",
}

func getDate(rec Record, key string) (time.Time, error) {
	s := getString(rec, key)
	if s == "" {
		return time.Time{}, fmt.Errorf("缺少字段 %s", key)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
