package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock_analysis/internal/config"
	"stock_analysis/internal/metrics"
	"stock_analysis/internal/models"
	"stock_analysis/internal/service"
)

type fakeBarService struct {
	lastQuery service.BarQuery
	result    *service.BarsResult
	sync      *service.SyncResult
	err       error
}

func (f *fakeBarService) GetBars(_ context.Context, q service.BarQuery) (*service.BarsResult, error) {
	f.lastQuery = q
	return f.result, f.err
}

func (f *fakeBarService) SyncStock(_ context.Context, code string) (*service.SyncResult, error) {
	return f.sync, f.err
}

type fakeStockService struct {
	lastType    string
	lastKeyword string
	list        []models.StockInfo
	syncResult  *service.StockListResult
	err         error
}

func (f *fakeStockService) List(_ context.Context, stockType string) ([]models.StockInfo, error) {
	f.lastType = stockType
	return f.list, f.err
}

func (f *fakeStockService) Search(_ context.Context, keyword string) ([]models.StockInfo, error) {
	f.lastKeyword = keyword
	return f.list, f.err
}

func (f *fakeStockService) SyncStockList(context.Context) (*service.StockListResult, error) {
	return f.syncResult, f.err
}

func newTestRouter(bars *fakeBarService, stocks *fakeStockService, pingErr error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:  config.ServerConfig{AllowOrigins: []string{"http://localhost:5173"}},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	ping := func(context.Context) error { return pingErr }
	h := NewHandler(bars, stocks, ping, zap.NewNop())
	return NewRouter(cfg, h, metrics.New(), zap.NewNop())
}

func doRequest(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	r := newTestRouter(&fakeBarService{}, &fakeStockService{}, nil)

	rec := doRequest(r, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Stock Analysis API is running", decodeBody(t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get(TraceIDHeader))
}

func TestHealthCheck(t *testing.T) {
	rec := doRequest(newTestRouter(&fakeBarService{}, &fakeStockService{}, nil), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(newTestRouter(&fakeBarService{}, &fakeStockService{}, errors.New("down")), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestGetStockData_Success 测试日线查询响应结构
func TestGetStockData_Success(t *testing.T) {
	bars := &fakeBarService{result: &service.BarsResult{
		Code: "sh600000",
		Name: "浦发银行",
		Bars: []models.Bar{{
			Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:   decimal.RequireFromString("7.050"),
			High:   decimal.RequireFromString("7.120"),
			Low:    decimal.RequireFromString("7.010"),
			Close:  decimal.RequireFromString("7.100"),
			Volume: 301234,
		}},
		FromDatabase: true,
		AutoSynced:   true,
	}}
	r := newTestRouter(bars, &fakeStockService{}, nil)

	rec := doRequest(r, http.MethodGet, "/api/stock/600000?start_date=2024-01-01&end_date=2024-01-31&days=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BarsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sh600000", resp.Code)
	assert.Equal(t, "浦发银行", resp.Name)
	assert.Equal(t, 1, resp.Total)
	assert.True(t, resp.FromDatabase)
	assert.True(t, resp.AutoSynced)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, Bar{Date: "2024-01-02", Open: 7.05, High: 7.12, Low: 7.01, Close: 7.1, Volume: 301234}, resp.Data[0])

	// 参数透传
	assert.Equal(t, "600000", bars.lastQuery.Code)
	require.NotNil(t, bars.lastQuery.StartDate)
	require.NotNil(t, bars.lastQuery.EndDate)
	assert.Equal(t, "2024-01-01", bars.lastQuery.StartDate.Format(models.DateLayout))
	assert.Equal(t, "2024-01-31", bars.lastQuery.EndDate.Format(models.DateLayout))
	assert.Equal(t, 30, bars.lastQuery.Days)
}

func TestGetStockData_DefaultQuery(t *testing.T) {
	bars := &fakeBarService{result: &service.BarsResult{Code: "sh600000", Name: "sh600000", FromDatabase: true}}
	r := newTestRouter(bars, &fakeStockService{}, nil)

	rec := doRequest(r, http.MethodGet, "/api/stock/sh600000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, bars.lastQuery.StartDate)
	assert.Nil(t, bars.lastQuery.EndDate)
	assert.Zero(t, bars.lastQuery.Days)
}

// TestGetStockData_BadParams 测试参数校验
func TestGetStockData_BadParams(t *testing.T) {
	r := newTestRouter(&fakeBarService{}, &fakeStockService{}, nil)

	for _, target := range []string{
		"/api/stock/600000?start_date=2024/01/01",
		"/api/stock/600000?end_date=20240101",
		"/api/stock/600000?days=0",
		"/api/stock/600000?days=abc",
	} {
		rec := doRequest(r, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, decodeBody(t, rec)["detail"], "参数错误", target)
	}
}

// TestErrorMapping 测试错误类型到状态码的映射
func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: sh600000", service.ErrUpstreamEmpty), http.StatusNotFound},
		{fmt.Errorf("%w: sh600000", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: timeout", service.ErrUpstreamCall), http.StatusBadGateway},
		{fmt.Errorf("%w: pool exhausted", service.ErrStore), http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		r := newTestRouter(&fakeBarService{err: tt.err}, &fakeStockService{}, nil)
		rec := doRequest(r, http.MethodGet, "/api/stock/600000")
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Equal(t, tt.err.Error(), decodeBody(t, rec)["detail"])
	}
}

func TestListStocks(t *testing.T) {
	stocks := &fakeStockService{list: []models.StockInfo{
		{Code: "sh000001", Name: "上证指数", Market: "上交所", Type: models.TypeIndex, PinyinFull: "shangzhengzhishu"},
	}}
	r := newTestRouter(&fakeBarService{}, stocks, nil)

	rec := doRequest(r, http.MethodGet, "/api/stocks/list?type=index")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index", stocks.lastType)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
	item := body["stocks"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "sh000001", item["code"])
	assert.Equal(t, "index", item["type"])
	assert.NotContains(t, item, "pinyin_full")

	rec = doRequest(r, http.MethodGet, "/api/stocks/list?type=bond")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchStocks(t *testing.T) {
	stocks := &fakeStockService{list: []models.StockInfo{{Code: "sh600000", Name: "浦发银行"}}}
	r := newTestRouter(&fakeBarService{}, stocks, nil)

	rec := doRequest(r, http.MethodGet, "/api/stocks/search?keyword=pfyh")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "pfyh", body["keyword"])
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, "pfyh", stocks.lastKeyword)

	rec = doRequest(r, http.MethodGet, "/api/stocks/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncStockList(t *testing.T) {
	stocks := &fakeStockService{syncResult: &service.StockListResult{TotalStocks: 5000, Message: "股票列表同步完成"}}
	r := newTestRouter(&fakeBarService{}, stocks, nil)

	rec := doRequest(r, http.MethodPost, "/api/sync/stock-list")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(5000), body["total_stocks"])
}

func TestSyncStock(t *testing.T) {
	bars := &fakeBarService{sync: &service.SyncResult{
		Code:             "sh600000",
		TotalFromAkshare: 10,
		Inserted:         4,
		DatabaseInfo:     models.DataRange{Earliest: "2024-01-02", Latest: "2024-01-15", Total: 10},
	}}
	r := newTestRouter(bars, &fakeStockService{}, nil)

	rec := doRequest(r, http.MethodPost, "/api/sync/stock/600000")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SyncStockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(4), resp.Inserted)
	assert.Equal(t, "2024-01-02", resp.DatabaseInfo.Earliest)
}

func TestTraceIDHeaderPropagated(t *testing.T) {
	r := newTestRouter(&fakeBarService{}, &fakeStockService{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "req-123")
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(TraceIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeBarService{}, &fakeStockService{}, nil)

	rec := doRequest(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&fakeBarService{}, &fakeStockService{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/stocks/list", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestCORSPreflight_CredentialedHeaders 测试携带凭证的预检请求返回具体的请求头列表
func TestCORSPreflight_CredentialedHeaders(t *testing.T) {
	r := newTestRouter(&fakeBarService{}, &fakeStockService{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/sync/stock-list", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Request-ID")
	r.ServeHTTP(rec, req)

	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	allowed := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers"))
	assert.NotContains(t, allowed, "*")
	assert.Contains(t, allowed, "content-type")
	assert.Contains(t, allowed, "x-request-id")
}
