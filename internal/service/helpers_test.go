package service

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock_analysis/internal/config"
	"stock_analysis/internal/database"
	"stock_analysis/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Type:     "sqlite",
		Path:     filepath.Join(t.TempDir(), "stock.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func makeBars(dates ...string) []models.Bar {
	bars := make([]models.Bar, 0, len(dates))
	for i, d := range dates {
		p := decimal.NewFromFloat(10 + float64(i)/10)
		bars = append(bars, models.Bar{Date: day(d), Open: p, High: p, Low: p, Close: p, Volume: int64(1000 + i)})
	}
	return bars
}

// fakeProvider 记录调用次数的上游
type fakeProvider struct {
	mu          sync.Mutex
	equityCalls []string
	indexCalls  []string
	adjusts     []string
	calls       atomic.Int32

	bars    []models.Bar
	spot    []SpotRow
	err     error
	gate    chan struct{} // 非空时阻塞直到关闭
	entered chan struct{}
}

func (f *fakeProvider) wait() {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeProvider) FetchEquityDaily(_ context.Context, code, adjust string) ([]models.Bar, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.equityCalls = append(f.equityCalls, code)
	f.adjusts = append(f.adjusts, adjust)
	f.mu.Unlock()
	f.wait()
	return f.bars, f.err
}

func (f *fakeProvider) FetchIndexDaily(_ context.Context, code string) ([]models.Bar, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.indexCalls = append(f.indexCalls, code)
	f.mu.Unlock()
	f.wait()
	return f.bars, f.err
}

func (f *fakeProvider) FetchAllEquitySnapshot(context.Context) ([]SpotRow, error) {
	f.calls.Add(1)
	return f.spot, f.err
}

type testEnv struct {
	db       *gorm.DB
	bars     *database.BarStore
	stocks   *database.StockStore
	syncs    *database.SyncStore
	provider *fakeProvider
	stockSvc *StockService
	barSvc   *BarService
}

func newTestEnv(t *testing.T, provider *fakeProvider, lease SyncLease) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:       db,
		bars:     database.NewBarStore(db, 100),
		stocks:   database.NewStockStore(db),
		syncs:    database.NewSyncStore(db),
		provider: provider,
	}
	env.stockSvc = NewStockService(env.stocks, provider, nil, 4, zap.NewNop())
	env.barSvc = NewBarService(env.bars, env.syncs, env.stockSvc, provider, lease, nil, zap.NewNop(), 100)
	return env
}
