package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_analysis/internal/models"
)

// Coverage 某代码已入库的日线覆盖情况
type Coverage struct {
	Earliest time.Time
	Latest   time.Time
	Total    int64
}

// Exists 是否已有任意一条数据
func (c Coverage) Exists() bool {
	return c.Total > 0
}

// DataRange 转换为对外结构
func (c Coverage) DataRange() models.DataRange {
	r := models.DataRange{Total: c.Total}
	if c.Exists() {
		r.Earliest = c.Earliest.Format(models.DateLayout)
		r.Latest = c.Latest.Format(models.DateLayout)
	}
	return r
}

// BarStore 日线数据存储
type BarStore struct {
	db        *gorm.DB
	batchSize int
}

// NewBarStore 创建日线存储
func NewBarStore(db *gorm.DB, batchSize int) *BarStore {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &BarStore{db: db, batchSize: batchSize}
}

// InsertBars 批量插入，(code, date) 冲突的行直接跳过，返回实际新增行数
func (s *BarStore) InsertBars(ctx context.Context, code string, bars []models.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	rows := make([]models.StockDaily, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, models.StockDaily{
			Code:   code,
			Date:   models.DateOnly(b.Date),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, s.batchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Coverage 查询某代码最早、最晚日期及总行数
func (s *BarStore) Coverage(ctx context.Context, code string) (Coverage, error) {
	var cov Coverage

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.StockDaily{}).Where("code = ?", code).Count(&cov.Total).Error; err != nil {
		return cov, err
	}
	if cov.Total == 0 {
		return cov, nil
	}

	var first, last models.StockDaily
	if err := db.Where("code = ?", code).Order("date ASC").Limit(1).Take(&first).Error; err != nil {
		return cov, err
	}
	if err := db.Where("code = ?", code).Order("date DESC").Limit(1).Take(&last).Error; err != nil {
		return cov, err
	}
	cov.Earliest = models.DateOnly(first.Date)
	cov.Latest = models.DateOnly(last.Date)
	return cov, nil
}

// QueryRange 按日期区间查询（闭区间），nil 表示该侧不设限，结果按日期升序
func (s *BarStore) QueryRange(ctx context.Context, code string, start, end *time.Time) ([]models.Bar, error) {
	db := s.db.WithContext(ctx).Where("code = ?", code)
	if start != nil {
		db = db.Where("date >= ?", models.DateOnly(*start))
	}
	if end != nil {
		db = db.Where("date <= ?", models.DateOnly(*end))
	}

	var rows []models.StockDaily
	if err := db.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBars(rows), nil
}

// QueryLatest 查询最近 days 条数据，结果按日期升序
func (s *BarStore) QueryLatest(ctx context.Context, code string, days int) ([]models.Bar, error) {
	var rows []models.StockDaily
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		Order("date DESC").
		Limit(days).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// 倒序取出后翻转为升序
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toBars(rows), nil
}

func toBars(rows []models.StockDaily) []models.Bar {
	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, r.ToBar())
	}
	return bars
}
