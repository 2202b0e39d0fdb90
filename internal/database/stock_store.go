package database

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_analysis/internal/models"
	"stock_analysis/internal/symbol"
)

// SearchLimit 搜索结果上限
const SearchLimit = 50

// StockStore 证券基础信息存储
type StockStore struct {
	db *gorm.DB
}

// NewStockStore 创建基础信息存储
func NewStockStore(db *gorm.DB) *StockStore {
	return &StockStore{db: db}
}

// Upsert 按 code 插入或更新名称、拼音与市场，type 与 is_active 只在首次插入时写入
func (s *StockStore) Upsert(ctx context.Context, info *models.StockInfo) error {
	if info.Type == "" {
		info.Type = models.TypeStock
	}
	info.IsActive = true

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "pinyin_full", "pinyin_abbr", "market", "updated_at"}),
		}).
		Create(info).Error
}

// List 列出有效证券，stockType 为空时不过滤类型
func (s *StockStore) List(ctx context.Context, stockType string) ([]models.StockInfo, error) {
	db := s.db.WithContext(ctx).Where("is_active = ?", true)
	if stockType != "" {
		db = db.Where("type = ?", stockType)
	}

	var list []models.StockInfo
	if err := db.Order("code ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Search 按代码、名称、拼音模糊匹配并排序：
// 代码完全相等 > 代码前缀 > 名称包含 > 拼音首字母前缀 > 其余
func (s *StockStore) Search(ctx context.Context, keyword string) ([]models.StockInfo, error) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return []models.StockInfo{}, nil
	}

	// 裸代码同时按规范代码匹配，600000 可精确命中 sh600000
	norm := symbol.Normalize(kw).Storage

	escaped := escapeLike(kw)
	contains := "%" + escaped + "%"
	prefix := escaped + "%"
	normPrefix := escapeLike(norm) + "%"

	rank := clause.Expr{
		SQL: `CASE
			WHEN LOWER(code) IN (?, ?) THEN 0
			WHEN LOWER(code) LIKE ? ESCAPE '!' OR LOWER(code) LIKE ? ESCAPE '!' THEN 1
			WHEN LOWER(name) LIKE ? ESCAPE '!' THEN 2
			WHEN LOWER(pinyin_abbr) LIKE ? ESCAPE '!' THEN 3
			ELSE 4 END, code ASC`,
		Vars: []interface{}{kw, norm, prefix, normPrefix, contains, prefix},
	}

	var list []models.StockInfo
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(`(LOWER(code) LIKE ? ESCAPE '!' OR LOWER(name) LIKE ? ESCAPE '!'
			OR LOWER(pinyin_full) LIKE ? ESCAPE '!' OR LOWER(pinyin_abbr) LIKE ? ESCAPE '!')`,
			contains, contains, contains, contains).
		Clauses(clause.OrderBy{Expression: rank}).
		Limit(SearchLimit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListMissingPinyin 列出尚未生成拼音的记录
func (s *StockStore) ListMissingPinyin(ctx context.Context) ([]models.StockInfo, error) {
	var list []models.StockInfo
	err := s.db.WithContext(ctx).
		Where("pinyin_full IS NULL OR pinyin_full = ''").
		Order("code ASC").
		Find(&list).Error
	return list, err
}

// UpdatePinyin 更新单条记录的拼音字段
func (s *StockStore) UpdatePinyin(ctx context.Context, code, full, abbr string) error {
	return s.db.WithContext(ctx).
		Model(&models.StockInfo{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{"pinyin_full": full, "pinyin_abbr": abbr}).Error
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
