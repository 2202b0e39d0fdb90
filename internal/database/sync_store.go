package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_analysis/internal/models"
)

// SyncStore 同步记录存储
type SyncStore struct {
	db *gorm.DB
}

// NewSyncStore 创建同步记录存储
func NewSyncStore(db *gorm.DB) *SyncStore {
	return &SyncStore{db: db}
}

// Upsert 记录某代码的最近同步日期与上游返回行数
func (s *SyncStore) Upsert(ctx context.Context, code string, total int) error {
	now := time.Now().UTC()
	record := models.SyncRecord{
		Code:         code,
		LastSyncDate: models.DateOnly(now),
		TotalRecords: total,
		SyncTime:     now,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_sync_date", "total_records", "sync_time"}),
		}).
		Create(&record).Error
}

// Get 查询同步记录，不存在返回 gorm.ErrRecordNotFound
func (s *SyncStore) Get(ctx context.Context, code string) (*models.SyncRecord, error) {
	var record models.SyncRecord
	if err := s.db.WithContext(ctx).Where("code = ?", code).Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
