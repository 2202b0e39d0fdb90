package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 证券类型
const (
	TypeStock = "stock"
	TypeIndex = "index"
)

// StockInfo 证券基础信息（股票或指数）
type StockInfo struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	Code       string    `gorm:"type:varchar(20);uniqueIndex:uk_code;not null" json:"code"` // 规范代码，如 sh600000
	Name       string    `gorm:"type:varchar(100);index:idx_name;not null" json:"name"`     // 名称
	PinyinFull string    `gorm:"type:varchar(200);index:idx_pinyin_full" json:"-"`          // 拼音全拼
	PinyinAbbr string    `gorm:"type:varchar(50);index:idx_pinyin_abbr" json:"-"`           // 拼音首字母
	Market     string    `gorm:"type:varchar(20)" json:"market"`                            // 市场（上交所、深交所）
	Type       string    `gorm:"type:varchar(20);default:stock;index:idx_type" json:"type"` // stock / index
	IsActive   bool      `gorm:"default:true" json:"-"`                                     // 软删除标记
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// TableName 指定表名
func (StockInfo) TableName() string {
	return "stock_info"
}

// StockDaily 日线数据，(code, date) 唯一，写入后不再修改
type StockDaily struct {
	ID        uint            `gorm:"primaryKey"`
	Code      string          `gorm:"type:varchar(20);uniqueIndex:uk_code_date,priority:1;index:idx_code;not null"`
	Date      time.Time       `gorm:"type:date;uniqueIndex:uk_code_date,priority:2;index:idx_date;not null"`
	Open      decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	High      decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	Low       decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	Close     decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	Volume    int64           `gorm:"not null"`
	CreatedAt time.Time
}

// TableName 指定表名
func (StockDaily) TableName() string {
	return "stock_daily"
}

// SyncRecord 同步记录
type SyncRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Code         string    `gorm:"type:varchar(20);uniqueIndex:uk_sync_code;not null"`
	LastSyncDate time.Time `gorm:"type:date"`
	TotalRecords int
	SyncTime     time.Time
}

// TableName 指定表名
func (SyncRecord) TableName() string {
	return "sync_records"
}

// Bar 规范化后的单日行情，上游适配器与存储之间的统一结构
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// DataRange 某代码在库中的数据覆盖范围
type DataRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
	Total    int64  `json:"total"`
}

// DateLayout 对外日期格式
const DateLayout = "2006-01-02"

// DateOnly 截断为 UTC 零点，保证各数据库驱动下日期比较一致
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToBar 转换为规范结构
func (d StockDaily) ToBar() Bar {
	return Bar{
		Date:   DateOnly(d.Date),
		Open:   d.Open,
		High:   d.High,
		Low:    d.Low,
		Close:  d.Close,
		Volume: d.Volume,
	}
}
