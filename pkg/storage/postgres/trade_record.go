package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one journaled trade. The open row is inserted when the
// trade executes and updated in place when it settles.
type TradeRecord struct {
	ID uint `gorm:"primaryKey"`

	TradeID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_trade_record_trade_id"`

	Bot       string `gorm:"type:varchar(32);not null;index:idx_trade_record_bot"`
	Symbol    string `gorm:"type:text;not null;index:idx_trade_record_symbol"`
	Contract  string `gorm:"type:varchar(16);not null"`
	Barrier   int    `gorm:"not null;default:0"`
	Direction string `gorm:"type:varchar(8);not null"`
	Mode      string `gorm:"type:varchar(8);not null"`
	Status    string `gorm:"type:varchar(8);not null"`
	Result    string `gorm:"type:varchar(8)"`

	Stake      decimal.Decimal `gorm:"type:numeric;not null"`
	Profit     decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Confidence float64         `gorm:"not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric;not null"`
	EntryDigit int             `gorm:"not null"`

	OpenedAt time.Time `gorm:"not null;index:idx_trade_record_opened_at"`
	ClosedAt *time.Time

	RecordedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (TradeRecord) TableName() string {
	return "trade_record"
}
