package postgres

import (
	"testing"
	"time"

	"digitdash/internal/journal"

	"github.com/shopspring/decimal"
)

// go test -v --run TestToTradeRecord
func TestToTradeRecord(t *testing.T) {
	opened := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := journal.Entry{
		TradeID:    "abc",
		Bot:        "even_odd",
		Symbol:     "R_100",
		Contract:   "DIGITEVEN",
		Direction:  "buy",
		Mode:       "paper",
		Status:     "open",
		Stake:      decimal.NewFromInt(1),
		EntryPrice: decimal.RequireFromString("1234.56"),
		EntryDigit: 6,
		OpenedAt:   opened,
	}

	record := ToTradeRecord(e)
	if record.TradeID != "abc" || record.EntryDigit != 6 || !record.OpenedAt.Equal(opened) {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.ClosedAt != nil {
		t.Error("open trade has a close time")
	}

	e.ClosedAt = opened.Add(2 * time.Second)
	if record = ToTradeRecord(e); record.ClosedAt == nil || !record.ClosedAt.Equal(e.ClosedAt) {
		t.Errorf("close time not copied: %v", record.ClosedAt)
	}

	if (TradeRecord{}).TableName() != "trade_record" {
		t.Error("unexpected table name")
	}
}
