package postgres

import (
	"context"
	"fmt"
	"time"

	"digitdash/internal/journal"

	"gorm.io/gorm/clause"
)

// InsertTrade stores an open trade. A duplicate trade id is reported as an error.
func (p *PostgresClient) InsertTrade(ctx context.Context, record *TradeRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("duplicate trade skipped: trade_id=%s", record.TradeID)
	}

	return nil
}

// UpsertClosedTrade writes the settled state of a trade, inserting it when the
// open row never made it to the database.
func (p *PostgresClient) UpsertClosedTrade(ctx context.Context, record *TradeRecord) error {
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "result", "profit", "closed_at", "updated_at"}),
	}).Create(record).Error
}

func (p *PostgresClient) GetTrade(ctx context.Context, tradeID string) (*TradeRecord, error) {
	var record TradeRecord
	err := p.DB.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		First(&record).Error

	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecentTrades returns up to limit trades, newest first. An empty bot matches all bots.
func (p *PostgresClient) ListRecentTrades(ctx context.Context, bot string, limit int) ([]TradeRecord, error) {
	q := p.DB.WithContext(ctx).Order("opened_at DESC").Limit(limit)
	if bot != "" {
		q = q.Where("bot = ?", bot)
	}

	var records []TradeRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (p *PostgresClient) DeleteOldTrades(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("opened_at < ?", before).
		Delete(&TradeRecord{})
	return tx.RowsAffected, tx.Error
}

// SaveTrade implements journal.Store. Duplicates are ignored.
func (p *PostgresClient) SaveTrade(ctx context.Context, e journal.Entry) error {
	err := p.InsertTrade(ctx, ToTradeRecord(e))
	if err != nil && p.exists(ctx, e.TradeID) {
		return nil
	}
	return err
}

// CloseTrade implements journal.Store.
func (p *PostgresClient) CloseTrade(ctx context.Context, e journal.Entry) error {
	return p.UpsertClosedTrade(ctx, ToTradeRecord(e))
}

func (p *PostgresClient) exists(ctx context.Context, tradeID string) bool {
	var n int64
	p.DB.WithContext(ctx).Model(&TradeRecord{}).Where("trade_id = ?", tradeID).Count(&n)
	return n > 0
}

// ToTradeRecord converts a journal entry into a TradeRecord for DB insertion.
func ToTradeRecord(e journal.Entry) *TradeRecord {
	record := &TradeRecord{
		TradeID:    e.TradeID,
		Bot:        e.Bot,
		Symbol:     e.Symbol,
		Contract:   e.Contract,
		Barrier:    e.Barrier,
		Direction:  e.Direction,
		Mode:       e.Mode,
		Status:     e.Status,
		Result:     e.Result,
		Stake:      e.Stake,
		Profit:     e.Profit,
		Confidence: e.Confidence,
		EntryPrice: e.EntryPrice,
		EntryDigit: e.EntryDigit,
		OpenedAt:   e.OpenedAt,
	}
	if !e.ClosedAt.IsZero() {
		closed := e.ClosedAt
		record.ClosedAt = &closed
	}
	return record
}
