package repository

import (
	"context"
	"fmt"
	"time"

	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/entity"

	"gorm.io/gorm"
)

// marketDataRepository builds snapshots from the Postgres data lake. The
// full history up to asOf is loaded in one pass so replay loops never touch
// the database per day.
type marketDataRepository struct {
	db *gorm.DB
}

// NewMarketDataRepository creates the Postgres-backed snapshot provider.
func NewMarketDataRepository(db *gorm.DB) SnapshotProvider {
	return &marketDataRepository{db: db}
}

func (r *marketDataRepository) Get(ctx context.Context, ticker string, asOf time.Time) (*domain.Snapshot, error) {
	var stock entity.Stock
	if err := r.db.WithContext(ctx).Where("ticker = ?", ticker).First(&stock).Error; err != nil {
		return nil, fmt.Errorf("failed to load stock %s: %w", ticker, err)
	}

	var prices []entity.DailyPrice
	if err := r.db.WithContext(ctx).
		Where("ticker = ? AND date <= ?", ticker, asOf).
		Order("date ASC").
		Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", ticker, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no price data for %s up to %s", ticker, asOf.Format("2006-01-02"))
	}

	var flows []entity.InvestorFlow
	if err := r.db.WithContext(ctx).
		Where("ticker = ? AND date <= ?", ticker, asOf).
		Order("date ASC").
		Find(&flows).Error; err != nil {
		return nil, fmt.Errorf("failed to load investor flows for %s: %w", ticker, err)
	}

	var fundamentals []entity.FundamentalReport
	if err := r.db.WithContext(ctx).
		Where("ticker = ? AND disclosed_at <= ?", ticker, asOf).
		Order("disclosed_at ASC").
		Find(&fundamentals).Error; err != nil {
		return nil, fmt.Errorf("failed to load fundamentals for %s: %w", ticker, err)
	}

	snap := &domain.Snapshot{
		Ticker: ticker,
		AsOf:   asOf,
		Meta: domain.StockMeta{
			Sector:           stock.Sector,
			NextEarningsDate: stock.NextEarningsDate,
			LotSize:          stock.LotSize,
		},
	}
	snap.Prices = make([]domain.PriceBar, len(prices))
	for i, p := range prices {
		snap.Prices[i] = domain.PriceBar{
			Date: p.Date, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume,
		}
	}
	snap.Flows = make([]domain.FlowRecord, len(flows))
	for i, f := range flows {
		snap.Flows[i] = domain.FlowRecord{
			Date:               f.Date,
			ForeignNet:         f.ForeignNet,
			TrustBankNet:       f.TrustBankNet,
			RetailNet:          f.RetailNet,
			MajorHolderSelling: f.MajorHolderSelling,
		}
	}
	snap.Fundamentals = make([]domain.FundamentalRecord, len(fundamentals))
	for i, f := range fundamentals {
		snap.Fundamentals[i] = domain.FundamentalRecord{
			DisclosedAt:    f.DisclosedAt,
			Guidance:       f.Guidance,
			PriorGuidance:  f.PriorGuidance,
			Actual:         f.Actual,
			AccountingFlag: f.AccountingFlag,
		}
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
