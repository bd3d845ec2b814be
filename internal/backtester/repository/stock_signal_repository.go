package repository

import (
	"context"

	"golang-stock-backtester/internal/entity"

	"gorm.io/gorm"
)

// StockSignalRepository persists live-path decisions.
type StockSignalRepository interface {
	Create(ctx context.Context, signal *entity.StockSignal) error
	GetLatest(ctx context.Context, ticker string, limit int) ([]entity.StockSignal, error)
}

type stockSignalRepository struct {
	db *gorm.DB
}

// NewStockSignalRepository creates the gorm-backed signal repository.
func NewStockSignalRepository(db *gorm.DB) StockSignalRepository {
	return &stockSignalRepository{db: db}
}

func (r *stockSignalRepository) Create(ctx context.Context, signal *entity.StockSignal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *stockSignalRepository) GetLatest(ctx context.Context, ticker string, limit int) ([]entity.StockSignal, error) {
	var signals []entity.StockSignal
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	if err := q.Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}
