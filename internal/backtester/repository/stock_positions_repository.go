package repository

import (
	"context"

	"golang-stock-backtester/internal/entity"

	"gorm.io/gorm"
)

// StockPositionsRepository persists the live-path open positions.
type StockPositionsRepository interface {
	GetActive(ctx context.Context) ([]entity.StockPosition, error)
	Create(ctx context.Context, position *entity.StockPosition) error
	Update(ctx context.Context, position *entity.StockPosition) error
	Close(ctx context.Context, id uint) error
}

type stockPositionsRepository struct {
	db *gorm.DB
}

// NewStockPositionsRepository creates the gorm-backed positions repository.
func NewStockPositionsRepository(db *gorm.DB) StockPositionsRepository {
	return &stockPositionsRepository{db: db}
}

func (r *stockPositionsRepository) GetActive(ctx context.Context) ([]entity.StockPosition, error) {
	var positions []entity.StockPosition
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("ticker ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *stockPositionsRepository) Create(ctx context.Context, position *entity.StockPosition) error {
	return r.db.WithContext(ctx).Create(position).Error
}

func (r *stockPositionsRepository) Update(ctx context.Context, position *entity.StockPosition) error {
	return r.db.WithContext(ctx).Save(position).Error
}

func (r *stockPositionsRepository) Close(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&entity.StockPosition{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
