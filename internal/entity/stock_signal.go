package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// StockSignal is one persisted live-path decision, with the component
// breakdown stored as JSONB.
type StockSignal struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	Ticker         string         `gorm:"index;not null" json:"ticker"`
	Action         string         `gorm:"not null" json:"action"`
	Urgency        string         `json:"urgency"`
	Layer          string         `json:"layer"`
	Confidence     float64        `json:"confidence"`
	CompositeScore float64        `json:"composite_score"`
	Reasons        pq.StringArray `gorm:"type:text[]" json:"reasons"`
	Data           datatypes.JSON `gorm:"type:jsonb" json:"data"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (StockSignal) TableName() string {
	return "stock_signals"
}
