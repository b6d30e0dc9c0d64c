package models

import (
	"time"

	"gorm.io/gorm"
)

// SignalCategory groups signals by the kind of data that produced them.
type SignalCategory string

const (
	CategoryTechnical   SignalCategory = "technical"
	CategoryFundamental SignalCategory = "fundamental"
	CategorySentiment   SignalCategory = "sentiment"
)

// SignalType distinguishes standing conditions from detected transitions.
type SignalType string

const (
	// TypeState describes a condition true as of the observation date.
	TypeState SignalType = "state"
	// TypeEvent describes a transition detected between two consecutive observations.
	TypeEvent SignalType = "event"
)

// Signal is one derived, deduplicated observation about a symbol's series.
// Rows are unique on (symbol, signal_date, signal_code) and never mutated;
// re-derivation over identical history is a no-op insert.
type Signal struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Symbol     string         `gorm:"uniqueIndex:idx_signal_natural;type:varchar(20);not null" json:"symbol"`
	SignalDate time.Time      `gorm:"uniqueIndex:idx_signal_natural;column:signal_date;not null" json:"signal_date"`
	Code       string         `gorm:"uniqueIndex:idx_signal_natural;column:signal_code;type:varchar(50);not null" json:"signal_code"`
	Category   SignalCategory `gorm:"column:signal_category;type:varchar(20);not null" json:"signal_category"`
	Type       SignalType     `gorm:"column:signal_type;type:varchar(10);not null" json:"signal_type"`
	// Details captures the values that justified the signal as a JSON object.
	Details    string    `gorm:"type:jsonb" json:"details"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignalConflictColumns is the natural uniqueness key used as the upsert
// conflict target for signals.
var SignalConflictColumns = []string{"symbol", "signal_date", "signal_code"}

// MigrateSignalModels runs database migrations for signal models
func MigrateSignalModels(db *gorm.DB) error {
	return db.AutoMigrate(&Signal{})
}
