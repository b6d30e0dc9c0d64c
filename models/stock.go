package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock represents one tracked instrument's company profile.
// There is at most one row per symbol.
type Stock struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"uniqueIndex;type:varchar(20);not null" json:"symbol"`
	Name      string          `json:"name"`
	Exchange  string          `json:"exchange"`
	Sector    string          `json:"sector"`
	Currency  string          `json:"currency"`
	MarketCap decimal.Decimal `gorm:"type:decimal(20,2)" json:"market_cap"`
	Status    string          `json:"status"` // active, delisted, suspended
	// FetchedAt is the modification timestamp used for freshness decisions,
	// distinct from any business date on the record.
	FetchedAt time.Time `gorm:"index" json:"fetched_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetFetchedAt stamps the freshness timestamp before an upsert.
func (s *Stock) SetFetchedAt(t time.Time) { s.FetchedAt = t }

// StockPrice is one calendar-dated price observation for a symbol.
// At most one row per (symbol, date); corrected revisions supersede via upsert.
type StockPrice struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Symbol   string          `gorm:"uniqueIndex:idx_price_symbol_date;type:varchar(20);not null" json:"symbol"`
	Date     time.Time       `gorm:"uniqueIndex:idx_price_symbol_date;not null" json:"date"`
	Open     decimal.Decimal `gorm:"type:decimal(15,4)" json:"open"`
	High     decimal.Decimal `gorm:"type:decimal(15,4)" json:"high"`
	Low      decimal.Decimal `gorm:"type:decimal(15,4)" json:"low"`
	Close    decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	AdjClose decimal.Decimal `gorm:"type:decimal(15,4)" json:"adj_close"`
	Volume   int64           `json:"volume"`

	FetchedAt time.Time `gorm:"index" json:"fetched_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *StockPrice) SetFetchedAt(t time.Time) { p.FetchedAt = t }

// CloseFloat returns the close as a float64 for indicator math.
func (p *StockPrice) CloseFloat() float64 { return p.Close.InexactFloat64() }

// AnalystRating is one dated analyst consensus reading for a symbol.
type AnalystRating struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Symbol string    `gorm:"uniqueIndex:idx_rating_symbol_date;type:varchar(20);not null" json:"symbol"`
	Date   time.Time `gorm:"uniqueIndex:idx_rating_symbol_date;not null" json:"date"`
	// Consensus is the categorical reading: strong_buy, buy, hold, sell, strong_sell
	Consensus    string          `gorm:"type:varchar(20)" json:"consensus"`
	Score        decimal.Decimal `gorm:"type:decimal(5,2)" json:"score"` // 1 (strong sell) .. 5 (strong buy)
	AnalystCount int             `json:"analyst_count"`

	FetchedAt time.Time `gorm:"index" json:"fetched_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *AnalystRating) SetFetchedAt(t time.Time) { r.FetchedAt = t }

// EarningsReport is one reported fiscal period for a symbol.
type EarningsReport struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Symbol       string          `gorm:"uniqueIndex:idx_earnings_symbol_period;type:varchar(20);not null" json:"symbol"`
	PeriodEnd    time.Time       `gorm:"uniqueIndex:idx_earnings_symbol_period;not null" json:"period_end"`
	ReportedEPS  decimal.Decimal `gorm:"type:decimal(12,4)" json:"reported_eps"`
	EstimatedEPS decimal.Decimal `gorm:"type:decimal(12,4)" json:"estimated_eps"`

	FetchedAt time.Time `gorm:"index" json:"fetched_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *EarningsReport) SetFetchedAt(t time.Time) { e.FetchedAt = t }

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Stock{},
		&StockPrice{},
		&AnalystRating{},
		&EarningsReport{},
	)
}
