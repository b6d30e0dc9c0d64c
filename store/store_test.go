package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"

	"stocksignals/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := OpenDialector(sqlite.Open(dsn), false)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := models.MigrateMarketModels(st.DB()); err != nil {
		t.Fatalf("failed to migrate market models: %v", err)
	}
	if err := models.MigrateSignalModels(st.DB()); err != nil {
		t.Fatalf("failed to migrate signal models: %v", err)
	}
	return st
}

func TestUpsertIgnoreConflict(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	signal := models.Signal{
		Symbol:     "AAPL",
		SignalDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Code:       "price_above_sma20",
		Category:   models.CategoryTechnical,
		Type:       models.TypeState,
		Details:    `{"close":230.5}`,
	}

	rows, err := st.UpsertIgnoreConflict(ctx, &signal, models.SignalConflictColumns)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("first upsert inserted %d rows, want 1", rows)
	}

	duplicate := signal
	duplicate.ID = 0
	rows, err = st.UpsertIgnoreConflict(ctx, &duplicate, models.SignalConflictColumns)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("second upsert inserted %d rows, want 0", rows)
	}

	var count int64
	st.DB().Model(&models.Signal{}).Count(&count)
	if count != 1 {
		t.Errorf("signal count = %d, want 1", count)
	}
}

func TestUpsertWithConflictUpdates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	prices := []models.StockPrice{{
		Symbol: "AAPL",
		Date:   date,
		Close:  decimal.NewFromFloat(230.5),
	}}

	conflict := []string{"symbol", "date"}
	update := []string{"close", "fetched_at"}
	if err := st.UpsertWithConflict(ctx, prices, conflict, update); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	revised := []models.StockPrice{{
		Symbol: "AAPL",
		Date:   date,
		Close:  decimal.NewFromFloat(231.0),
	}}
	if err := st.UpsertWithConflict(ctx, revised, conflict, update); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	var stored []models.StockPrice
	if err := st.DB().Where("symbol = ?", "AAPL").Find(&stored).Error; err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d rows, want 1", len(stored))
	}
	if !stored[0].Close.Equal(decimal.NewFromFloat(231.0)) {
		t.Errorf("close = %s, want 231", stored[0].Close)
	}
}
