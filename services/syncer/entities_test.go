package syncer

import (
	"testing"
	"time"

	"stocksignals/services/marketdata"
)

func TestMapPrice(t *testing.T) {
	valid := marketdata.PriceData{
		Symbol: "AAPL",
		Date:   "2026-08-20",
		Open:   229.1,
		High:   231.9,
		Low:    228.4,
		Close:  230.5,
		Volume: 51234567,
	}

	price, err := mapPrice(valid)
	if err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	want := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	if !price.Date.Equal(want) {
		t.Errorf("date = %v, want %v", price.Date, want)
	}
	if price.Volume != 51234567 {
		t.Errorf("volume = %d, want 51234567", price.Volume)
	}
	// AdjClose falls back to close when the provider omits it.
	if !price.AdjClose.Equal(price.Close) {
		t.Errorf("adj close = %s, want close %s", price.AdjClose, price.Close)
	}
}

func TestMapPriceRejectsBadRecords(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*marketdata.PriceData)
	}{
		{"missing symbol", func(r *marketdata.PriceData) { r.Symbol = "" }},
		{"missing date", func(r *marketdata.PriceData) { r.Date = "" }},
		{"malformed date", func(r *marketdata.PriceData) { r.Date = "08/20/2026" }},
		{"missing close", func(r *marketdata.PriceData) { r.Close = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := marketdata.PriceData{Symbol: "AAPL", Date: "2026-08-20", Close: 230.5}
			tc.mutate(&record)
			if _, err := mapPrice(record); err == nil {
				t.Error("expected a validation error, got nil")
			}
		})
	}
}

func TestMapPriceAllowsMissingVolume(t *testing.T) {
	record := marketdata.PriceData{Symbol: "AAPL", Date: "2026-08-20", Close: 230.5}
	price, err := mapPrice(record)
	if err != nil {
		t.Fatalf("record without volume rejected: %v", err)
	}
	if price.Volume != 0 {
		t.Errorf("volume = %d, want 0", price.Volume)
	}
}

func TestMapProfileDefaultsStatus(t *testing.T) {
	stock, err := mapProfile(marketdata.ProfileData{Symbol: "AAPL", Name: "Apple Inc."})
	if err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}
	if stock.Status != "active" {
		t.Errorf("status = %q, want active", stock.Status)
	}

	if _, err := mapProfile(marketdata.ProfileData{Name: "No Symbol"}); err == nil {
		t.Error("expected an error for a profile without a symbol")
	}
}

func TestMapEarningsParsesPeriodEnd(t *testing.T) {
	report, err := mapEarnings(marketdata.EarningsData{
		Symbol:       "AAPL",
		PeriodEnd:    "2026-06-30",
		ReportedEPS:  1.52,
		EstimatedEPS: 1.48,
	})
	if err != nil {
		t.Fatalf("valid report rejected: %v", err)
	}
	want := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	if !report.PeriodEnd.Equal(want) {
		t.Errorf("period end = %v, want %v", report.PeriodEnd, want)
	}

	if _, err := mapEarnings(marketdata.EarningsData{Symbol: "AAPL"}); err == nil {
		t.Error("expected an error for a report without a period end")
	}
}
