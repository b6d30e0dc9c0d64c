// Package signals derives idempotent signal records from synced market data.
// Derivation is deterministic over the stored series: running it twice over
// identical history inserts nothing the second time.
package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"stocksignals/models"
	"stocksignals/services/analysis"
	"stocksignals/services/syncer"
	"stocksignals/store"
)

// Config carries every threshold the rule families evaluate against.
type Config struct {
	SMAPeriods []int
	EMAPeriods []int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64

	TrendShortPeriod int
	TrendLongPeriod  int

	// EPSTolerance is the band around the estimate inside which a report
	// counts as meeting expectations.
	EPSTolerance float64
}

// DefaultConfig returns the conventional thresholds.
func DefaultConfig() Config {
	return Config{
		SMAPeriods:       []int{20, 50, 200},
		EMAPeriods:       []int{12, 26},
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		RSIPeriod:        14,
		RSIOverbought:    70,
		RSIOversold:      30,
		TrendShortPeriod: 50,
		TrendLongPeriod:  200,
		EPSTolerance:     0.01,
	}
}

// Engine evaluates the rule families for one symbol at a time. The rating and
// earnings syncers are optional; when nil their families are skipped.
type Engine struct {
	store    *store.Store
	prices   *syncer.PriceSyncer
	ratings  *syncer.RatingSyncer
	earnings *syncer.EarningsSyncer
	cfg      Config
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(st *store.Store, prices *syncer.PriceSyncer, ratings *syncer.RatingSyncer, earnings *syncer.EarningsSyncer, cfg Config) (*Engine, error) {
	if st == nil {
		return nil, errors.New("signals: store is required")
	}
	if prices == nil {
		return nil, errors.New("signals: price syncer is required")
	}
	for _, p := range cfg.SMAPeriods {
		if p <= 0 {
			return nil, fmt.Errorf("signals: invalid SMA period %d", p)
		}
	}
	for _, p := range cfg.EMAPeriods {
		if p <= 0 {
			return nil, fmt.Errorf("signals: invalid EMA period %d", p)
		}
	}
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= cfg.MACDFast || cfg.MACDSignal <= 0 {
		return nil, fmt.Errorf("signals: invalid MACD periods %d/%d/%d", cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	}
	if cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("signals: invalid RSI period %d", cfg.RSIPeriod)
	}
	if cfg.RSIOversold >= cfg.RSIOverbought {
		return nil, fmt.Errorf("signals: RSI bands inverted (%v >= %v)", cfg.RSIOversold, cfg.RSIOverbought)
	}
	if cfg.TrendShortPeriod <= 0 || cfg.TrendLongPeriod <= cfg.TrendShortPeriod {
		return nil, fmt.Errorf("signals: invalid trend periods %d/%d", cfg.TrendShortPeriod, cfg.TrendLongPeriod)
	}
	if cfg.EPSTolerance < 0 {
		return nil, fmt.Errorf("signals: EPS tolerance must not be negative")
	}
	return &Engine{store: st, prices: prices, ratings: ratings, earnings: earnings, cfg: cfg}, nil
}

// StepNames lists every rule family a derivation reports on, in evaluation
// order.
func (e *Engine) StepNames() []string {
	names := make([]string, 0, len(e.cfg.SMAPeriods)+len(e.cfg.EMAPeriods)+5)
	for _, period := range e.cfg.SMAPeriods {
		names = append(names, fmt.Sprintf("sma%d", period))
	}
	for _, period := range e.cfg.EMAPeriods {
		names = append(names, fmt.Sprintf("ema%d", period))
	}
	return append(names, "macd", "rsi", "trend", "ratings", "earnings")
}

// Result summarizes one derivation run for a symbol.
type Result struct {
	// Signals counts rows actually inserted; re-derivation yields 0.
	Signals int
	// Steps maps each rule family to its outcome for reporting.
	Steps map[string]string
}

// DeriveForSymbol syncs the inputs, evaluates every rule family and persists
// the resulting signals. A price sync failure aborts the whole symbol; rating
// and earnings failures only skip their own families.
func (e *Engine) DeriveForSymbol(ctx context.Context, symbol string) (*Result, error) {
	priceRows, err := e.prices.EnsureFresh(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signals for %s: %w", symbol, err)
	}
	if len(priceRows) == 0 {
		return nil, fmt.Errorf("failed to derive signals for %s: no price history", symbol)
	}

	// The store returns newest first; indicator math wants oldest first.
	chronological := make([]models.StockPrice, len(priceRows))
	for i, row := range priceRows {
		chronological[len(priceRows)-1-i] = row
	}
	closes := make([]float64, len(chronological))
	for i := range chronological {
		closes[i] = chronological[i].CloseFloat()
	}
	latestDate := chronological[len(chronological)-1].Date

	result := &Result{Steps: make(map[string]string)}
	var observations []observation

	collect := func(step string, obs []observation, sufficient bool) {
		if !sufficient {
			log.Printf("Skipping %s for %s: insufficient history (%d closes)", step, symbol, len(closes))
			result.Steps[step] = "skipped: insufficient data"
			return
		}
		result.Steps[step] = fmt.Sprintf("evaluated (%d signal(s))", len(obs))
		observations = append(observations, obs...)
	}

	for _, period := range e.cfg.SMAPeriods {
		sma := analysis.SMASeries(closes, period)
		collect(fmt.Sprintf("sma%d", period), movingAverageObservations(closes, sma, "sma", period), sma != nil)
	}
	for _, period := range e.cfg.EMAPeriods {
		ema := analysis.EMASeries(closes, period)
		collect(fmt.Sprintf("ema%d", period), movingAverageObservations(closes, ema, "ema", period), ema != nil)
	}

	macd := analysis.MACD(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	collect("macd", macdObservations(macd), macd != nil)

	rsi := analysis.RSISeries(closes, e.cfg.RSIPeriod)
	collect("rsi", rsiObservations(rsi, e.cfg.RSIOverbought, e.cfg.RSIOversold), rsi != nil)

	shortSMA := analysis.SMASeries(closes, e.cfg.TrendShortPeriod)
	longSMA := analysis.SMASeries(closes, e.cfg.TrendLongPeriod)
	if shortSMA != nil && longSMA != nil {
		obs := trendObservation(closes[len(closes)-1],
			shortSMA[len(shortSMA)-1], longSMA[len(longSMA)-1],
			e.cfg.TrendShortPeriod, e.cfg.TrendLongPeriod)
		collect("trend", []observation{obs}, true)
	} else {
		collect("trend", nil, false)
	}

	e.collectRatings(ctx, symbol, result, &observations)
	e.collectEarnings(ctx, symbol, result, &observations)

	inserted, err := e.persist(ctx, symbol, latestDate, observations)
	if err != nil {
		return nil, fmt.Errorf("failed to persist signals for %s: %w", symbol, err)
	}
	result.Signals = inserted
	return result, nil
}

func (e *Engine) collectRatings(ctx context.Context, symbol string, result *Result, observations *[]observation) {
	if e.ratings == nil {
		result.Steps["ratings"] = "skipped: not configured"
		return
	}
	rows, err := e.ratings.EnsureFresh(ctx, symbol)
	if err != nil {
		log.Printf("Warning: rating sync failed for %s, skipping rating signals: %v", symbol, err)
		result.Steps["ratings"] = fmt.Sprintf("sync failed: %v", err)
		return
	}
	obs := ratingObservations(rows)
	result.Steps["ratings"] = fmt.Sprintf("evaluated (%d signal(s))", len(obs))
	*observations = append(*observations, obs...)
}

func (e *Engine) collectEarnings(ctx context.Context, symbol string, result *Result, observations *[]observation) {
	if e.earnings == nil {
		result.Steps["earnings"] = "skipped: not configured"
		return
	}
	rows, err := e.earnings.EnsureFresh(ctx, symbol)
	if err != nil {
		log.Printf("Warning: earnings sync failed for %s, skipping earnings signals: %v", symbol, err)
		result.Steps["earnings"] = fmt.Sprintf("sync failed: %v", err)
		return
	}
	obs := earningsObservations(rows, e.cfg.EPSTolerance)
	result.Steps["earnings"] = fmt.Sprintf("evaluated (%d signal(s))", len(obs))
	*observations = append(*observations, obs...)
}

// persist upserts each observation with the natural key as conflict target,
// counting only rows actually inserted.
func (e *Engine) persist(ctx context.Context, symbol string, latestDate time.Time, observations []observation) (int, error) {
	inserted := 0
	for _, obs := range observations {
		date := obs.date
		if date.IsZero() {
			date = latestDate
		}

		details, err := json.Marshal(obs.details)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode details for %s: %w", obs.code, err)
		}

		signal := models.Signal{
			Symbol:     symbol,
			SignalDate: date,
			Code:       obs.code,
			Category:   obs.category,
			Type:       obs.sigType,
			Details:    string(details),
			Confidence: obs.confidence,
		}

		rows, err := e.store.UpsertIgnoreConflict(ctx, &signal, models.SignalConflictColumns)
		if err != nil {
			return inserted, fmt.Errorf("failed to store signal %s: %w", obs.code, err)
		}
		inserted += int(rows)
	}
	return inserted, nil
}
