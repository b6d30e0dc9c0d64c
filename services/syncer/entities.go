package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stocksignals/config"
	"stocksignals/models"
	"stocksignals/services/marketdata"
	"stocksignals/store"
)

// Instantiated synchronizers for each entity the system tracks.
type (
	ProfileSyncer  = Syncer[models.Stock, *models.Stock]
	PriceSyncer    = Syncer[models.StockPrice, *models.StockPrice]
	RatingSyncer   = Syncer[models.AnalystRating, *models.AnalystRating]
	EarningsSyncer = Syncer[models.EarningsReport, *models.EarningsReport]
)

// NewProfileSyncer builds the single-record synchronizer for company profiles.
func NewProfileSyncer(st *store.Store, client *marketdata.Client, cfg *config.Config) (*ProfileSyncer, error) {
	return New[models.Stock](st, Descriptor[models.Stock]{
		Entity:          "profile",
		Mode:            SingleRecord,
		TTL:             cfg.ProfileTTL,
		ConflictColumns: []string{"symbol"},
		UpdateColumns:   []string{"name", "exchange", "sector", "currency", "market_cap", "status", "fetched_at", "updated_at"},
		Fetch: func(ctx context.Context, symbol string) ([]models.Stock, error) {
			raw, err := client.FetchProfile(ctx, symbol)
			if err != nil {
				return nil, err
			}
			out := make([]models.Stock, 0, len(raw))
			for _, r := range raw {
				stock, err := mapProfile(r)
				if err != nil {
					return nil, err
				}
				out = append(out, stock)
			}
			return out, nil
		},
	})
}

// NewPriceSyncer builds the history synchronizer for daily prices.
func NewPriceSyncer(st *store.Store, client *marketdata.Client, cfg *config.Config) (*PriceSyncer, error) {
	return New[models.StockPrice](st, Descriptor[models.StockPrice]{
		Entity:          "daily prices",
		Mode:            History,
		TTL:             cfg.PriceTTL,
		ConflictColumns: []string{"symbol", "date"},
		UpdateColumns:   []string{"open", "high", "low", "close", "adj_close", "volume", "fetched_at"},
		SortColumn:      "date",
		WindowSize:      cfg.PriceWindow,
		Fetch: func(ctx context.Context, symbol string) ([]models.StockPrice, error) {
			raw, err := client.FetchDailyPrices(ctx, symbol, cfg.PriceWindow)
			if err != nil {
				return nil, err
			}
			out := make([]models.StockPrice, 0, len(raw))
			for _, r := range raw {
				price, err := mapPrice(r)
				if err != nil {
					return nil, err
				}
				out = append(out, price)
			}
			return out, nil
		},
	})
}

// NewRatingSyncer builds the history synchronizer for analyst consensus readings.
func NewRatingSyncer(st *store.Store, client *marketdata.Client, cfg *config.Config) (*RatingSyncer, error) {
	return New[models.AnalystRating](st, Descriptor[models.AnalystRating]{
		Entity:          "analyst ratings",
		Mode:            History,
		TTL:             cfg.RatingTTL,
		ConflictColumns: []string{"symbol", "date"},
		UpdateColumns:   []string{"consensus", "score", "analyst_count", "fetched_at"},
		SortColumn:      "date",
		WindowSize:      10,
		Fetch: func(ctx context.Context, symbol string) ([]models.AnalystRating, error) {
			raw, err := client.FetchRatings(ctx, symbol, 10)
			if err != nil {
				return nil, err
			}
			out := make([]models.AnalystRating, 0, len(raw))
			for _, r := range raw {
				rating, err := mapRating(r)
				if err != nil {
					return nil, err
				}
				out = append(out, rating)
			}
			return out, nil
		},
	})
}

// NewEarningsSyncer builds the history synchronizer for earnings reports.
func NewEarningsSyncer(st *store.Store, client *marketdata.Client, cfg *config.Config) (*EarningsSyncer, error) {
	return New[models.EarningsReport](st, Descriptor[models.EarningsReport]{
		Entity:          "earnings",
		Mode:            History,
		TTL:             cfg.EarningsTTL,
		ConflictColumns: []string{"symbol", "period_end"},
		UpdateColumns:   []string{"reported_eps", "estimated_eps", "fetched_at"},
		SortColumn:      "period_end",
		WindowSize:      8,
		Fetch: func(ctx context.Context, symbol string) ([]models.EarningsReport, error) {
			raw, err := client.FetchEarnings(ctx, symbol, 8)
			if err != nil {
				return nil, err
			}
			out := make([]models.EarningsReport, 0, len(raw))
			for _, r := range raw {
				report, err := mapEarnings(r)
				if err != nil {
					return nil, err
				}
				out = append(out, report)
			}
			return out, nil
		},
	})
}

// ProfileRefresher adapts the profile syncer for callers that only need to
// ensure freshness without reading the record back.
type ProfileRefresher struct {
	Syncer *ProfileSyncer
}

// EnsureFreshProfile refreshes the profile for symbol if it is stale.
func (p *ProfileRefresher) EnsureFreshProfile(ctx context.Context, symbol string) error {
	_, err := p.Syncer.EnsureFresh(ctx, symbol)
	return err
}

// The map functions validate each upstream record before it can reach the
// store: required fields must be present and dates must parse. Missing volume
// is tolerated and stored as zero.

func mapProfile(r marketdata.ProfileData) (models.Stock, error) {
	if r.Symbol == "" {
		return models.Stock{}, fmt.Errorf("profile record missing symbol")
	}
	status := r.Status
	if status == "" {
		status = "active"
	}
	return models.Stock{
		Symbol:    r.Symbol,
		Name:      r.Name,
		Exchange:  r.Exchange,
		Sector:    r.Sector,
		Currency:  r.Currency,
		MarketCap: decimal.NewFromFloat(r.MarketCap),
		Status:    status,
	}, nil
}

func mapPrice(r marketdata.PriceData) (models.StockPrice, error) {
	if r.Symbol == "" {
		return models.StockPrice{}, fmt.Errorf("price record missing symbol")
	}
	date, err := parseDay(r.Date)
	if err != nil {
		return models.StockPrice{}, fmt.Errorf("price record for %s: %w", r.Symbol, err)
	}
	if r.Close <= 0 {
		return models.StockPrice{}, fmt.Errorf("price record for %s on %s: missing close", r.Symbol, r.Date)
	}
	adjClose := r.AdjClose
	if adjClose <= 0 {
		adjClose = r.Close
	}
	return models.StockPrice{
		Symbol:   r.Symbol,
		Date:     date,
		Open:     decimal.NewFromFloat(r.Open),
		High:     decimal.NewFromFloat(r.High),
		Low:      decimal.NewFromFloat(r.Low),
		Close:    decimal.NewFromFloat(r.Close),
		AdjClose: decimal.NewFromFloat(adjClose),
		Volume:   int64(r.Volume),
	}, nil
}

func mapRating(r marketdata.RatingData) (models.AnalystRating, error) {
	if r.Symbol == "" {
		return models.AnalystRating{}, fmt.Errorf("rating record missing symbol")
	}
	date, err := parseDay(r.Date)
	if err != nil {
		return models.AnalystRating{}, fmt.Errorf("rating record for %s: %w", r.Symbol, err)
	}
	return models.AnalystRating{
		Symbol:       r.Symbol,
		Date:         date,
		Consensus:    r.Consensus,
		Score:        decimal.NewFromFloat(r.Score),
		AnalystCount: r.AnalystCount,
	}, nil
}

func mapEarnings(r marketdata.EarningsData) (models.EarningsReport, error) {
	if r.Symbol == "" {
		return models.EarningsReport{}, fmt.Errorf("earnings record missing symbol")
	}
	periodEnd, err := parseDay(r.PeriodEnd)
	if err != nil {
		return models.EarningsReport{}, fmt.Errorf("earnings record for %s: %w", r.Symbol, err)
	}
	return models.EarningsReport{
		Symbol:       r.Symbol,
		PeriodEnd:    periodEnd,
		ReportedEPS:  decimal.NewFromFloat(r.ReportedEPS),
		EstimatedEPS: decimal.NewFromFloat(r.EstimatedEPS),
	}, nil
}

func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}
