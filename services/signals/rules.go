package signals

import (
	"fmt"
	"time"

	"stocksignals/models"
	"stocksignals/services/analysis"
)

// observation is one derived finding before persistence. Date is zero when
// the observation belongs to the latest price date.
type observation struct {
	code       string
	category   models.SignalCategory
	sigType    models.SignalType
	date       time.Time
	details    map[string]interface{}
	confidence *float64
}

// crossDirection compares a series against a reference at the last two points.
type crossDirection int

const (
	crossNone crossDirection = iota
	crossAbove
	crossBelow
)

// detectCross reports whether a crossed b between the previous and current
// observation. A touch (equality) on the previous point still counts as a
// cross when the current point is strictly on the other side.
func detectCross(prevA, prevB, curA, curB float64) crossDirection {
	if prevA <= prevB && curA > curB {
		return crossAbove
	}
	if prevA >= prevB && curA < curB {
		return crossBelow
	}
	return crossNone
}

// movingAverageObservations derives price-vs-average states and crossover
// events for one average series. kind is "sma" or "ema".
func movingAverageObservations(closes []float64, avg []float64, kind string, period int) []observation {
	if len(avg) == 0 {
		return nil
	}
	var out []observation

	price := closes[len(closes)-1]
	ma := avg[len(avg)-1]
	state := fmt.Sprintf("price_below_%s%d", kind, period)
	if price > ma {
		state = fmt.Sprintf("price_above_%s%d", kind, period)
	}
	out = append(out, observation{
		code:     state,
		category: models.CategoryTechnical,
		sigType:  models.TypeState,
		details:  map[string]interface{}{"close": price, kind: ma, "period": period},
	})

	if len(avg) >= 2 && len(closes) >= 2 {
		prevPrice := closes[len(closes)-2]
		prevMA := avg[len(avg)-2]
		switch detectCross(prevPrice, prevMA, price, ma) {
		case crossAbove:
			out = append(out, observation{
				code:     fmt.Sprintf("price_cross_above_%s%d", kind, period),
				category: models.CategoryTechnical,
				sigType:  models.TypeEvent,
				details:  map[string]interface{}{"close": price, kind: ma, "period": period},
			})
		case crossBelow:
			out = append(out, observation{
				code:     fmt.Sprintf("price_cross_below_%s%d", kind, period),
				category: models.CategoryTechnical,
				sigType:  models.TypeEvent,
				details:  map[string]interface{}{"close": price, kind: ma, "period": period},
			})
		}
	}
	return out
}

// macdObservations derives MACD-vs-signal and MACD-vs-zero states and
// crossover events from the computed result.
func macdObservations(result *analysis.MACDResult) []observation {
	if result == nil || len(result.SignalLine) == 0 {
		return nil
	}
	// Align the tails: the signal line lags the MACD line by its warm-up.
	line := result.Line[len(result.Line)-len(result.SignalLine):]
	signal := result.SignalLine

	var out []observation
	cur := len(line) - 1
	details := map[string]interface{}{
		"macd":      line[cur],
		"signal":    signal[cur],
		"histogram": line[cur] - signal[cur],
	}

	state := "macd_below_signal"
	if line[cur] > signal[cur] {
		state = "macd_above_signal"
	}
	out = append(out, observation{
		code:     state,
		category: models.CategoryTechnical,
		sigType:  models.TypeState,
		details:  details,
	})

	zeroState := "macd_below_zero"
	if line[cur] > 0 {
		zeroState = "macd_above_zero"
	}
	out = append(out, observation{
		code:     zeroState,
		category: models.CategoryTechnical,
		sigType:  models.TypeState,
		details:  details,
	})

	if len(line) >= 2 {
		prev := cur - 1
		switch detectCross(line[prev], signal[prev], line[cur], signal[cur]) {
		case crossAbove:
			out = append(out, observation{
				code: "macd_cross_above_signal", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: details,
			})
		case crossBelow:
			out = append(out, observation{
				code: "macd_cross_below_signal", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: details,
			})
		}
		switch detectCross(line[prev], 0, line[cur], 0) {
		case crossAbove:
			out = append(out, observation{
				code: "macd_cross_above_zero", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: details,
			})
		case crossBelow:
			out = append(out, observation{
				code: "macd_cross_below_zero", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: details,
			})
		}
	}
	return out
}

// rsiObservations derives the band state for the latest reading plus
// entry/exit events when the reading moved across a band boundary.
func rsiObservations(rsi []float64, overbought, oversold float64) []observation {
	if len(rsi) == 0 {
		return nil
	}
	cur := rsi[len(rsi)-1]
	details := map[string]interface{}{"rsi": cur}

	var out []observation
	switch {
	case cur >= overbought:
		out = append(out, observation{
			code: "rsi_overbought", category: models.CategoryTechnical,
			sigType: models.TypeState, details: details,
		})
	case cur <= oversold:
		out = append(out, observation{
			code: "rsi_oversold", category: models.CategoryTechnical,
			sigType: models.TypeState, details: details,
		})
	default:
		out = append(out, observation{
			code: "rsi_neutral", category: models.CategoryTechnical,
			sigType: models.TypeState, details: details,
		})
	}

	if len(rsi) >= 2 {
		prev := rsi[len(rsi)-2]
		eventDetails := map[string]interface{}{"rsi": cur, "previous_rsi": prev}
		switch {
		case prev < overbought && cur >= overbought:
			out = append(out, observation{
				code: "rsi_enter_overbought", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: eventDetails,
			})
		case prev >= overbought && cur < overbought:
			out = append(out, observation{
				code: "rsi_exit_overbought", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: eventDetails,
			})
		case prev > oversold && cur <= oversold:
			out = append(out, observation{
				code: "rsi_enter_oversold", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: eventDetails,
			})
		case prev <= oversold && cur > oversold:
			out = append(out, observation{
				code: "rsi_exit_oversold", category: models.CategoryTechnical,
				sigType: models.TypeEvent, details: eventDetails,
			})
		}
	}
	return out
}

// trendRank classifies the relative ordering of price, the short average and
// the long average into a strength rank from 1 (weakest) to 4 (strongest).
func trendRank(price, shortMA, longMA float64) int {
	switch {
	case price > shortMA && shortMA > longMA:
		return 4
	case price > shortMA && shortMA <= longMA:
		return 3
	case price <= shortMA && shortMA > longMA:
		return 2
	default:
		return 1
	}
}

// trendObservation derives the trend strength state from the latest price and
// the short/long simple moving averages.
func trendObservation(price, shortMA, longMA float64, shortPeriod, longPeriod int) observation {
	rank := trendRank(price, shortMA, longMA)
	confidence := float64(rank) / 4.0
	return observation{
		code:       fmt.Sprintf("trend_rank_%d", rank),
		category:   models.CategoryTechnical,
		sigType:    models.TypeState,
		confidence: &confidence,
		details: map[string]interface{}{
			"close":                              price,
			fmt.Sprintf("sma%d", shortPeriod):    shortMA,
			fmt.Sprintf("sma%d", longPeriod):     longMA,
			"rank":                               rank,
		},
	}
}

// ratingObservations derives an upgrade/downgrade event when the consensus
// score moved between the two most recent readings (newest first), otherwise
// a standing consensus state. Observations are dated to the newest reading.
func ratingObservations(ratings []models.AnalystRating) []observation {
	if len(ratings) == 0 {
		return nil
	}
	latest := ratings[0]
	latestScore := latest.Score.InexactFloat64()
	details := map[string]interface{}{
		"consensus":     latest.Consensus,
		"score":         latestScore,
		"analyst_count": latest.AnalystCount,
	}

	if len(ratings) >= 2 {
		previous := ratings[1]
		previousScore := previous.Score.InexactFloat64()
		if latestScore != previousScore {
			code := "rating_downgrade"
			if latestScore > previousScore {
				code = "rating_upgrade"
			}
			details["previous_consensus"] = previous.Consensus
			details["previous_score"] = previousScore
			return []observation{{
				code:     code,
				category: models.CategorySentiment,
				sigType:  models.TypeEvent,
				date:     latest.Date,
				details:  details,
			}}
		}
	}

	if latest.Consensus == "" {
		return nil
	}
	return []observation{{
		code:     fmt.Sprintf("rating_consensus_%s", latest.Consensus),
		category: models.CategorySentiment,
		sigType:  models.TypeState,
		date:     latest.Date,
		details:  details,
	}}
}

// earningsOutcome classifies reported-vs-estimated EPS inside a tolerance band.
func earningsOutcome(reported, estimated, tolerance float64) string {
	diff := reported - estimated
	switch {
	case diff > tolerance:
		return "earnings_beat"
	case diff < -tolerance:
		return "earnings_miss"
	default:
		return "earnings_meet"
	}
}

// earningsObservations derives the outcome of the most recent report, dated
// to its fiscal period end. The observation is an event when the outcome
// differs from the prior report's outcome (or there is no prior report), and
// a state when the streak continues.
func earningsObservations(reports []models.EarningsReport, tolerance float64) []observation {
	if len(reports) == 0 {
		return nil
	}
	latest := reports[0]
	reported := latest.ReportedEPS.InexactFloat64()
	estimated := latest.EstimatedEPS.InexactFloat64()
	outcome := earningsOutcome(reported, estimated, tolerance)

	sigType := models.TypeEvent
	if len(reports) >= 2 {
		prior := reports[1]
		priorOutcome := earningsOutcome(prior.ReportedEPS.InexactFloat64(), prior.EstimatedEPS.InexactFloat64(), tolerance)
		if priorOutcome == outcome {
			sigType = models.TypeState
		}
	}

	return []observation{{
		code:     outcome,
		category: models.CategoryFundamental,
		sigType:  sigType,
		date:     latest.PeriodEnd,
		details: map[string]interface{}{
			"reported_eps":  reported,
			"estimated_eps": estimated,
			"surprise":      reported - estimated,
		},
	}}
}
