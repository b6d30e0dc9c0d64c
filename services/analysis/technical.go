// Package analysis contains pure technical indicator calculators. All
// functions take closes ordered oldest first and return nil when the input is
// shorter than the indicator's warm-up; they never touch storage and never
// return errors.
package analysis

// SMASeries returns the simple moving average over a sliding window. The
// result has len(values)-period+1 entries; result[i] averages
// values[i..i+period-1].
func SMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMASeries returns the exponential moving average with multiplier
// 2/(period+1). The first output value is seeded with the SMA of the first
// period inputs, so the result has len(values)-period+1 entries.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	multiplier := 2.0 / float64(period+1)

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	prev := seed
	for _, v := range values[period:] {
		prev = (v-prev)*multiplier + prev
		out = append(out, prev)
	}
	return out
}

// RSISeries returns the relative strength index using Wilder's smoothing.
// Needs period+1 closes for the first value; result[i] corresponds to input
// index period+i. When the average loss is zero the RSI is 100.
func RSISeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period+1 {
		return nil
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the MACD line and its signal line. Line[i] corresponds to
// input index slowPeriod-1+i; SignalLine[i] corresponds to Line[signalPeriod-1+i].
type MACDResult struct {
	Line       []float64
	SignalLine []float64
}

// MACD computes the MACD line (fast EMA minus slow EMA, aligned on the slow
// warm-up) and its signal line. Returns nil unless the input covers the slow
// warm-up plus the signal warm-up.
func MACD(values []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if fastPeriod <= 0 || slowPeriod <= fastPeriod || signalPeriod <= 0 {
		return nil
	}
	if len(values) < slowPeriod+signalPeriod {
		return nil
	}

	emaFast := EMASeries(values, fastPeriod)
	emaSlow := EMASeries(values, slowPeriod)

	offset := slowPeriod - fastPeriod
	line := make([]float64, len(emaSlow))
	for i := range emaSlow {
		line[i] = emaFast[i+offset] - emaSlow[i]
	}

	signalLine := EMASeries(line, signalPeriod)
	if signalLine == nil {
		return nil
	}
	return &MACDResult{Line: line, SignalLine: signalLine}
}
