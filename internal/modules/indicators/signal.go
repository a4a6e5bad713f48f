package indicators

import (
	"fmt"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/pkg/formulas"
)

// Directions reported by Summarize
const (
	Bullish = "Bullish"
	Bearish = "Bearish"
	Neutral = "Neutral"
	Unknown = "Unknown"
)

// Factor is one vote in a technical signal
type Factor struct {
	Name      string  `json:"name"`
	Direction string  `json:"direction"`
	Weight    float64 `json:"weight"`
	Detail    string  `json:"detail"`
}

// Signal is the combined technical view of one asset
type Signal struct {
	Asset      string               `json:"asset"`
	Direction  string               `json:"direction"`
	Confidence float64              `json:"confidence"` // percent
	Factors    []Factor             `json:"factors"`
	Analysis   string               `json:"analysis"`
	Version    domain.SeriesVersion `json:"version"`
}

// Summarize votes RSI(14), price vs SMA20/SMA50 and MACD(12,26,9) into a
// direction. Confidence is the summed weight of the winning factors over the
// number of factors; a tie is Neutral at 50%.
func (e *Engine) Summarize(series *domain.PriceSeries) Signal {
	sig := Signal{Direction: Unknown}
	if series == nil {
		sig.Analysis = "Insufficient data for prediction"
		return sig
	}
	sig.Asset = series.Asset()
	sig.Version = series.Version()

	closes := series.Closes()
	rsi := formulas.CalculateRSI(closes, 14)
	sma20 := formulas.CalculateSMA(closes, 20)
	sma50 := formulas.CalculateSMA(closes, 50)
	macd, err := e.MACD(series, 12, 26, 9)
	if rsi == nil || sma20 == nil || sma50 == nil || err != nil {
		sig.Analysis = "Insufficient data for prediction"
		return sig
	}
	main, _ := macd.LastOf(LineMain)
	signal, _ := macd.LastOf(LineSignal)
	price := closes[len(closes)-1]

	switch {
	case *rsi > 70:
		sig.Factors = append(sig.Factors, Factor{"rsi", Bearish, 0.7, fmt.Sprintf("RSI %.1f overbought", *rsi)})
	case *rsi < 30:
		sig.Factors = append(sig.Factors, Factor{"rsi", Bullish, 0.7, fmt.Sprintf("RSI %.1f oversold", *rsi)})
	default:
		sig.Factors = append(sig.Factors, Factor{"rsi", Neutral, 0.3, fmt.Sprintf("RSI %.1f", *rsi)})
	}

	switch {
	case price > *sma50 && price > *sma20:
		sig.Factors = append(sig.Factors, Factor{"moving_average", Bullish, 0.8, "price above SMA20 and SMA50"})
	case price > *sma50:
		sig.Factors = append(sig.Factors, Factor{"moving_average", Neutral, 0.4, "price above SMA50, below SMA20"})
	case price < *sma20:
		sig.Factors = append(sig.Factors, Factor{"moving_average", Bearish, 0.8, "price below SMA20 and SMA50"})
	default:
		sig.Factors = append(sig.Factors, Factor{"moving_average", Neutral, 0.4, "price below SMA50, above SMA20"})
	}

	if main > signal {
		sig.Factors = append(sig.Factors, Factor{"macd", Bullish, 0.6, "MACD above signal line"})
	} else {
		sig.Factors = append(sig.Factors, Factor{"macd", Bearish, 0.6, "MACD at or below signal line"})
	}

	sig.Direction, sig.Confidence, sig.Analysis = tally(sig.Factors)
	return sig
}

// tally counts factor votes into a direction and confidence
func tally(factors []Factor) (direction string, confidence float64, analysis string) {
	if len(factors) == 0 {
		return Unknown, 0, "no factors"
	}

	votes := map[string]int{}
	weights := map[string]float64{}
	for _, f := range factors {
		votes[f.Direction]++
		weights[f.Direction] += f.Weight
	}

	switch {
	case votes[Bullish] > votes[Bearish]:
		direction = Bullish
		confidence = weights[Bullish] / float64(len(factors)) * 100
	case votes[Bearish] > votes[Bullish]:
		direction = Bearish
		confidence = weights[Bearish] / float64(len(factors)) * 100
	default:
		direction = Neutral
		confidence = 50
	}
	analysis = fmt.Sprintf("%d bullish, %d bearish, %d neutral factors",
		votes[Bullish], votes[Bearish], votes[Neutral])
	return direction, confidence, analysis
}
