package calculator

import (
	"errors"

	"PortfolioSentinel/internal/model"
)

// CalculateRSI computes the Wilder-smoothed RSI of the bar closes.
// With fewer than period+1 bars it reports a neutral 50.
func CalculateRSI(bars []model.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	closes := extractCloses(bars)
	if len(closes) <= period {
		return 50.0, nil
	}

	split := func(i int) (gain, loss float64) {
		d := closes[i] - closes[i-1]
		if d > 0 {
			return d, 0
		}
		return 0, -d
	}

	n := float64(period)
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := split(i)
		avgGain += g / n
		avgLoss += l / n
	}
	for i := period + 1; i < len(closes); i++ {
		g, l := split(i)
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	return 100.0 - 100.0/(1.0+avgGain/avgLoss), nil
}
