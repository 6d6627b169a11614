package calculator

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"PortfolioSentinel/internal/model"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// DailyReturns returns the simple close-to-close returns of the bars.
func DailyReturns(bars []model.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		returns = append(returns, (bars[i].Close-prev)/prev)
	}
	return returns
}

// CalculateVolatility returns the annualized standard deviation of daily returns, in percent.
func CalculateVolatility(bars []model.Bar) (float64, error) {
	returns := DailyReturns(bars)
	if len(returns) < 2 {
		return 0, errors.New("not enough data for volatility calculation")
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear) * 100, nil
}
