package calculator

import (
	"errors"
	"math"

	"PortfolioSentinel/internal/model"
)

// CalculateRange scans all bars and returns the highest high and lowest low.
// Bars without high/low (close-only feeds) fall back to the close.
func CalculateRange(bars []model.Bar) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		h, l := b.High, b.Low
		if h == 0 {
			h = b.Close
		}
		if l == 0 {
			l = b.Close
		}
		if h > high {
			high = h
		}
		if l < low {
			low = l
		}
	}
	return high, low, nil
}

// CalculatePosition returns where the current price sits within the range (0.0~1.0).
func CalculatePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
