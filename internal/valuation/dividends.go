package valuation

import "PortfolioSentinel/internal/model"

// DividendYields sums dividends per ticker and relates them to the cost of
// the position ("real yield"). Rows follow holding order; tickers that only
// appear in the dividend list come last, in first-payment order.
func DividendYields(holdings []model.Holding, dividends []model.DividendRecord) []model.DividendYield {
	totals := make(map[string]float64)
	counts := make(map[string]int)
	var order []string
	for _, d := range dividends {
		if _, seen := counts[d.Ticker]; !seen {
			order = append(order, d.Ticker)
		}
		totals[d.Ticker] += d.Amount
		counts[d.Ticker]++
	}

	rows := make([]model.DividendYield, 0, len(order))
	done := make(map[string]bool)
	for _, h := range holdings {
		if done[h.Ticker] || counts[h.Ticker] == 0 {
			continue
		}
		done[h.Ticker] = true

		// Several lines may share a ticker.
		var cost float64
		for _, o := range holdings {
			if o.Ticker == h.Ticker {
				cost += o.CostBasis * o.Quantity
			}
		}
		row := model.DividendYield{
			Ticker:    h.Ticker,
			Name:      h.Label(),
			Total:     totals[h.Ticker],
			CostValue: cost,
			Payments:  counts[h.Ticker],
		}
		if cost > 0 {
			row.YieldPct = row.Total / cost * 100
		}
		rows = append(rows, row)
	}

	for _, t := range order {
		if done[t] {
			continue
		}
		rows = append(rows, model.DividendYield{Ticker: t, Total: totals[t], Payments: counts[t]})
	}
	return rows
}
