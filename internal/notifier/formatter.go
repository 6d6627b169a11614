package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/news"
	"PortfolioSentinel/internal/recorder"
)

// AlertTitle is the title of the batched alert push.
const AlertTitle = "Alerte Bourse Directe"

// euro formats amounts the French way: "1 234,56 €".
var euro = money.NewFormatter(2, ",", " ", "€", "1 $")

// Euro formats an amount in euros, rounded to the cent.
func Euro(v float64) string {
	return euro.Format(decimal.NewFromFloat(v).Shift(2).Round(0).IntPart())
}

// SignedEuro is Euro with an explicit "+" on gains.
func SignedEuro(v float64) string {
	if v > 0 {
		return "+" + Euro(v)
	}
	return Euro(v)
}

// Pct formats a signed percentage: "+27,00 %".
func Pct(v float64) string {
	return strings.Replace(fmt.Sprintf("%+.2f %%", v), ".", ",", 1)
}

func quantity(q float64) string {
	return strings.Replace(decimal.NewFromFloat(q).String(), ".", ",", 1)
}

// FormatAlert renders one alert line.
func FormatAlert(a model.AlertEvent) string {
	label := a.Name
	if label == "" {
		label = a.Ticker
	}
	switch a.Kind {
	case model.AlertLow:
		return fmt.Sprintf("⚠️ %s (%s) est à %s | Seuil Bas: %s", label, a.Ticker, Euro(a.Price), Euro(a.Threshold))
	case model.AlertHigh:
		return fmt.Sprintf("🚀 %s (%s) est à %s | Objectif: %s", label, a.Ticker, Euro(a.Price), Euro(a.Threshold))
	default:
		return fmt.Sprintf("👀 %s (%s) est à %s | Zone d'achat: %s", label, a.Ticker, Euro(a.Price), Euro(a.Threshold))
	}
}

// FormatAlerts renders one line per alert. No alerts, no message.
func FormatAlerts(alerts []model.AlertEvent) string {
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, FormatAlert(a))
	}
	return strings.Join(lines, "\n")
}

// FormatSummary is the short plain-text portfolio summary used in pushes.
func FormatSummary(snap model.PortfolioSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Valeur: %s\n", Euro(snap.CurrentValue))
	fmt.Fprintf(&b, "Investi: %s\n", Euro(snap.CostValue))
	fmt.Fprintf(&b, "Plus-value: %s (%s)\n", SignedEuro(snap.UnrealizedPL), Pct(snap.UnrealizedPLPct))
	fmt.Fprintf(&b, "Jour: %s (%s)", SignedEuro(snap.DayChange), Pct(snap.DayChangePct))
	if len(snap.Unpriced) > 0 {
		fmt.Fprintf(&b, "\nSans cours: %s", strings.Join(snap.Unpriced, ", "))
	}
	return b.String()
}

// FormatReport renders the portfolio as a markdown document.
func FormatReport(snap model.PortfolioSnapshot, yields []model.DividendYield) string {
	var b strings.Builder
	at := snap.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(&b, "# Portefeuille du %s\n\n", at.Format("02/01/2006 15:04"))

	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Valeur actuelle | %s |\n", Euro(snap.CurrentValue))
	fmt.Fprintf(&b, "| Investi | %s |\n", Euro(snap.CostValue))
	fmt.Fprintf(&b, "| Plus-value latente | %s (%s) |\n", SignedEuro(snap.UnrealizedPL), Pct(snap.UnrealizedPLPct))
	fmt.Fprintf(&b, "| Variation du jour | %s (%s) |\n\n", SignedEuro(snap.DayChange), Pct(snap.DayChangePct))

	if len(snap.Holdings) > 0 {
		b.WriteString("## Positions\n\n")
		b.WriteString("| Nom | Ticker | Qté | PRU | Cours | Valeur | +/- latente | Seuil bas |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|\n")
		for _, m := range snap.Holdings {
			price, value, pl := "n/d", "n/d", "n/d"
			if m.PriceOK {
				price = Euro(m.Price)
				value = Euro(m.MarketValue)
				pl = fmt.Sprintf("%s (%s)", SignedEuro(m.UnrealizedPL), Pct(m.UnrealizedPLPct))
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
				m.Holding.Label(), m.Holding.Ticker, quantity(m.Holding.Quantity),
				Euro(m.Holding.CostBasis), price, value, pl, Euro(m.EffectiveAlertLow))
		}
		b.WriteString("\n")
	}

	if len(snap.Unpriced) > 0 {
		fmt.Fprintf(&b, "> Cours indisponible: %s\n\n", strings.Join(snap.Unpriced, ", "))
	}

	if len(yields) > 0 {
		b.WriteString("## Dividendes\n\n")
		b.WriteString("| Ticker | Versements | Total | Rendement réel |\n|---|---:|---:|---:|\n")
		for _, y := range yields {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", y.Ticker, y.Payments, Euro(y.Total), Pct(y.YieldPct))
		}
	}
	return b.String()
}

// FormatWatchlist lists watchlist entries with their current price.
func FormatWatchlist(entries []model.WatchlistEntry, quotes model.Quotes) string {
	if len(entries) == 0 {
		return "Watchlist vide"
	}
	var b strings.Builder
	b.WriteString("👀 Watchlist\n")
	for _, w := range entries {
		price := "n/d"
		if q := quotes.For(w.QuoteKey()); q.OK {
			price = Euro(q.Price)
		}
		fmt.Fprintf(&b, "\n%s (%s): %s", w.Name, w.Ticker, price)
		if w.AlertPrice > 0 {
			fmt.Fprintf(&b, " | Seuil: %s", Euro(w.AlertPrice))
		}
	}
	return b.String()
}

// FormatNews renders the headline digest.
func FormatNews(digest []news.HoldingNews) string {
	if len(digest) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("📰 Actualités")
	for _, h := range digest {
		fmt.Fprintf(&b, "\n\n%s (%s)", h.Name, h.Ticker)
		for _, it := range h.Items {
			fmt.Fprintf(&b, "\n• %s", it.Title)
		}
	}
	return b.String()
}

// FormatAlertHistory renders recorded alerts, newest first.
func FormatAlertHistory(records []recorder.AlertRecord) string {
	if len(records) == 0 {
		return "Aucune alerte récente"
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		line := FormatAlert(model.AlertEvent{Kind: r.Kind, Name: r.Name, Ticker: r.Ticker, Price: r.Price, Threshold: r.Threshold})
		lines = append(lines, r.At.Format("02/01 15:04")+" "+line)
	}
	return strings.Join(lines, "\n")
}
