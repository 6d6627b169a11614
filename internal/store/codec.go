package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PortfolioSentinel/internal/model"
)

// DateLayout is the date format used in every CSV file.
const DateLayout = "2006-01-02"

var (
	HoldingsHeader  = []string{"Nom", "ISIN", "Ticker", "PRU", "Qté", "Date_Achat", "Seuil_Haut", "Seuil_Bas", "Prix_Manuel"}
	WatchlistHeader = []string{"Nom", "ISIN", "Ticker", "Seuil_Alerte"}
	DividendsHeader = []string{"Ticker", "Date", "Montant"}
)

// aliases lets older exports with unaccented or English headers load.
var aliases = map[string]string{
	"qte":      "qté",
	"quantite": "qté",
	"quantity": "qté",
	"name":     "nom",
	"amount":   "montant",
}

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// row gives by-name access to one CSV record.
type row struct {
	line   int
	fields []string
	index  map[string]int
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := aliases[key]; ok {
			key = alias
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	return index
}

func (r row) str(col string) string {
	i, ok := r.index[strings.ToLower(col)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// num parses a number, accepting decimal commas. Empty and "nan" cells
// read as 0.
func (r row) num(col string) (float64, error) {
	s := r.str(col)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	f, _ := d.Float64()
	return f, nil
}

func (r row) date(col string) (time.Time, error) {
	s := r.str(col)
	if s == "" || strings.EqualFold(s, "nan") {
		return time.Time{}, nil
	}
	// pandas writes timestamps as "2024-01-15 00:00:00"
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	return t, nil
}

// readRows reads all records, checking that the required columns exist.
func readRows(r io.Reader, required ...string) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := headerIndex(header)
	for _, col := range required {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var rows []row
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(fields) {
			continue
		}
		rows = append(rows, row{line: line, fields: fields, index: index})
	}
	return rows, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// DecodeHoldings parses the holdings file. Missing optional columns take
// their zero value.
func DecodeHoldings(r io.Reader) ([]model.Holding, error) {
	rows, err := readRows(r, "Ticker")
	if err != nil {
		return nil, err
	}
	holdings := make([]model.Holding, 0, len(rows))
	for _, rw := range rows {
		h := model.Holding{
			Name:   rw.str("Nom"),
			ISIN:   rw.str("ISIN"),
			Ticker: rw.str("Ticker"),
		}
		var errs []error
		var e error
		h.CostBasis, e = rw.num("PRU")
		errs = append(errs, e)
		h.Quantity, e = rw.num("Qté")
		errs = append(errs, e)
		h.PurchaseDate, e = rw.date("Date_Achat")
		errs = append(errs, e)
		h.AlertHigh, e = rw.num("Seuil_Haut")
		errs = append(errs, e)
		h.AlertLow, e = rw.num("Seuil_Bas")
		errs = append(errs, e)
		h.ManualPrice, e = rw.num("Prix_Manuel")
		errs = append(errs, e)
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", rw.line, err)
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// EncodeHoldings writes holdings with the canonical header.
func EncodeHoldings(w io.Writer, holdings []model.Holding) error {
	records := make([][]string, 0, len(holdings))
	for _, h := range holdings {
		records = append(records, []string{
			h.Name, h.ISIN, h.Ticker,
			formatNum(h.CostBasis), formatNum(h.Quantity), formatDate(h.PurchaseDate),
			formatNum(h.AlertHigh), formatNum(h.AlertLow), formatNum(h.ManualPrice),
		})
	}
	return writeAll(w, HoldingsHeader, records)
}

// DecodeWatchlist parses the watchlist file.
func DecodeWatchlist(r io.Reader) ([]model.WatchlistEntry, error) {
	rows, err := readRows(r, "Ticker")
	if err != nil {
		return nil, err
	}
	entries := make([]model.WatchlistEntry, 0, len(rows))
	for _, rw := range rows {
		price, err := rw.num("Seuil_Alerte")
		if err != nil {
			return nil, err
		}
		e := model.WatchlistEntry{
			Name:       rw.str("Nom"),
			ISIN:       rw.str("ISIN"),
			Ticker:     rw.str("Ticker"),
			AlertPrice: price,
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", rw.line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// EncodeWatchlist writes the watchlist with the canonical header.
func EncodeWatchlist(w io.Writer, entries []model.WatchlistEntry) error {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{e.Name, e.ISIN, e.Ticker, formatNum(e.AlertPrice)})
	}
	return writeAll(w, WatchlistHeader, records)
}

// DecodeDividends parses the dividends file.
func DecodeDividends(r io.Reader) ([]model.DividendRecord, error) {
	rows, err := readRows(r, "Ticker", "Montant")
	if err != nil {
		return nil, err
	}
	records := make([]model.DividendRecord, 0, len(rows))
	for _, rw := range rows {
		amount, err := rw.num("Montant")
		if err != nil {
			return nil, err
		}
		date, err := rw.date("Date")
		if err != nil {
			return nil, err
		}
		d := model.DividendRecord{Ticker: rw.str("Ticker"), Date: date, Amount: amount}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", rw.line, err)
		}
		records = append(records, d)
	}
	return records, nil
}

// EncodeDividends writes dividends with the canonical header.
func EncodeDividends(w io.Writer, dividends []model.DividendRecord) error {
	records := make([][]string, 0, len(dividends))
	for _, d := range dividends {
		records = append(records, []string{d.Ticker, formatDate(d.Date), formatNum(d.Amount)})
	}
	return writeAll(w, DividendsHeader, records)
}

func writeAll(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// formatNum writes the shortest exact representation, "" for zero so
// unset thresholds stay empty cells.
func formatNum(f float64) string {
	if f == 0 {
		return ""
	}
	return decimal.NewFromFloat(f).String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
