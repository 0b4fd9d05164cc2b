package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"StockScreener/internal/model"

	"github.com/shopspring/decimal"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatCSV     = "csv"
)

// Round rounds v half away from zero to places decimals. NaN and Inf are
// returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundValues rounds every indicator value to two decimals.
func RoundValues(values model.IndicatorValues) model.IndicatorValues {
	out := make(model.IndicatorValues, len(values))
	for k, v := range values {
		out[k] = Round(v, 2)
	}
	return out
}

// Write renders results in format to path, or to stdout when path is empty.
func Write(format, path string, results []model.ScreeningResult, criteria string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case FormatConsole, "":
		_, err := io.WriteString(w, Console(results, criteria))
		return err
	case FormatJSON:
		return JSON(w, results)
	case FormatCSV:
		return CSV(w, results)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// Console formats results as a fixed-width table.
func Console(results []model.ScreeningResult, criteria string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("\nFound %d stocks matching %s\n", len(results), criteria))
	b.WriteString(strings.Repeat("=", 100) + "\n")
	b.WriteString(fmt.Sprintf("%-8s %-25s %-15s %15s %10s %8s\n", "Symbol", "Name", "Sector", "Market Cap", "Price", "P/E"))
	b.WriteString(strings.Repeat("-", 100) + "\n")

	for _, r := range results {
		b.WriteString(fmt.Sprintf("%-8s %-25s %-15s %15s %10s %8s\n",
			r.Symbol,
			truncate(orNA(r.Name), 25),
			truncate(orNA(r.Sector), 15),
			money(r.MarketCap, 0),
			money(r.Price, 2),
			ratio(r.PERatio),
		))
	}
	return b.String()
}

// JSON writes results as an indented array.
func JSON(w io.Writer, results []model.ScreeningResult) error {
	if results == nil {
		results = []model.ScreeningResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// CSV writes one row per result. Indicator columns are the union of every
// result's indicators, sorted by name.
func CSV(w io.Writer, results []model.ScreeningResult) error {
	indicatorSet := map[string]bool{}
	for _, r := range results {
		for name := range r.Indicators {
			indicatorSet[name] = true
		}
	}
	indicators := make([]string, 0, len(indicatorSet))
	for name := range indicatorSet {
		indicators = append(indicators, name)
	}
	sort.Strings(indicators)

	cw := csv.NewWriter(w)
	header := append([]string{"symbol", "name", "sector", "market_cap", "price", "pe_ratio"}, indicators...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Symbol, r.Name, r.Sector,
			decimal.NewFromFloat(r.MarketCap).StringFixed(0),
			fixed(r.Price, 2),
			fixed(r.PERatio, 2),
		}
		for _, name := range indicators {
			if v, ok := r.Indicators[name]; ok {
				row = append(row, fixed(v, 4))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func money(v float64, places int32) string {
	if v == 0 || math.IsNaN(v) {
		return "N/A"
	}
	s := decimal.NewFromFloat(v).StringFixed(places)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	return "$" + group(intPart) + frac
}

func ratio(v float64) string {
	if v == 0 || math.IsNaN(v) {
		return "N/A"
	}
	return fixed(v, 1)
}

// group inserts thousands separators into a decimal integer string.
func group(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
