package collector

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"
)

var (
	ErrSchemaMismatch = errors.New("open/close columns not found")
	ErrNoData         = errors.New("no usable rows")
)

// Canonical column names produced by NormalizeFrame.
const (
	ColOpen     = "Open"
	ColHigh     = "High"
	ColLow      = "Low"
	ColClose    = "Close"
	ColVolume   = "Volume"
	ColAdjClose = "Adj Close"
)

var canonicalColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColAdjClose}

// matcher resolves a flattened provider column to a canonical target.
type matcher struct {
	name  string
	match func(column, target, symbol string) bool
}

// matchers are tried in order; the first strategy that hits wins.
var matchers = []matcher{
	{"exact", func(column, target, _ string) bool {
		return exactVariant(column, target)
	}},
	{"prefixed", func(column, target, symbol string) bool {
		bare := stripSymbol(column, symbol)
		return bare != column && exactVariant(bare, target)
	}},
	{"fuzzy", fuzzyMatch},
}

func variants(target string) []string {
	base := []string{target, strings.ToUpper(target), strings.ToLower(target)}
	out := make([]string, 0, len(base)*3)
	for _, b := range base {
		out = append(out, b, strings.ReplaceAll(b, " ", "_"), strings.ReplaceAll(b, " ", ""))
	}
	return out
}

func exactVariant(column, target string) bool {
	for _, v := range variants(target) {
		if column == v {
			return true
		}
	}
	return false
}

// stripSymbol removes a leading "SYM_" or trailing "_SYM".
func stripSymbol(column, symbol string) string {
	if symbol == "" {
		return column
	}
	upper := strings.ToUpper(column)
	sym := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(upper, sym+"_"):
		return column[len(sym)+1:]
	case strings.HasSuffix(upper, "_"+sym):
		return column[:len(column)-len(sym)-1]
	}
	return column
}

func fuzzyMatch(column, target, _ string) bool {
	lc := strings.ToLower(column)
	switch target {
	case ColAdjClose:
		return strings.Contains(lc, "adj")
	case ColClose:
		return strings.Contains(lc, "close") && !strings.Contains(lc, "adj")
	default:
		return strings.Contains(lc, strings.ToLower(target))
	}
}

// NormalizeFrame maps a raw frame for one symbol onto the canonical
// Open/High/Low/Close/Volume schema, with Adj Close kept when present.
// A missing High or Low is rebuilt from Open and Close and a missing
// Volume becomes zero; a missing Open or Close is ErrSchemaMismatch.
func NormalizeFrame(f *Frame, symbol string, log *logger.Entry) (*Frame, error) {
	flat := make([]string, len(f.Columns))
	for i, label := range f.Columns {
		flat[i] = flatten(label)
	}

	used := make(map[int]bool, len(flat))
	resolved := make(map[string][]float64, len(canonicalColumns))
	for _, target := range canonicalColumns {
		for _, m := range matchers {
			idx := -1
			for i, col := range flat {
				if !used[i] && m.match(col, target, symbol) {
					idx = i
					break
				}
			}
			if idx < 0 {
				continue
			}
			used[idx] = true
			resolved[target] = f.Data[idx]
			if m.name == "fuzzy" && log != nil {
				log.WithFields(logger.Fields{
					"symbol": symbol, "column": flat[idx], "target": target,
				}).Warn("heuristic column match")
			}
			break
		}
	}

	open, okOpen := resolved[ColOpen]
	closes, okClose := resolved[ColClose]
	if !okOpen || !okClose {
		return nil, fmt.Errorf("%s %v: %w", symbol, flat, ErrSchemaMismatch)
	}

	n := f.Len()
	if _, ok := resolved[ColHigh]; !ok {
		resolved[ColHigh] = combine(open, closes, math.Max)
		warnMissing(log, symbol, ColHigh)
	}
	if _, ok := resolved[ColLow]; !ok {
		resolved[ColLow] = combine(open, closes, math.Min)
		warnMissing(log, symbol, ColLow)
	}
	if _, ok := resolved[ColVolume]; !ok {
		resolved[ColVolume] = make([]float64, n)
		warnMissing(log, symbol, ColVolume)
	}

	out := NewFrame(f.Index)
	for _, target := range canonicalColumns {
		if values, ok := resolved[target]; ok {
			out.AddColumn([]string{target}, values)
		}
	}
	return out, nil
}

func combine(a, b []float64, fn func(x, y float64) float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = fn(a[i], b[i])
	}
	return out
}

func warnMissing(log *logger.Entry, symbol, column string) {
	if log == nil {
		return
	}
	log.WithFields(logger.Fields{"symbol": symbol, "column": column}).Warn("column missing, filled in")
}

// FrameToSeries converts a normalized frame into a PriceSeries. Rows with
// a null open, high, low or close are dropped; duplicate dates keep the
// last row. An empty result is ErrNoData.
func FrameToSeries(f *Frame, symbol string) (*model.PriceSeries, error) {
	open, _ := f.Column(ColOpen)
	high, _ := f.Column(ColHigh)
	low, _ := f.Column(ColLow)
	closes, _ := f.Column(ColClose)
	volume, _ := f.Column(ColVolume)
	adj, hasAdj := f.Column(ColAdjClose)
	if open == nil || high == nil || low == nil || closes == nil {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSchemaMismatch)
	}

	byDate := make(map[int64]model.Bar, f.Len())
	for i, ts := range f.Index {
		if anyNaN(open[i], high[i], low[i], closes[i]) {
			continue
		}
		bar := model.Bar{
			Date:  ts,
			Open:  open[i],
			High:  high[i],
			Low:   low[i],
			Close: closes[i],
		}
		if volume != nil && !math.IsNaN(volume[i]) {
			bar.Volume = volume[i]
		}
		if hasAdj && !math.IsNaN(adj[i]) {
			v := adj[i]
			bar.AdjClose = &v
		}
		byDate[ts.Unix()] = bar
	}
	if len(byDate) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	series := &model.PriceSeries{Symbol: symbol, Bars: make([]model.Bar, 0, len(byDate))}
	for _, b := range byDate {
		series.Bars = append(series.Bars, b)
	}
	sort.Slice(series.Bars, func(i, j int) bool { return series.Bars[i].Date.Before(series.Bars[j].Date) })
	return series, nil
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
