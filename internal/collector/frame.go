package collector

import (
	"math"
	"strings"
	"time"
)

var nan = math.NaN()

// Frame is a provider's raw tabular response: a date index and columns
// whose labels may be hierarchical, e.g. ["AAPL", "Open"] for a
// multi-symbol batch or ["Open"] for a single symbol. Null cells are NaN.
type Frame struct {
	Index   []time.Time
	Columns [][]string
	Data    [][]float64
}

// NewFrame returns an empty frame over index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{Index: index}
}

// AddColumn appends a column. values must be aligned with Index.
func (f *Frame) AddColumn(label []string, values []float64) {
	f.Columns = append(f.Columns, label)
	f.Data = append(f.Data, values)
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Index)
}

// Column returns the values of the first column whose flattened label is name.
func (f *Frame) Column(name string) ([]float64, bool) {
	for i, label := range f.Columns {
		if flatten(label) == name {
			return f.Data[i], true
		}
	}
	return nil, false
}

// Select keeps the columns that carry symbol at any label level. It is
// how a multi-symbol batch is split per symbol.
func (f *Frame) Select(symbol string) *Frame {
	out := NewFrame(f.Index)
	for i, label := range f.Columns {
		for _, part := range label {
			if strings.EqualFold(part, symbol) {
				out.AddColumn(label, f.Data[i])
				break
			}
		}
	}
	return out
}

func flatten(label []string) string {
	parts := make([]string, 0, len(label))
	for _, p := range label {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}
