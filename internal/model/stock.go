package model

import (
	"strings"
	"time"
)

// StockData is the unit every cache tier stores and returns for a symbol.
type StockData struct {
	Symbol      string       `json:"symbol"`
	Snapshot    Snapshot     `json:"info"`
	Series      *PriceSeries `json:"history"`
	LastUpdated time.Time    `json:"last_updated"`
}

// CanonicalSymbol uppercases a ticker and replaces dots with hyphens
// (BRK.B becomes BRK-B).
func CanonicalSymbol(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), ".", "-")
}
