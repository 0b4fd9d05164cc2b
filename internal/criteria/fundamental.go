package criteria

import "StockScreener/internal/model"

// aliases maps criteria field names to snapshot fields, in display order.
var aliases = []struct {
	name  string
	field string
}{
	{"market_cap", "marketCap"},
	{"pe_ratio", "trailingPE"},
	{"forward_pe", "forwardPE"},
	{"price_to_book", "priceToBook"},
	{"price_to_sales", "priceToSales"},
	{"dividend_yield", "dividendYield"},
	{"payout_ratio", "payoutRatio"},
	{"return_on_equity", "returnOnEquity"},
	{"return_on_assets", "returnOnAssets"},
	{"profit_margin", "profitMargins"},
	{"operating_margin", "operatingMargins"},
	{"revenue_growth", "revenueGrowth"},
	{"earnings_growth", "earningsGrowth"},
	{"beta", "beta"},
	{"current_ratio", "currentRatio"},
	{"debt_to_equity", "debtToEquity"},
	{"enterprise_to_revenue", "enterpriseToRevenue"},
	{"enterprise_to_ebitda", "enterpriseToEbitda"},
	{"price", "currentPrice"},
}

// exactFields are matched by string equality against the snapshot field of
// the same name.
var exactFields = []string{"sector", "industry", "country"}

// FundamentalFields lists the criteria field names with a fixed mapping.
func FundamentalFields() []string {
	out := make([]string, 0, len(aliases)+len(exactFields))
	for _, a := range aliases {
		out = append(out, a.name)
	}
	return append(out, exactFields...)
}

// SnapshotField translates a criteria field name to its snapshot key.
// Unmapped names pass through unchanged.
func SnapshotField(name string) string {
	for _, a := range aliases {
		if a.name == name {
			return a.field
		}
	}
	return name
}

func isExact(name string) bool {
	for _, f := range exactFields {
		if f == name {
			return true
		}
	}
	return false
}

// MatchFundamental reports whether snap satisfies every criterion in set.
// A missing or null field fails its criterion.
func MatchFundamental(snap model.Snapshot, set Set) bool {
	for _, field := range set.Fields() {
		if !matchOne(snap, set[field]) {
			return false
		}
	}
	return true
}

func matchOne(snap model.Snapshot, c Criterion) bool {
	if isExact(c.Field) {
		if c.Kind != KindString {
			return false
		}
		return matchString(snap, c.Field, c)
	}
	key := SnapshotField(c.Field)
	if c.Kind == KindString {
		return matchString(snap, key, c)
	}
	v, ok := snap.Number(key)
	return ok && c.Op.Compare(v, c.Number)
}

func matchString(snap model.Snapshot, key string, c Criterion) bool {
	v, ok := snap.String(key)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEQ:
		return v == c.Text
	case OpNE:
		return v != c.Text
	}
	return false
}
