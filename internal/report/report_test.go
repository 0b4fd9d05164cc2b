package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"StockScreener/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []model.ScreeningResult {
	return []model.ScreeningResult{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", MarketCap: 2.95e12, Price: 191.456, PERatio: 29.87,
			Indicators: model.IndicatorValues{"rsi": 28.123456}},
		{Symbol: "XOM", Name: "Exxon Mobil Corporation International", MarketCap: 4.1e11, Price: 110.2},
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.235, 2))
	assert.Equal(t, -0.5, Round(-0.49999, 1))
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
	assert.Equal(t, model.IndicatorValues{"rsi": 28.12}, RoundValues(model.IndicatorValues{"rsi": 28.123456}))
}

func TestConsole(t *testing.T) {
	out := Console(sampleResults(), "market_cap>1000000000")
	assert.Contains(t, out, "Found 2 stocks matching market_cap>1000000000")
	assert.Contains(t, out, "$2,950,000,000,000")
	assert.Contains(t, out, "$191.46")
	assert.Contains(t, out, "29.9")
	assert.Contains(t, out, "Exxon Mobil Corporation I")
	assert.NotContains(t, out, "International")

	lines := strings.Split(out, "\n")
	xom := lines[len(lines)-2]
	assert.True(t, strings.HasPrefix(xom, "XOM"))
	assert.Contains(t, xom, "N/A")
}

func TestGroup(t *testing.T) {
	assert.Equal(t, "1", group("1"))
	assert.Equal(t, "999", group("999"))
	assert.Equal(t, "1,000", group("1000"))
	assert.Equal(t, "-12,345,678", group("-12345678"))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleResults()))
	var back []model.ScreeningResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, sampleResults(), back)

	buf.Reset()
	require.NoError(t, JSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleResults()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "symbol,name,sector,market_cap,price,pe_ratio,rsi", lines[0])
	assert.Equal(t, "AAPL,Apple Inc.,Technology,2950000000000,191.46,29.87,28.1235", lines[1])
	assert.Equal(t, "XOM,Exxon Mobil Corporation International,,410000000000,110.20,0.00,", lines[2])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Write(FormatJSON, path, sampleResults(), ""))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"symbol": "AAPL"`)

	assert.Error(t, Write("xml", path, nil, ""))
}
