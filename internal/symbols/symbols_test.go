package symbols

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"StockScreener/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuiltIn(t *testing.T) {
	r := NewRegistry(nil, nil, logger.NewNop())
	assert.Equal(t, []string{"dow30", "sp500"}, r.Indexes())

	syms, err := r.Symbols(context.Background(), "DOW30")
	require.NoError(t, err)
	assert.Len(t, syms, 30)
	assert.Contains(t, syms, "AAPL")
}

func TestRegistry_Unknown(t *testing.T) {
	r := NewRegistry(nil, nil, logger.NewNop())
	_, err := r.Symbols(context.Background(), "ftse100")
	assert.True(t, errors.Is(err, ErrUnknownIndex))
}

func TestRegistry_File(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "nasdaq100.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Company,Ticker\nApple,AAPL\nBerkshire,brk.b\nApple dup,AAPL\n"), 0o644))
	txtPath := filepath.Join(dir, "mine.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("msft\nnvda\n\n"), 0o644))

	r := NewRegistry(map[string]Source{
		"nasdaq100": {File: csvPath},
		"Mine":      {File: txtPath},
		"inline":    {Symbols: []string{"xom", "cvx"}},
	}, nil, logger.NewNop())

	ctx := context.Background()
	syms, err := r.Symbols(ctx, "nasdaq100")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B"}, syms)

	syms, err = r.Symbols(ctx, "mine")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "NVDA"}, syms)

	syms, err = r.Symbols(ctx, "inline")
	require.NoError(t, err)
	assert.Equal(t, []string{"XOM", "CVX"}, syms)
}

func TestRegistry_URLCached(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("Symbol,Security,GICS Sector\nMMM,3M,Industrials\nBF.B,Brown-Forman,Consumer Staples\n"))
	}))
	defer srv.Close()

	r := NewRegistry(map[string]Source{"sp500": {URL: srv.URL}}, srv.Client(), logger.NewNop())
	for i := 0; i < 2; i++ {
		syms, err := r.Symbols(context.Background(), "sp500")
		require.NoError(t, err)
		assert.Equal(t, []string{"MMM", "BF-B"}, syms)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRegistry_SlowURLDoesNotBlockOtherIndexes(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte("Symbol\nMMM\n"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte("aapl\n"), 0o644))
	r := NewRegistry(map[string]Source{
		"slow":  {URL: srv.URL},
		"local": {File: path},
	}, srv.Client(), logger.NewNop())

	slow := make(chan error, 1)
	go func() {
		_, err := r.Symbols(context.Background(), "slow")
		slow <- err
	}()
	<-started

	done := make(chan []string, 1)
	go func() {
		syms, _ := r.Symbols(context.Background(), "local")
		done <- syms
	}()
	select {
	case syms := <-done:
		assert.Equal(t, []string{"AAPL"}, syms)
	case <-time.After(2 * time.Second):
		t.Fatal("file index lookup blocked by a pending download")
	}

	close(release)
	require.NoError(t, <-slow)
}

func TestRegistry_URLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRegistry(map[string]Source{"sp500": {URL: srv.URL}}, srv.Client(), logger.NewNop())
	_, err := r.Symbols(context.Background(), "sp500")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownIndex))
}

func TestParseSymbolList(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK-B"}, ParseSymbolList("AAPL, msft brk.b;aapl"))
	assert.Empty(t, ParseSymbolList(" , "))
}
