package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = time.RFC3339
)

// SQLStore persists stocks, price history and cached screens in SQLite
// (modernc, pure Go) or PostgreSQL (lib/pq).
type SQLStore struct {
	db  *sqlx.DB
	mu  sync.Mutex
	now func() time.Time
	log *logger.Entry
}

// Open connects to the database and runs migrations.
func Open(driver, dsn string, log *logger.Log) (*SQLStore, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = sqlx.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	case DriverPostgres:
		db, err = sqlx.Connect(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	s := &SQLStore{db: db, now: time.Now, log: log.WithComponent("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.log.WithFields(logger.Fields{"driver": driver}).Info("warm store opened")
	return s, nil
}

func (s *SQLStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stocks (
			symbol         TEXT PRIMARY KEY,
			name           TEXT,
			sector         TEXT,
			industry       TEXT,
			market_cap     DOUBLE PRECISION,
			current_price  DOUBLE PRECISION,
			pe_ratio       DOUBLE PRECISION,
			dividend_yield DOUBLE PRECISION,
			beta           DOUBLE PRECISION,
			info           TEXT NOT NULL DEFAULT '{}',
			created_at     BIGINT NOT NULL,
			updated_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stocks_sector ON stocks(sector)`,

		`CREATE TABLE IF NOT EXISTS historical_prices (
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL,
			open      DOUBLE PRECISION NOT NULL,
			high      DOUBLE PRECISION NOT NULL,
			low       DOUBLE PRECISION NOT NULL,
			close     DOUBLE PRECISION NOT NULL,
			volume    DOUBLE PRECISION,
			adj_close DOUBLE PRECISION,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_date ON historical_prices(date)`,

		`CREATE TABLE IF NOT EXISTS screening_results (
			criteria_hash  TEXT PRIMARY KEY,
			kind           TEXT NOT NULL,
			index_used     TEXT,
			criteria       TEXT,
			results        TEXT NOT NULL,
			result_count   INTEGER NOT NULL,
			execution_time DOUBLE PRECISION,
			created_at     BIGINT NOT NULL,
			expires_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screening_expires ON screening_results(expires_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

type stockRow struct {
	Symbol        string          `db:"symbol"`
	Name          sql.NullString  `db:"name"`
	Sector        sql.NullString  `db:"sector"`
	Industry      sql.NullString  `db:"industry"`
	MarketCap     sql.NullFloat64 `db:"market_cap"`
	CurrentPrice  sql.NullFloat64 `db:"current_price"`
	PERatio       sql.NullFloat64 `db:"pe_ratio"`
	DividendYield sql.NullFloat64 `db:"dividend_yield"`
	Beta          sql.NullFloat64 `db:"beta"`
	Info          string          `db:"info"`
	CreatedAt     int64           `db:"created_at"`
	UpdatedAt     int64           `db:"updated_at"`
}

type priceRow struct {
	Date     string          `db:"date"`
	Open     float64         `db:"open"`
	High     float64         `db:"high"`
	Low      float64         `db:"low"`
	Close    float64         `db:"close"`
	Volume   sql.NullFloat64 `db:"volume"`
	AdjClose sql.NullFloat64 `db:"adj_close"`
}

func (s *SQLStore) Load(ctx context.Context, symbol string, maxAge time.Duration) (*model.StockData, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := s.now().UTC().Add(-maxAge).Format(dateLayout)

	var fresh int
	if err := s.db.GetContext(ctx, &fresh,
		s.db.Rebind(`SELECT COUNT(*) FROM historical_prices WHERE symbol = ? AND date >= ?`),
		symbol, cutoff); err != nil {
		return nil, fmt.Errorf("count fresh bars %s: %w", symbol, err)
	}
	if fresh == 0 {
		return nil, nil
	}

	var rows []priceRow
	if err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT date, open, high, low, close, volume, adj_close
			FROM historical_prices WHERE symbol = ? ORDER BY date`), symbol); err != nil {
		return nil, fmt.Errorf("load prices %s: %w", symbol, err)
	}

	series := &model.PriceSeries{Symbol: symbol, Bars: make([]model.Bar, 0, len(rows))}
	for _, r := range rows {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("load prices %s: %w", symbol, err)
		}
		bar := model.Bar{Date: date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
		if r.Volume.Valid {
			bar.Volume = r.Volume.Float64
		}
		if r.AdjClose.Valid {
			v := r.AdjClose.Float64
			bar.AdjClose = &v
		}
		series.Bars = append(series.Bars, bar)
	}

	data := &model.StockData{
		Symbol:   symbol,
		Snapshot: model.Snapshot{"symbol": model.String(symbol)},
		Series:   series,
	}
	var st stockRow
	err := s.db.GetContext(ctx, &st, s.db.Rebind(`SELECT * FROM stocks WHERE symbol = ?`), symbol)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return data, nil
	case err != nil:
		return nil, fmt.Errorf("load stock %s: %w", symbol, err)
	}
	data.Snapshot = st.snapshot()
	data.LastUpdated = time.Unix(st.UpdatedAt, 0).UTC()
	return data, nil
}

// snapshot rebuilds the fundamentals from the stored info document,
// falling back to the typed columns for anything the document lacks.
func (r stockRow) snapshot() model.Snapshot {
	snap := model.Snapshot{}
	if r.Info != "" {
		_ = json.Unmarshal([]byte(r.Info), &snap)
	}
	fillString := func(key string, v sql.NullString) {
		if _, ok := snap[key]; !ok && v.Valid {
			snap[key] = model.String(v.String)
		}
	}
	fillNumber := func(key string, v sql.NullFloat64) {
		if _, ok := snap[key]; !ok && v.Valid {
			snap[key] = model.Number(v.Float64)
		}
	}
	snap["symbol"] = model.String(r.Symbol)
	fillString("shortName", r.Name)
	fillString("sector", r.Sector)
	fillString("industry", r.Industry)
	fillNumber("marketCap", r.MarketCap)
	fillNumber("currentPrice", r.CurrentPrice)
	fillNumber("trailingPE", r.PERatio)
	fillNumber("dividendYield", r.DividendYield)
	fillNumber("beta", r.Beta)
	return snap
}

func (s *SQLStore) Save(ctx context.Context, data *model.StockData) error {
	if data == nil || data.Series.Len() == 0 {
		return fmt.Errorf("save: empty series")
	}
	info, err := json.Marshal(data.Snapshot)
	if err != nil {
		return fmt.Errorf("encode info %s: %w", data.Symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	snap := data.Snapshot
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO stocks
		(symbol, name, sector, industry, market_cap, current_price, pe_ratio,
		 dividend_yield, beta, info, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			industry = excluded.industry,
			market_cap = excluded.market_cap,
			current_price = excluded.current_price,
			pe_ratio = excluded.pe_ratio,
			dividend_yield = excluded.dividend_yield,
			beta = excluded.beta,
			info = excluded.info,
			updated_at = excluded.updated_at`),
		data.Symbol,
		nullString(snap, "shortName"), nullString(snap, "sector"), nullString(snap, "industry"),
		nullNumber(snap, "marketCap"), nullNumber(snap, "currentPrice"), nullNumber(snap, "trailingPE"),
		nullNumber(snap, "dividendYield"), nullNumber(snap, "beta"),
		string(info), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert stock %s: %w", data.Symbol, err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM historical_prices WHERE symbol = ?`), data.Symbol); err != nil {
		return fmt.Errorf("clear prices %s: %w", data.Symbol, err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO historical_prices
		(symbol, date, open, high, low, close, volume, adj_close)
		VALUES (?,?,?,?,?,?,?,?)`))
	if err != nil {
		return fmt.Errorf("prepare prices: %w", err)
	}
	defer stmt.Close()
	for _, b := range data.Series.Bars {
		var adj sql.NullFloat64
		if b.AdjClose != nil {
			adj = sql.NullFloat64{Float64: *b.AdjClose, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, data.Symbol, formatDate(b.Date),
			b.Open, b.High, b.Low, b.Close, b.Volume, adj); err != nil {
			return fmt.Errorf("insert price %s %s: %w", data.Symbol, formatDate(b.Date), err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Symbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT symbol FROM stocks ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return out, nil
}

type screenRow struct {
	Hash          string          `db:"criteria_hash"`
	Kind          string          `db:"kind"`
	Index         sql.NullString  `db:"index_used"`
	Criteria      sql.NullString  `db:"criteria"`
	Results       string          `db:"results"`
	ResultCount   int             `db:"result_count"`
	ExecutionTime sql.NullFloat64 `db:"execution_time"`
	CreatedAt     int64           `db:"created_at"`
	ExpiresAt     int64           `db:"expires_at"`
}

func (s *SQLStore) SaveScreen(ctx context.Context, rec *ScreenRecord) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode screen results: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO screening_results
		(criteria_hash, kind, index_used, criteria, results, result_count, execution_time, created_at, expires_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (criteria_hash) DO UPDATE SET
			results = excluded.results,
			result_count = excluded.result_count,
			execution_time = excluded.execution_time,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`),
		rec.Hash, rec.Kind, rec.Index, rec.Criteria, string(results), len(rec.Results),
		rec.ExecutionTime.Seconds(), rec.CreatedAt.Unix(), rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save screen %s: %w", rec.Hash, err)
	}
	return nil
}

func (s *SQLStore) LoadScreen(ctx context.Context, hash string) (*ScreenRecord, error) {
	var row screenRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT * FROM screening_results WHERE criteria_hash = ? AND expires_at > ?`),
		hash, s.now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load screen %s: %w", hash, err)
	}
	rec := &ScreenRecord{
		Hash:          row.Hash,
		Kind:          row.Kind,
		Index:         row.Index.String,
		Criteria:      row.Criteria.String,
		ExecutionTime: time.Duration(row.ExecutionTime.Float64 * float64(time.Second)),
		CreatedAt:     time.Unix(row.CreatedAt, 0).UTC(),
		ExpiresAt:     time.Unix(row.ExpiresAt, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Results), &rec.Results); err != nil {
		return nil, fmt.Errorf("decode screen %s: %w", hash, err)
	}
	return rec, nil
}

func (s *SQLStore) PurgeExpiredScreens(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM screening_results WHERE expires_at <= ?`), s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge screens: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Sectors: make(map[string]int64)}
	counts := []struct {
		dst   *int64
		query string
	}{
		{&st.Stocks, `SELECT COUNT(*) FROM stocks`},
		{&st.PriceRows, `SELECT COUNT(*) FROM historical_prices`},
		{&st.CachedResults, `SELECT COUNT(*) FROM screening_results`},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	var span struct {
		Oldest sql.NullString `db:"oldest"`
		Newest sql.NullString `db:"newest"`
	}
	if err := s.db.GetContext(ctx, &span, `SELECT MIN(date) AS oldest, MAX(date) AS newest FROM historical_prices`); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st.OldestBar, st.NewestBar = span.Oldest.String, span.Newest.String

	var sectors []struct {
		Sector string `db:"sector"`
		N      int64  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &sectors,
		`SELECT COALESCE(sector, 'Unknown') AS sector, COUNT(*) AS n FROM stocks GROUP BY COALESCE(sector, 'Unknown')`); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	for _, row := range sectors {
		st.Sectors[row.Sector] = row.N
	}
	return st, nil
}

func (s *SQLStore) Close() error {
	s.log.Info("closing warm store")
	return s.db.Close()
}

// formatDate stores daily bars as YYYY-MM-DD and intraday bars as RFC3339,
// both of which sort lexically in time order.
func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(stampLayout)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(stampLayout, s)
}

func nullString(snap model.Snapshot, key string) sql.NullString {
	v, ok := snap.String(key)
	return sql.NullString{String: v, Valid: ok}
}

func nullNumber(snap model.Snapshot, key string) sql.NullFloat64 {
	v, ok := snap.Number(key)
	return sql.NullFloat64{Float64: v, Valid: ok}
}
