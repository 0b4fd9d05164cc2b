package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"StockScreener/internal/calculator"
	"StockScreener/internal/logger"
	"StockScreener/internal/model"
	"StockScreener/internal/report"
	"StockScreener/internal/resolver"
	"StockScreener/internal/screener"
	"StockScreener/internal/store"
	"StockScreener/internal/symbols"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Screener is the orchestrator surface the HTTP layer needs.
type Screener interface {
	Screen(ctx context.Context, req screener.Request) (*screener.Response, error)
	Indicators(ctx context.Context, symbol string, p resolver.Policy) (model.IndicatorValues, error)
}

type Indexes interface {
	Indexes() []string
	Symbols(ctx context.Context, name string) ([]string, error)
}

// Defaults fill request fields the client leaves empty.
type Defaults struct {
	Limit    int
	Period   string
	Interval string
	MaxAge   time.Duration
}

type Handler struct {
	screener Screener
	indexes  Indexes
	store    store.WarmStore
	defaults Defaults
	log      *logger.Entry
}

func NewHandler(sc Screener, idx Indexes, st store.WarmStore, d Defaults, log *logger.Log) *Handler {
	return &Handler{
		screener: sc,
		indexes:  idx,
		store:    st,
		defaults: d,
		log:      log.WithComponent("api"),
	}
}

// Router builds the gin engine with every route under /api/v1.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/indexes", h.ListIndexes)
		v1.GET("/symbols/:index", h.IndexSymbols)
		v1.GET("/indicators", h.ListIndicators)
		v1.GET("/stock/:symbol/indicators", h.StockIndicators)
		v1.GET("/stats", h.Stats)
		v1.POST("/screen/:kind", h.Screen)
	}
	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()
		h.log.WithFields(logger.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	}
}

type screenRequest struct {
	Index               string   `json:"index"`
	Symbols             []string `json:"symbols" binding:"omitempty,max=1000,dive,required"`
	Criteria            string   `json:"criteria"`
	FundamentalCriteria string   `json:"fundamental_criteria"`
	TechnicalCriteria   string   `json:"technical_criteria"`
	Limit               *int     `json:"limit" binding:"omitempty,min=0,max=5000"`
	Reload              bool     `json:"reload"`
	Period              string   `json:"period"`
	Interval            string   `json:"interval"`
}

// Screen runs a fundamental, technical or combined screen.
// POST /api/v1/screen/:kind
func (h *Handler) Screen(c *gin.Context) {
	kind, err := screener.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var body screenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := h.defaults.Limit
	if body.Limit != nil {
		limit = *body.Limit
	}
	req := screener.Request{
		Kind:        kind,
		Index:       body.Index,
		Symbols:     body.Symbols,
		Criteria:    body.Criteria,
		Fundamental: body.FundamentalCriteria,
		Technical:   body.TechnicalCriteria,
		Limit:       limit,
		Policy:      h.policy(body.Reload, body.Period, body.Interval),
	}

	resp, err := h.screener.Screen(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	for i := range resp.Results {
		resp.Results[i].Price = report.Round(resp.Results[i].Price, 2)
		if resp.Results[i].Indicators != nil {
			resp.Results[i].Indicators = report.RoundValues(resp.Results[i].Indicators)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id":     resp.RequestID,
		"kind":           resp.Kind,
		"index":          resp.Index,
		"criteria":       resp.Criteria,
		"results":        resp.Results,
		"count":          resp.Count,
		"cached":         resp.Cached,
		"execution_time": resp.ExecutionTime.Seconds(),
	})
}

// GET /api/v1/indexes
func (h *Handler) ListIndexes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"indexes": h.indexes.Indexes()})
}

// GET /api/v1/symbols/:index
func (h *Handler) IndexSymbols(c *gin.Context) {
	syms, err := h.indexes.Symbols(c.Request.Context(), c.Param("index"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": c.Param("index"), "symbols": syms, "count": len(syms)})
}

// GET /api/v1/indicators
func (h *Handler) ListIndicators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"technical_indicators": screener.ListIndicatorNames(),
		"fundamental_fields":   screener.ListFundamentalFields(),
		"operators":            screener.Operators(),
	})
}

// GET /api/v1/stock/:symbol/indicators
func (h *Handler) StockIndicators(c *gin.Context) {
	symbol := model.CanonicalSymbol(c.Param("symbol"))
	values, err := h.screener.Indicators(c.Request.Context(), symbol,
		h.policy(c.Query("reload") == "true", c.Query("period"), c.Query("interval")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "indicators": report.RoundValues(values)})
}

// GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/v1/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *Handler) policy(reload bool, period, interval string) resolver.Policy {
	if period == "" {
		period = h.defaults.Period
	}
	if interval == "" {
		interval = h.defaults.Interval
	}
	return resolver.Policy{
		ForceRefresh: reload,
		MaxAge:       h.defaults.MaxAge,
		Period:       period,
		Interval:     interval,
	}
}

// fail maps caller-input errors to 4xx and everything else to 500.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, screener.ErrNoCriteria),
		errors.Is(err, screener.ErrUnknownKind),
		errors.Is(err, calculator.ErrUnknownIndicator):
		status = http.StatusBadRequest
	case errors.Is(err, symbols.ErrUnknownIndex),
		errors.Is(err, screener.ErrSymbolNotFound):
		status = http.StatusNotFound
	default:
		h.log.WithError(err).WithFields(logger.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
