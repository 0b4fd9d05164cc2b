package screener

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"StockScreener/internal/criteria"
	"StockScreener/internal/logger"
	"StockScreener/internal/model"
	"StockScreener/internal/resolver"
	"StockScreener/internal/store"

	"github.com/google/uuid"
)

type Kind string

const (
	KindFundamental Kind = "fundamental"
	KindTechnical   Kind = "technical"
	KindCombined    Kind = "combined"
)

// ParseKind validates a screen kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFundamental, KindTechnical, KindCombined:
		return k, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Request is one screen. Criteria applies to fundamental and technical
// screens; combined screens read Fundamental and Technical. Symbols, when
// set, replace Index.
type Request struct {
	Kind        Kind
	Index       string
	Symbols     []string
	Criteria    string
	Fundamental string
	Technical   string
	Limit       int
	Policy      resolver.Policy
}

type Response struct {
	RequestID     string                  `json:"request_id"`
	Kind          Kind                    `json:"kind"`
	Index         string                  `json:"index"`
	Criteria      string                  `json:"criteria"`
	Results       []model.ScreeningResult `json:"results"`
	Count         int                     `json:"count"`
	ExecutionTime time.Duration           `json:"execution_time"`
	Cached        bool                    `json:"cached"`
}

type plan struct {
	fundamental criteria.Set
	technical   criteria.Set
	label       string
}

// Screen validates req, resolves its symbols and runs the requested screen.
// Only caller-input errors are returned: ErrUnknownKind, ErrNoCriteria,
// symbols.ErrUnknownIndex and calculator.ErrUnknownIndicator.
func (s *Screener) Screen(ctx context.Context, req Request) (*Response, error) {
	start := s.now()
	reqID := uuid.NewString()
	log := s.log.WithFields(logger.Fields{"request_id": reqID, "kind": req.Kind})

	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return nil, err
	}
	pl, err := s.plan(kind, req, log)
	if err != nil {
		return nil, err
	}

	index, syms, err := s.symbols(ctx, req)
	if err != nil {
		return nil, err
	}

	hash := resultHash(kind, index, pl.label, req.Limit, req.Policy)
	if cached := s.cachedResponse(ctx, hash, req.Policy.ForceRefresh, log); cached != nil {
		cached.RequestID = reqID
		return cached, nil
	}

	var results []model.ScreeningResult
	switch kind {
	case KindFundamental:
		results = s.ScreenFundamental(ctx, syms, pl.fundamental, req.Limit, req.Policy)
	case KindTechnical:
		results = s.ScreenTechnical(ctx, syms, pl.technical, req.Limit, req.Policy)
	case KindCombined:
		results = s.ScreenCombined(ctx, syms, pl.fundamental, pl.technical, req.Limit, req.Policy)
	}

	resp := &Response{
		RequestID:     reqID,
		Kind:          kind,
		Index:         index,
		Criteria:      pl.label,
		Results:       results,
		Count:         len(results),
		ExecutionTime: s.now().Sub(start),
	}
	s.remember(ctx, hash, resp, log)
	log.WithFields(logger.Fields{
		"index": index, "symbols": len(syms), "matches": resp.Count,
	}).Info("screen completed")
	return resp, nil
}

func (s *Screener) plan(kind Kind, req Request, log *logger.Entry) (plan, error) {
	parse := func(text string) criteria.Set {
		set, rep := criteria.ParseDetailed(text)
		if len(rep.Dropped) > 0 {
			log.WithFields(logger.Fields{"clauses": rep.Dropped}).Debug("dropped malformed criteria")
		}
		if len(rep.Repeated) > 0 {
			log.WithFields(logger.Fields{"fields": rep.Repeated}).Warn("repeated criteria field, last one wins")
		}
		return set
	}
	pick := func(primary, fallback string) string {
		if strings.TrimSpace(primary) != "" {
			return primary
		}
		return fallback
	}

	var pl plan
	switch kind {
	case KindFundamental:
		pl.fundamental = parse(pick(req.Criteria, req.Fundamental))
		if len(pl.fundamental) == 0 {
			return pl, ErrNoCriteria
		}
		pl.label = pl.fundamental.String()
	case KindTechnical:
		pl.technical = parse(pick(req.Criteria, req.Technical))
		if len(pl.technical) == 0 {
			return pl, ErrNoCriteria
		}
		pl.label = pl.technical.String()
	case KindCombined:
		pl.fundamental = parse(req.Fundamental)
		pl.technical = parse(req.Technical)
		if len(pl.fundamental) == 0 || len(pl.technical) == 0 {
			return pl, ErrNoCriteria
		}
		pl.label = pl.fundamental.String() + ";" + pl.technical.String()
	}
	if pl.technical != nil {
		if err := criteria.ValidateTechnical(pl.technical); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

func (s *Screener) symbols(ctx context.Context, req Request) (string, []string, error) {
	if len(req.Symbols) > 0 {
		syms := make([]string, 0, len(req.Symbols))
		for _, sym := range req.Symbols {
			if sym = model.CanonicalSymbol(sym); sym != "" {
				syms = append(syms, sym)
			}
		}
		return "custom:" + strings.Join(syms, ","), syms, nil
	}
	index := strings.ToLower(strings.TrimSpace(req.Index))
	if index == "" {
		index = s.index
	}
	syms, err := s.indexes.Symbols(ctx, index)
	if err != nil {
		return "", nil, err
	}
	return index, syms, nil
}

// resultHash keys a cached screen. The history window is part of the key
// since technical values depend on it.
func resultHash(kind Kind, index, label string, limit int, p resolver.Policy) string {
	period, interval := p.Period, p.Interval
	if period == "" {
		period = resolver.DefaultPeriod
	}
	if interval == "" {
		interval = resolver.DefaultInterval
	}
	key := fmt.Sprintf("%s|%s|%s|%d|%s|%s", kind, index, label, limit, period, interval)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *Screener) cachedResponse(ctx context.Context, hash string, force bool, log *logger.Entry) *Response {
	if s.resultTTL <= 0 || force {
		return nil
	}
	rec, err := s.results.LoadScreen(ctx, hash)
	if err != nil {
		log.WithError(err).Warn("result cache read failed")
		return nil
	}
	if rec == nil {
		return nil
	}
	log.Debug("served from result cache")
	return &Response{
		Kind:          Kind(rec.Kind),
		Index:         rec.Index,
		Criteria:      rec.Criteria,
		Results:       rec.Results,
		Count:         len(rec.Results),
		ExecutionTime: rec.ExecutionTime,
		Cached:        true,
	}
}

func (s *Screener) remember(ctx context.Context, hash string, resp *Response, log *logger.Entry) {
	if s.resultTTL <= 0 {
		return
	}
	now := s.now()
	err := s.results.SaveScreen(ctx, &store.ScreenRecord{
		Hash:          hash,
		Kind:          string(resp.Kind),
		Index:         resp.Index,
		Criteria:      resp.Criteria,
		Results:       resp.Results,
		ExecutionTime: resp.ExecutionTime,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.resultTTL),
	})
	if err != nil {
		log.WithError(err).Warn("result cache write failed")
	}
}
