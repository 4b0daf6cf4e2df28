package strategy

import (
	"context"
	"sync"

	"github.com/markcheno/go-talib"
	"github.com/spf13/cast"

	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

func init() {
	RegisterFactory("sma_cross", newSmaCross)
}

// SmaCross 双均线策略：每次触发取一次行情累积价格序列，
// 快线上穿慢线买入、下穿卖出
type SmaCross struct {
	name   string
	symbol string
	fast   int
	slow   int
	qty    float64

	mu     sync.Mutex
	prices []float64
}

func newSmaCross(name string, params map[string]interface{}) (Strategy, error) {
	symbol := cast.ToString(params["symbol"])
	if symbol == "" {
		return nil, errors.WithCode(ecode.ValidateErr, "sma_cross %s: missing symbol", name)
	}
	fast := cast.ToInt(params["fast"])
	slow := cast.ToInt(params["slow"])
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, errors.WithCode(ecode.ValidateErr, "sma_cross %s: want 0 < fast < slow, got fast=%d slow=%d", name, fast, slow)
	}
	qty, err := cast.ToFloat64E(params["qty"])
	if err != nil || qty <= 0 {
		return nil, errors.WithCode(ecode.ValidateErr, "sma_cross %s: qty must be positive", name)
	}
	return &SmaCross{name: name, symbol: symbol, fast: fast, slow: slow, qty: qty}, nil
}

func (s *SmaCross) Name() string { return s.name }

func (s *SmaCross) Compute(ctx context.Context, sc *Context) ([]*model.TradingSignal, error) {
	quote, err := sc.Gateway.GetQuote(ctx, s.symbol)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, quote.Price)
	// 序列只需覆盖慢线周期，留一倍余量防止无限增长
	if max := s.slow * 2; len(s.prices) > max {
		s.prices = s.prices[len(s.prices)-max:]
	}
	if len(s.prices) < s.slow+1 {
		return nil, nil
	}

	fast := talib.Sma(s.prices, s.fast)
	slow := talib.Sma(s.prices, s.slow)
	last := len(s.prices) - 1
	crossUp := fast[last-1] <= slow[last-1] && fast[last] > slow[last]
	crossDown := fast[last-1] >= slow[last-1] && fast[last] < slow[last]

	switch {
	case crossUp:
		sig := model.NewOrderSignal(sc.JobName, sc.Account, sc.Market, s.symbol,
			model.SideBuy, s.qty, nil, "sma golden cross", sc.Now)
		return []*model.TradingSignal{sig}, nil
	case crossDown:
		qty, err := s.heldQty(ctx, sc)
		if err != nil {
			return nil, err
		}
		if qty <= 0 {
			return nil, nil
		}
		sig := model.NewOrderSignal(sc.JobName, sc.Account, sc.Market, s.symbol,
			model.SideSell, qty, nil, "sma death cross", sc.Now)
		return []*model.TradingSignal{sig}, nil
	}
	return nil, nil
}

func (s *SmaCross) heldQty(ctx context.Context, sc *Context) (float64, error) {
	positions, err := sc.Gateway.GetPositions(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range positions {
		if p.Symbol == s.symbol {
			return p.Quantity, nil
		}
	}
	return 0, nil
}
