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
	RegisterFactory("rsi", newRsi)
}

// Rsi 超买超卖策略：RSI低于buy_below买入，高于sell_above清仓
type Rsi struct {
	name      string
	symbol    string
	period    int
	buyBelow  float64
	sellAbove float64
	qty       float64

	mu     sync.Mutex
	prices []float64
}

func newRsi(name string, params map[string]interface{}) (Strategy, error) {
	symbol := cast.ToString(params["symbol"])
	if symbol == "" {
		return nil, errors.WithCode(ecode.ValidateErr, "rsi %s: missing symbol", name)
	}
	period := cast.ToInt(params["period"])
	if period <= 1 {
		period = 14
	}
	buyBelow := cast.ToFloat64(params["buy_below"])
	if buyBelow == 0 {
		buyBelow = 30
	}
	sellAbove := cast.ToFloat64(params["sell_above"])
	if sellAbove == 0 {
		sellAbove = 70
	}
	if buyBelow >= sellAbove {
		return nil, errors.WithCode(ecode.ValidateErr, "rsi %s: buy_below %.1f must be below sell_above %.1f", name, buyBelow, sellAbove)
	}
	qty, err := cast.ToFloat64E(params["qty"])
	if err != nil || qty <= 0 {
		return nil, errors.WithCode(ecode.ValidateErr, "rsi %s: qty must be positive", name)
	}
	return &Rsi{name: name, symbol: symbol, period: period, buyBelow: buyBelow, sellAbove: sellAbove, qty: qty}, nil
}

func (s *Rsi) Name() string { return s.name }

func (s *Rsi) Compute(ctx context.Context, sc *Context) ([]*model.TradingSignal, error) {
	quote, err := sc.Gateway.GetQuote(ctx, s.symbol)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, quote.Price)
	if max := (s.period + 1) * 3; len(s.prices) > max {
		s.prices = s.prices[len(s.prices)-max:]
	}
	if len(s.prices) < s.period+1 {
		return nil, nil
	}

	rsi := talib.Rsi(s.prices, s.period)
	cur := rsi[len(rsi)-1]

	switch {
	case cur < s.buyBelow:
		sig := model.NewOrderSignal(sc.JobName, sc.Account, sc.Market, s.symbol,
			model.SideBuy, s.qty, nil, "rsi oversold", sc.Now)
		return []*model.TradingSignal{sig}, nil
	case cur > s.sellAbove:
		positions, err := sc.Gateway.GetPositions(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			if p.Symbol == s.symbol && p.Quantity > 0 {
				sig := model.NewOrderSignal(sc.JobName, sc.Account, sc.Market, s.symbol,
					model.SideSell, p.Quantity, nil, "rsi overbought", sc.Now)
				return []*model.TradingSignal{sig}, nil
			}
		}
	}
	return nil, nil
}
