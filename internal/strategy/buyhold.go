package strategy

import (
	"context"

	"github.com/spf13/cast"

	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

func init() {
	RegisterFactory("buy_hold", newBuyHold)
}

// BuyHold 买入持有：无持仓时买入固定数量，有仓位则不动
type BuyHold struct {
	name   string
	symbol string
	qty    float64
}

func newBuyHold(name string, params map[string]interface{}) (Strategy, error) {
	symbol := cast.ToString(params["symbol"])
	if symbol == "" {
		return nil, errors.WithCode(ecode.ValidateErr, "buy_hold %s: missing symbol", name)
	}
	qty, err := cast.ToFloat64E(params["qty"])
	if err != nil || qty <= 0 {
		return nil, errors.WithCode(ecode.ValidateErr, "buy_hold %s: qty must be positive", name)
	}
	return &BuyHold{name: name, symbol: symbol, qty: qty}, nil
}

func (s *BuyHold) Name() string { return s.name }

func (s *BuyHold) Compute(ctx context.Context, sc *Context) ([]*model.TradingSignal, error) {
	positions, err := sc.Gateway.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if p.Symbol == s.symbol && p.Quantity > 0 {
			return nil, nil
		}
	}
	sig := model.NewOrderSignal(sc.JobName, sc.Account, sc.Market, s.symbol,
		model.SideBuy, s.qty, nil, "buy and hold entry", sc.Now)
	return []*model.TradingSignal{sig}, nil
}
