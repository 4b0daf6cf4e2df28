package strategy

import (
	"context"
	"sort"

	"github.com/spf13/cast"

	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

func init() {
	RegisterFactory("rebalance", newRebalance)
}

// Rebalance 固定权重调仓策略：每次触发按配置权重对每个标的
// 产出一条rebalance信号，换算成订单的事在执行引擎里做
type Rebalance struct {
	name    string
	weights map[string]float64
}

func newRebalance(name string, params map[string]interface{}) (Strategy, error) {
	raw, ok := params["weights"]
	if !ok {
		return nil, errors.WithCode(ecode.ValidateErr, "rebalance %s: missing weights", name)
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, errors.Wrap(err, ecode.ValidateErr, "rebalance "+name+": bad weights")
	}
	weights := make(map[string]float64, len(m))
	var sum float64
	for symbol, v := range m {
		w, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, errors.Wrap(err, ecode.ValidateErr, "rebalance "+name+": bad weight for "+symbol)
		}
		if w < 0 {
			return nil, errors.WithCode(ecode.ValidateErr, "rebalance %s: negative weight for %s", name, symbol)
		}
		weights[symbol] = w
		sum += w
	}
	if sum > 1.0001 {
		return nil, errors.WithCode(ecode.ValidateErr, "rebalance %s: weights sum %.4f exceeds 1", name, sum)
	}
	return &Rebalance{name: name, weights: weights}, nil
}

func (s *Rebalance) Name() string { return s.name }

func (s *Rebalance) Compute(_ context.Context, sc *Context) ([]*model.TradingSignal, error) {
	symbols := make([]string, 0, len(s.weights))
	for symbol := range s.weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	signals := make([]*model.TradingSignal, 0, len(symbols))
	for _, symbol := range symbols {
		signals = append(signals, model.NewRebalanceSignal(
			sc.JobName, sc.Account, sc.Market, symbol,
			map[string]float64{symbol: s.weights[symbol]}, nil, sc.Now))
	}
	return signals, nil
}
