package paper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tickflow/internal/broker"
	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

// 纸面账户网关：内存持仓+现金，市价单按最新行情立即成交。
// 行情由外部喂入（回放时按模拟时间喂价）

type Gateway struct {
	mu        sync.Mutex
	name      string
	cash      float64
	positions map[string]*model.Position
	quotes    map[string]model.Quote
	orders    map[string]*model.OrderRecord

	// 测试注入：指定symbol下单直接拒绝
	rejects map[string]string
}

var _ broker.Gateway = (*Gateway)(nil)

func New(accountName string, initialCash float64) *Gateway {
	return &Gateway{
		name:      accountName,
		cash:      initialCash,
		positions: make(map[string]*model.Position),
		quotes:    make(map[string]model.Quote),
		orders:    make(map[string]*model.OrderRecord),
		rejects:   make(map[string]string),
	}
}

// SetQuote 喂入最新行情
func (g *Gateway) SetQuote(symbol string, price float64, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotes[symbol] = model.Quote{Symbol: symbol, Price: price, Time: at}
	if p, ok := g.positions[symbol]; ok {
		p.CurrentPrice = price
	}
}

// RejectSymbol 注入拒单（测试部分失败场景）。reason为空则恢复正常
func (g *Gateway) RejectSymbol(symbol, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if reason == "" {
		delete(g.rejects, symbol)
		return
	}
	g.rejects[symbol] = reason
}

func (g *Gateway) GetQuote(_ context.Context, symbol string) (*model.Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q, ok := g.quotes[symbol]
	if !ok {
		return nil, errors.WithCode(ecode.BrokerErr, "no quote for %s", symbol)
	}
	return &q, nil
}

func (g *Gateway) GetAccountInfo(_ context.Context) (*model.AccountInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info := &model.AccountInfo{
		Name:   g.name,
		Cash:   g.cash,
		Equity: g.cash,
	}
	for _, p := range g.positions {
		if p.Quantity == 0 {
			continue
		}
		cp := *p
		info.Positions = append(info.Positions, cp)
		info.Equity += cp.MarketValue()
	}
	return info, nil
}

func (g *Gateway) GetPositions(_ context.Context) ([]model.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Position
	for _, p := range g.positions {
		if p.Quantity != 0 {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (g *Gateway) GetOrders(_ context.Context) ([]model.OrderRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.OrderRecord, 0, len(g.orders))
	for _, o := range g.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (g *Gateway) PlaceOrder(_ context.Context, order *model.Order) (*model.OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if order.Quantity <= 0 {
		return nil, errors.WithCode(ecode.BrokerErr, "invalid quantity %v", order.Quantity)
	}
	if reason, ok := g.rejects[order.Symbol]; ok {
		return &model.OrderResponse{State: model.OrderRejected, Message: reason},
			errors.WithCode(ecode.BrokerErr, "order rejected: %s", reason)
	}

	// 成交价：限价单用指定价，否则用最新行情
	var price float64
	if order.Price != nil {
		price = *order.Price
	} else {
		q, ok := g.quotes[order.Symbol]
		if !ok {
			return nil, errors.WithCode(ecode.BrokerErr, "no quote for %s", order.Symbol)
		}
		price = q.Price
	}

	cost := price * order.Quantity
	if order.Side == model.SideBuy && cost > g.cash {
		return &model.OrderResponse{State: model.OrderRejected, Message: "insufficient cash"},
			errors.WithCode(ecode.BrokerErr, "insufficient cash: need %.2f, have %.2f", cost, g.cash)
	}
	pos := g.positions[order.Symbol]
	if order.Side == model.SideSell && (pos == nil || pos.Quantity < order.Quantity) {
		return &model.OrderResponse{State: model.OrderRejected, Message: "insufficient position"},
			errors.WithCode(ecode.BrokerErr, "insufficient position in %s", order.Symbol)
	}

	// 立即成交
	now := time.Now().UTC()
	if q, ok := g.quotes[order.Symbol]; ok && !q.Time.IsZero() {
		now = q.Time
	}
	if order.Side == model.SideBuy {
		g.cash -= cost
		if pos == nil {
			pos = &model.Position{Symbol: order.Symbol, CurrentPrice: price}
			g.positions[order.Symbol] = pos
		}
		total := pos.AvgPrice*pos.Quantity + cost
		pos.Quantity += order.Quantity
		pos.AvgPrice = total / pos.Quantity
	} else {
		g.cash += cost
		pos.Quantity -= order.Quantity
	}

	orderID := uuid.NewString()
	filledAt := now
	g.orders[orderID] = &model.OrderRecord{
		OrderID:   orderID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     price,
		State:     model.OrderFilled,
		CreatedAt: now,
		FilledAt:  &filledAt,
	}
	return &model.OrderResponse{OrderID: orderID, State: model.OrderFilled}, nil
}

func (g *Gateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return errors.WithCode(ecode.NotFoundErr, "order %s not found", orderID)
	}
	if o.State == model.OrderFilled {
		return errors.WithCode(ecode.BrokerErr, "order %s already filled", orderID)
	}
	o.State = model.OrderCancelled
	return nil
}

// Cash 当前现金（测试观察用）
func (g *Gateway) Cash() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cash
}
