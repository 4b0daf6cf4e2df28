package model

import "time"

// 券商网关侧的订单与账户模型

type OrderState string

const (
	OrderAccepted  OrderState = "accepted"
	OrderFilled    OrderState = "filled"
	OrderRejected  OrderState = "rejected"
	OrderCancelled OrderState = "cancelled"
)

// Order 下单请求
type Order struct {
	Account  string    `json:"account"`
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    *float64  `json:"price,omitempty"` // 空为市价单
}

// OrderResponse 下单响应
type OrderResponse struct {
	OrderID string     `json:"order_id"`
	State   OrderState `json:"state"`
	Message string     `json:"message,omitempty"`
}

// OrderRecord 网关侧的订单记录，用于成交轮询
type OrderRecord struct {
	OrderID   string     `json:"order_id"`
	Symbol    string     `json:"symbol"`
	Side      OrderSide  `json:"side"`
	Quantity  float64    `json:"quantity"`
	Price     float64    `json:"price"`
	State     OrderState `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	FilledAt  *time.Time `json:"filled_at,omitempty"`
}

// Position 持仓。实时持仓以网关为准，本系统不落库
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
}

// MarketValue 持仓市值
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// AccountInfo 账户概况
type AccountInfo struct {
	Name      string     `json:"name"`
	Cash      float64    `json:"cash"`
	Equity    float64    `json:"equity"` // 现金 + 持仓市值
	Positions []Position `json:"positions"`
}

// Quote 最新行情
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}
