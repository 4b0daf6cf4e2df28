package model

import (
	"time"
)

// 交易信号模型：策略产出（意图）与信号存储（TradingSignal）共用

type SignalKind string

const (
	KindOrder     SignalKind = "order"     // 直接下单
	KindRebalance SignalKind = "rebalance" // 目标权重/目标市值，执行时换算为订单
)

type SignalStatus string

const (
	StatusPending   SignalStatus = "pending"
	StatusSent      SignalStatus = "sent"
	StatusFilled    SignalStatus = "filled"
	StatusFailed    SignalStatus = "failed"
	StatusCancelled SignalStatus = "cancelled"
)

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// SignalPayload 信号内容。order类填 Side/Qty/Price；
// rebalance类填 TargetWeights 或 TargetNotional（key为symbol）
type SignalPayload struct {
	Side   OrderSide `json:"side,omitempty"`
	Qty    float64   `json:"qty,omitempty"`
	Price  *float64  `json:"price,omitempty"`
	Reason string    `json:"reason,omitempty"`

	TargetWeights  map[string]float64 `json:"target_weights,omitempty"`
	TargetNotional map[string]float64 `json:"target_notional,omitempty"`
}

// TradingSignal 存储中的交易信号。创建后只变更status，永不删除
type TradingSignal struct {
	ID        int64         `json:"id"`
	JobName   string        `json:"job_name"`
	Account   string        `json:"account"`
	Market    string        `json:"market"`
	Kind      SignalKind    `json:"kind"`
	Symbol    string        `json:"symbol,omitempty"` // rebalance可为空（多标的在payload中）
	Payload   SignalPayload `json:"payload"`
	Status    SignalStatus  `json:"status"`
	Error     string        `json:"error,omitempty"` // 失败原因，供排查
	CreatedAt time.Time     `json:"created_at"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty"`
	TriggerAt  *time.Time   `json:"trigger_at,omitempty"` // 期望执行时间，空则下一次市场事件即执行
}

// NewOrderSignal 创建order类信号
func NewOrderSignal(jobName, account, market, symbol string, side OrderSide, qty float64, price *float64, reason string, createdAt time.Time) *TradingSignal {
	return &TradingSignal{
		JobName: jobName,
		Account: account,
		Market:  market,
		Kind:    KindOrder,
		Symbol:  symbol,
		Payload: SignalPayload{
			Side:   side,
			Qty:    qty,
			Price:  price,
			Reason: reason,
		},
		Status:    StatusPending,
		CreatedAt: createdAt,
	}
}

// NewRebalanceSignal 创建rebalance类信号。单标的时symbol非空且targets只含该标的
func NewRebalanceSignal(jobName, account, market, symbol string, weights, notional map[string]float64, createdAt time.Time) *TradingSignal {
	return &TradingSignal{
		JobName: jobName,
		Account: account,
		Market:  market,
		Kind:    KindRebalance,
		Symbol:  symbol,
		Payload: SignalPayload{
			TargetWeights:  weights,
			TargetNotional: notional,
		},
		Status:    StatusPending,
		CreatedAt: createdAt,
	}
}

// SignalFilter 信号列表查询条件（API/UI用）
type SignalFilter struct {
	Account  string
	Market   string
	Status   string
	Kind     string
	DateFrom string // YYYY-MM-DD，按created_at过滤
	DateTo   string
	Offset   int
	Limit    int
}
