package strategy

import (
	"context"
	"time"

	"tickflow/internal/broker"
	"tickflow/internal/model"
)

// 策略接口：预执行触发时被调用，产出零或多条信号。
// 策略是黑盒，引擎只关心产出

// Context 一次策略运行的上下文
type Context struct {
	JobName string
	Account string
	Market  string
	Symbols []string
	Now     time.Time // 统一时间源（回放时为模拟时间）

	// 只读查询行情/账户，下单一律走信号
	Gateway broker.Gateway
}

type Strategy interface {
	Name() string
	Compute(ctx context.Context, sc *Context) ([]*model.TradingSignal, error)
}
