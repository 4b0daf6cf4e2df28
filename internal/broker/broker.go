package broker

import (
	"context"

	"tickflow/internal/model"
)

// Gateway 券商网关统一契约。执行引擎只依赖这组能力，
// 不感知具体券商（paper/futu/ibkr）
type Gateway interface {
	// 获取最新行情
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)
	// 账户概况（现金、权益、持仓），实时查询，不缓存
	GetAccountInfo(ctx context.Context) (*model.AccountInfo, error)
	// 当前持仓
	GetPositions(ctx context.Context) ([]model.Position, error)
	// 订单记录（用于成交轮询）
	GetOrders(ctx context.Context) ([]model.OrderRecord, error)
	// 下单
	PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error)
	// 撤单
	CancelOrder(ctx context.Context, orderID string) error
}
