package model

// BrokerType 券商类型。futu/ibkr由外部网关服务对接，仓内只有paper实现
type BrokerType string

const (
	BrokerPaper BrokerType = "paper"
	BrokerFutu  BrokerType = "futu"
	BrokerIbkr  BrokerType = "ibkr"
)

// Account 账户引用（只读）。现金与持仓一律实时查询网关，不在本系统缓存
type Account struct {
	Name       string     `json:"name"`
	BrokerType BrokerType `json:"broker_type"`
	Identity   string     `json:"broker_identity,omitempty"`
}
