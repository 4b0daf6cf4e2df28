package entity

import (
	"time"
)

// TradingSignal 对应 trading_signals 表。追加写入，只改status，不删除
type TradingSignal struct {
	ID uint64 `gorm:"primaryKey"`

	JobName string `gorm:"column:job_name;type:varchar(64);not null;index:idx_job_name"`
	Account string `gorm:"type:varchar(64);not null;index:idx_account_market_status"`
	Market  string `gorm:"type:varchar(16);not null;index:idx_account_market_status"`
	Kind    string `gorm:"type:varchar(16);not null"`                              // order/rebalance
	Symbol  string `gorm:"type:varchar(30)"`                                       // rebalance可为空
	Payload string `gorm:"column:payload_json;type:json;not null"`                 // SignalPayload
	Status  string `gorm:"type:varchar(10);not null;index:idx_account_market_status"` // pending/sent/filled/failed/cancelled
	Error   string `gorm:"type:varchar(255)"`

	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamp;not null;index:idx_created_at"`
	ExecutedAt *time.Time `gorm:"column:executed_at;type:timestamp"`
	TriggerAt  *time.Time `gorm:"column:trigger_at;type:timestamp;index:idx_trigger_at"`
}

func (TradingSignal) TableName() string {
	return "trading_signals"
}

// JobHistory 任务运行历史，对应 job_histories 表
type JobHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	JobName     string `gorm:"column:job_name;type:varchar(64);not null;index:idx_history_job"`
	Strategy    string `gorm:"type:varchar(64)"`
	TriggerTime time.Time `gorm:"column:trigger_time;type:timestamp;not null"`
	EndTime     *time.Time `gorm:"column:end_time;type:timestamp"`
	Status      string `gorm:"type:varchar(10);not null"` // running/success/failed
	SignalCount int    `gorm:"column:signal_count"`
	ErrorMsg    string `gorm:"column:error_message;type:varchar(500)"`
}

func (JobHistory) TableName() string {
	return "job_histories"
}
