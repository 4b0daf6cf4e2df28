package dao

import (
	"context"
	"time"

	"tickflow/internal/model"
)

// SignalDao 信号存储契约。创建只追加；状态变更必须走 UpdateStatusFrom
// 的乐观检查（仅当当前状态等于期望的前置状态才生效），避免并发重复执行
type SignalDao interface {

	// 写入一条信号，返回分配的id
	Add(ctx context.Context, signal *model.TradingSignal) (int64, error)
	// 批量写入，返回各自id
	AddMany(ctx context.Context, signals []*model.TradingSignal) ([]int64, error)
	// 按id查询
	Get(ctx context.Context, id int64) (*model.TradingSignal, error)
	// 待执行信号：status=pending，account为空表示该市场全部账户，
	// trigger_at为空或不晚于triggerAtBefore；按created_at升序
	ListPending(ctx context.Context, account, market string, triggerAtBefore time.Time) ([]model.TradingSignal, error)
	// 通用列表查询（信号页）
	List(ctx context.Context, filter model.SignalFilter) ([]model.TradingSignal, error)
	// 与List相同条件的计数
	Count(ctx context.Context, filter model.SignalFilter) (int64, error)
	// 乐观状态变更：仅当当前status=from时改为to。返回是否生效
	UpdateStatusFrom(ctx context.Context, id int64, from, to model.SignalStatus, executedAt *time.Time, reason string) (bool, error)
	// 取消一条pending信号
	Cancel(ctx context.Context, id int64) (bool, error)
}

// HistoryDao 任务运行历史
type HistoryDao interface {
	AddHistory(ctx context.Context, h *model.JobHistory) (int64, error)
	FinishHistory(ctx context.Context, id int64, status string, signalCount int, errMsg string, endTime time.Time) error
	ListHistories(ctx context.Context, jobName string, limit int) ([]model.JobHistory, error)
}
