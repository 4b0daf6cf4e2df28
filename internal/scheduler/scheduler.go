package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tickflow/internal/broker"
	"tickflow/internal/dao"
	"tickflow/internal/market"
	"tickflow/internal/model"
	"tickflow/internal/strategy"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
	"tickflow/pkg/logger"
)

// 调度器：tick(now)是唯一入口，同步评估所有到期触发器并等全部
// 工作结束才返回。模拟时钟靠这一点保证时间与执行的严格顺序

type Options struct {
	// 预执行并发上限（策略互不阻塞，但要有边界）
	MaxWorkers int
}

type Scheduler struct {
	jobs       []*Job
	markets    map[string]*market.Market
	brokers    *broker.Registry
	strategies *strategy.Registry
	signals    dao.SignalDao
	history    dao.HistoryDao
	exec       *ExecEngine
	notifier   *Notifier
	maxWorkers int

	mu      sync.Mutex
	lastRun map[string]time.Time // 触发器key -> 上次触发时间
}

// New 装配调度器。任务校验失败属配置错误，直接拒绝启动
func New(jobs []*Job, markets map[string]*market.Market, brokers *broker.Registry,
	strategies *strategy.Registry, signals dao.SignalDao, history dao.HistoryDao,
	exec *ExecEngine, notifier *Notifier, opts Options) (*Scheduler, error) {

	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, errors.Wrap(err, ecode.ValidateErr, "job config")
		}
		if _, ok := markets[j.Market]; !ok {
			return nil, errors.WithCode(ecode.ValidateErr, "job %s: unknown market %q", j.Name, j.Market)
		}
		if j.PreTrigger != nil {
			if _, err := strategies.Get(j.Strategy); err != nil {
				return nil, errors.WithCode(ecode.ValidateErr, "job %s: unknown strategy %q", j.Name, j.Strategy)
			}
		}
	}
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	s := &Scheduler{
		jobs:       append([]*Job(nil), jobs...),
		markets:    markets,
		brokers:    brokers,
		strategies: strategies,
		signals:    signals,
		history:    history,
		exec:       exec,
		notifier:   notifier,
		maxWorkers: maxWorkers,
		lastRun:    make(map[string]time.Time),
	}
	s.injectMarketJobs()
	return s, nil
}

// injectMarketJobs 给每个有固定开盘的市场补默认执行任务：
// 开盘、收盘、盘中bar。显式配置了也不冲突，市场级去重兜底
func (s *Scheduler) injectMarketJobs() {
	for name, m := range s.markets {
		if m.OpenTime == "" {
			continue
		}
		s.jobs = append(s.jobs,
			&Job{Name: fmt.Sprintf("exec_%s_open", name), Market: name,
				ExecTrigger: &TriggerSpec{Kind: TriggerMarketOpen}},
			&Job{Name: fmt.Sprintf("exec_%s_close", name), Market: name,
				ExecTrigger: &TriggerSpec{Kind: TriggerMarketClose}},
		)
		if m.OpenBarMinutes > 0 {
			s.jobs = append(s.jobs, &Job{
				Name: fmt.Sprintf("exec_%s_bar", name), Market: name,
				ExecTrigger: &TriggerSpec{Kind: TriggerOpenBar, Minutes: m.OpenBarMinutes}})
		}
	}
}

// Jobs 全部任务（含自动注入的执行任务），API列表用
func (s *Scheduler) Jobs() []*Job {
	out := append([]*Job(nil), s.jobs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tick 单次同步调度：先跑预执行（策略产信号），再跑市场执行
// （信号变订单）。返回本次执行完成的信号数。调用返回后该now
// 不会再有状态变化
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	executed := s.runPrePhase(ctx, now)
	executed += s.runExecPhase(ctx, now)
	return executed, ctx.Err()
}

// runPrePhase 并发跑所有到期策略任务，worker池限流。
// 单任务失败只记录通知，不影响同tick其他任务
func (s *Scheduler) runPrePhase(ctx context.Context, now time.Time) int {
	var due []*Job
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.PreTrigger == nil {
			continue
		}
		key := "pre:" + j.Name
		if j.PreTrigger.Due(s.markets[j.Market], now, s.lastRun[key]) {
			s.lastRun[key] = now
			due = append(due, j)
		}
	}
	s.mu.Unlock()
	if len(due) == 0 {
		return 0
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, s.maxWorkers)
		mu       sync.Mutex
		executed int
	)
	for _, j := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(j *Job) {
			defer wg.Done()
			defer func() { <-sem }()
			n := s.runPreJob(ctx, j, now)
			mu.Lock()
			executed += n
			mu.Unlock()
		}(j)
	}
	wg.Wait()
	return executed
}

// runPreJob 跑一个策略任务，返回立即执行掉的信号数
// （send_immediately之外恒为0，信号等市场事件）
func (s *Scheduler) runPreJob(ctx context.Context, j *Job, now time.Time) int {
	histID, err := s.history.AddHistory(ctx, &model.JobHistory{
		JobName:     j.Name,
		Strategy:    j.Strategy,
		TriggerTime: now,
		Status:      model.HistoryRunning,
	})
	if err != nil {
		logger.Warnf("add job history: %v", err)
	}
	finish := func(status string, count int, errMsg string) {
		if histID == 0 {
			return
		}
		if err := s.history.FinishHistory(ctx, histID, status, count, errMsg, now); err != nil {
			logger.Warnf("finish job history: %v", err)
		}
	}

	strat, err := s.strategies.Get(j.Strategy)
	if err != nil {
		finish(model.HistoryFailed, 0, err.Error())
		s.notifier.JobFailed(ctx, j, now, err)
		return 0
	}
	gw, err := s.brokers.Gateway(j.Account)
	if err != nil {
		finish(model.HistoryFailed, 0, err.Error())
		s.notifier.JobFailed(ctx, j, now, err)
		return 0
	}

	signals, err := strat.Compute(ctx, &strategy.Context{
		JobName: j.Name,
		Account: j.Account,
		Market:  j.Market,
		Symbols: j.Symbols,
		Now:     now,
		Gateway: gw,
	})
	if err != nil {
		// 策略异常按任务隔离：不产信号、不标failed、只通知
		finish(model.HistoryFailed, 0, err.Error())
		s.notifier.JobFailed(ctx, j, now, err)
		return 0
	}
	if len(signals) == 0 {
		finish(model.HistorySuccess, 0, "")
		return 0
	}

	ids, err := s.signals.AddMany(ctx, signals)
	if err != nil {
		finish(model.HistoryFailed, 0, err.Error())
		s.notifier.JobFailed(ctx, j, now, err)
		return 0
	}
	finish(model.HistorySuccess, len(signals), "")
	s.notifier.SignalsCreated(ctx, j, len(signals), now)

	if !j.SendImmediately {
		return 0
	}
	// 止损类信号不等下一个市场窗口，写入后当场执行
	stored := make([]model.TradingSignal, 0, len(signals))
	for i, sig := range signals {
		cp := *sig
		cp.ID = ids[i]
		stored = append(stored, cp)
	}
	report := s.exec.ExecuteNow(ctx, j.Market, stored, now)
	s.notifier.ExecutionDone(ctx, report, now)
	return report.Executed
}

// runExecPhase 市场执行阶段。到期触发器按市场去重后并发执行，
// 同一市场一轮只拉一次pending
func (s *Scheduler) runExecPhase(ctx context.Context, now time.Time) int {
	dueMarkets := make(map[string]bool)
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.ExecTrigger == nil {
			continue
		}
		key := "exec:" + j.Name
		if j.ExecTrigger.Due(s.markets[j.Market], now, s.lastRun[key]) {
			s.lastRun[key] = now
			dueMarkets[j.Market] = true
		}
	}
	s.mu.Unlock()
	if len(dueMarkets) == 0 {
		return 0
	}

	names := make([]string, 0, len(dueMarkets))
	for name := range dueMarkets {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed int
	)
	for _, name := range names {
		wg.Add(1)
		go func(m *market.Market) {
			defer wg.Done()
			report := s.exec.Fire(ctx, m, now)
			s.notifier.ExecutionDone(ctx, report, now)
			mu.Lock()
			executed += report.Executed
			mu.Unlock()
		}(s.markets[name])
	}
	wg.Wait()
	return executed
}

// RunJobNow 手动触发一个策略任务（运维入口），绕过触发器判定
func (s *Scheduler) RunJobNow(ctx context.Context, name string, now time.Time) (int, error) {
	for _, j := range s.jobs {
		if j.Name != name {
			continue
		}
		if j.PreTrigger == nil {
			// 纯执行任务：直接执行该市场pending
			report := s.exec.Fire(ctx, s.markets[j.Market], now)
			s.notifier.ExecutionDone(ctx, report, now)
			return report.Executed, nil
		}
		return s.runPreJob(ctx, j, now), nil
	}
	return 0, errors.WithCode(ecode.NotFoundErr, "job %q not found", name)
}
