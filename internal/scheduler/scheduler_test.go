package scheduler

import (
	"context"
	"testing"
	"time"

	"tickflow/internal/broker"
	"tickflow/internal/broker/paper"
	"tickflow/internal/dao/memory"
	"tickflow/internal/market"
	"tickflow/internal/model"
	"tickflow/internal/strategy"
)

type schedEnv struct {
	sched *Scheduler
	store *memory.SignalStore
	gw    *paper.Gateway
}

// 失败策略，验证任务间隔离
type failingStrategy struct{ name string }

func (s *failingStrategy) Name() string { return s.name }
func (s *failingStrategy) Compute(context.Context, *strategy.Context) ([]*model.TradingSignal, error) {
	return nil, context.DeadlineExceeded
}

func newSchedEnv(t *testing.T, jobs []*Job) *schedEnv {
	t.Helper()
	m, err := market.New("us", "America/New_York", "09:30", "16:00", 60, []string{"2026-07-03"})
	if err != nil {
		t.Fatalf("new market: %v", err)
	}

	store := memory.NewSignalStore()
	gw := paper.New("sim-main", 100000)
	brokers := broker.NewRegistry()
	brokers.Register(model.Account{Name: "sim-main", BrokerType: model.BrokerPaper}, gw)

	strategies := strategy.NewRegistry()
	reb, err := strategy.Build("rebalance", "us-core", map[string]interface{}{
		"weights": map[string]interface{}{"AAPL": 0.5, "MSFT": 0.5},
	})
	if err != nil {
		t.Fatalf("build strategy: %v", err)
	}
	strategies.Register(reb)
	strategies.Register(&failingStrategy{name: "broken"})

	exec := NewExecEngine(store, brokers, 5*time.Second, false)
	notifier := NewNotifier(NotifyConfig{}, nil)

	sched, err := New(jobs, map[string]*market.Market{"us": m}, brokers, strategies,
		store, store, exec, notifier, Options{MaxWorkers: 2})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return &schedEnv{sched: sched, store: store, gw: gw}
}

func preMarketJob() *Job {
	return &Job{
		Name:       "us_core_premarket",
		Strategy:   "us-core",
		Account:    "sim-main",
		Market:     "us",
		PreTrigger: &TriggerSpec{Kind: TriggerPreMarket, Minutes: 30},
	}
}

// 盘前出信号、开盘执行的完整链路：
// 09:00跑策略→信号pending；09:30开盘→pending→sent→filled
func TestPreMarketToOpenFlow(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, []*Job{preMarketJob()})

	preTime := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)  // ET 09:00
	openTime := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC) // ET 09:30
	env.gw.SetQuote("AAPL", 200, preTime)
	env.gw.SetQuote("MSFT", 100, preTime)

	executed, err := env.sched.Tick(ctx, preTime)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if executed != 0 {
		t.Fatalf("executed = %d at pre-market, want 0", executed)
	}

	pending, _ := env.store.ListPending(ctx, "", "us", preTime)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	for _, sig := range pending {
		if sig.Status != model.StatusPending {
			t.Errorf("signal status = %s before market open", sig.Status)
		}
	}

	executed, err = env.sched.Tick(ctx, openTime)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if executed != 2 {
		t.Fatalf("executed = %d at open, want 2", executed)
	}
	for _, sig := range pending {
		got, _ := env.store.Get(ctx, sig.ID)
		if got.Status != model.StatusFilled {
			t.Errorf("signal %d status = %s, want filled", sig.ID, got.Status)
		}
	}

	positions, _ := env.gw.GetPositions(ctx)
	bySymbol := map[string]float64{}
	for _, p := range positions {
		bySymbol[p.Symbol] = p.Quantity
	}
	if bySymbol["AAPL"] != 250 || bySymbol["MSFT"] != 500 {
		t.Errorf("positions = %v, want AAPL 250 / MSFT 500", bySymbol)
	}
}

// 同一now重复tick：触发器去重+pending已清空，零新增执行
func TestTickIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, []*Job{preMarketJob()})
	preTime := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	env.gw.SetQuote("AAPL", 200, preTime)
	env.gw.SetQuote("MSFT", 100, preTime)

	if _, err := env.sched.Tick(ctx, preTime); err != nil {
		t.Fatal(err)
	}
	before, _ := env.store.Count(ctx, model.SignalFilter{})

	if _, err := env.sched.Tick(ctx, preTime); err != nil {
		t.Fatal(err)
	}
	after, _ := env.store.Count(ctx, model.SignalFilter{})
	if before != after {
		t.Fatalf("signal count %d -> %d, second tick must not create more", before, after)
	}
}

// 假期开盘时刻：不触发也不报错
func TestHolidayNoOp(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, []*Job{preMarketJob()})

	holidayOpen := time.Date(2026, 7, 3, 13, 30, 0, 0, time.UTC)
	executed, err := env.sched.Tick(ctx, holidayOpen)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if executed != 0 {
		t.Fatalf("executed = %d on a holiday, want 0", executed)
	}
	total, _ := env.store.Count(ctx, model.SignalFilter{})
	if total != 0 {
		t.Fatalf("signals created on a holiday: %d", total)
	}
}

// send_immediately：信号写入后同一tick内直接执行，不等开盘
func TestSendImmediately(t *testing.T) {
	ctx := context.Background()
	job := preMarketJob()
	job.SendImmediately = true
	env := newSchedEnv(t, []*Job{job})

	preTime := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	env.gw.SetQuote("AAPL", 200, preTime)
	env.gw.SetQuote("MSFT", 100, preTime)

	executed, err := env.sched.Tick(ctx, preTime)
	if err != nil {
		t.Fatal(err)
	}
	if executed != 2 {
		t.Fatalf("executed = %d, want 2 in the same tick", executed)
	}
	pending, _ := env.store.ListPending(ctx, "", "us", preTime)
	if len(pending) != 0 {
		t.Fatalf("pending = %d after immediate send", len(pending))
	}
}

// 一个任务的策略崩了，同tick其他任务照常产信号
func TestStrategyFailureIsolated(t *testing.T) {
	ctx := context.Background()
	broken := &Job{
		Name:       "broken_job",
		Strategy:   "broken",
		Account:    "sim-main",
		Market:     "us",
		PreTrigger: &TriggerSpec{Kind: TriggerPreMarket, Minutes: 30},
	}
	env := newSchedEnv(t, []*Job{broken, preMarketJob()})

	preTime := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	env.gw.SetQuote("AAPL", 200, preTime)
	env.gw.SetQuote("MSFT", 100, preTime)

	if _, err := env.sched.Tick(ctx, preTime); err != nil {
		t.Fatal(err)
	}
	pending, _ := env.store.ListPending(ctx, "", "us", preTime)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, healthy job should be unaffected", len(pending))
	}

	histories, _ := env.store.ListHistories(ctx, "broken_job", 10)
	if len(histories) != 1 || histories[0].Status != model.HistoryFailed {
		t.Fatalf("histories = %+v, want one failed record", histories)
	}
}

// 手动触发绕过触发器判定
func TestRunJobNow(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, []*Job{preMarketJob()})

	anyTime := time.Date(2026, 8, 3, 11, 0, 0, 0, time.UTC)
	env.gw.SetQuote("AAPL", 200, anyTime)
	env.gw.SetQuote("MSFT", 100, anyTime)

	if _, err := env.sched.RunJobNow(ctx, "us_core_premarket", anyTime); err != nil {
		t.Fatalf("run job now: %v", err)
	}
	pending, _ := env.store.ListPending(ctx, "", "us", anyTime)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if _, err := env.sched.RunJobNow(ctx, "no_such_job", anyTime); err == nil {
		t.Error("unknown job should error")
	}
}

// 自动注入的市场执行任务存在
func TestInjectedMarketJobs(t *testing.T) {
	env := newSchedEnv(t, []*Job{preMarketJob()})
	names := map[string]bool{}
	for _, j := range env.sched.Jobs() {
		names[j.Name] = true
	}
	for _, want := range []string{"exec_us_open", "exec_us_close", "exec_us_bar"} {
		if !names[want] {
			t.Errorf("missing injected job %s", want)
		}
	}
}

// 配置校验失败拒绝启动
func TestConfigErrorsRejected(t *testing.T) {
	bad := []*Job{{
		Name:       "bad",
		Strategy:   "us-core",
		Account:    "sim-main",
		Market:     "us",
		PreTrigger: &TriggerSpec{Kind: TriggerCron, Cron: "nope"},
	}}
	m, _ := market.New("us", "America/New_York", "09:30", "16:00", 60, nil)
	store := memory.NewSignalStore()
	brokers := broker.NewRegistry()
	strategies := strategy.NewRegistry()
	exec := NewExecEngine(store, brokers, time.Second, false)
	if _, err := New(bad, map[string]*market.Market{"us": m}, brokers, strategies,
		store, store, exec, NewNotifier(NotifyConfig{}, nil), Options{}); err == nil {
		t.Fatal("invalid cron must reject startup")
	}
}
