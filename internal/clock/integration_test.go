package clock

import (
	"context"
	"testing"
	"time"

	"tickflow/internal/broker"
	"tickflow/internal/broker/paper"
	"tickflow/internal/dao/memory"
	"tickflow/internal/market"
	"tickflow/internal/model"
	"tickflow/internal/scheduler"
	"tickflow/internal/strategy"
)

// 时钟直连调度器的回放链路

func replayEnv(t *testing.T) (*scheduler.Scheduler, *memory.SignalStore, *paper.Gateway) {
	t.Helper()
	m, err := market.New("us", "America/New_York", "09:30", "16:00", 0, []string{"2026-07-03"})
	if err != nil {
		t.Fatal(err)
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
		t.Fatal(err)
	}
	strategies.Register(reb)

	jobs := []*scheduler.Job{{
		Name:       "us_core_premarket",
		Strategy:   "us-core",
		Account:    "sim-main",
		Market:     "us",
		PreTrigger: &scheduler.TriggerSpec{Kind: scheduler.TriggerPreMarket, Minutes: 30},
	}}
	exec := scheduler.NewExecEngine(store, brokers, 5*time.Second, false)
	sched, err := scheduler.New(jobs, map[string]*market.Market{"us": m}, brokers, strategies,
		store, store, exec, scheduler.NewNotifier(scheduler.NotifyConfig{}, nil), scheduler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return sched, store, gw
}

// 30分钟步长推进一个交易日早盘：盘前出信号、开盘成交，
// executed_total记两条
func TestReplayMorningSession(t *testing.T) {
	sched, store, gw := replayEnv(t)

	start := time.Date(2026, 8, 3, 12, 30, 0, 0, time.UTC) // ET 08:30
	gw.SetQuote("AAPL", 200, start)
	gw.SetQuote("MSFT", 100, start)

	c := New(start, []TickCaller{TickFunc(sched.Tick)}, 10*time.Second)
	if _, err := c.AdvanceAndTick(&AdvanceRequest{Minutes: 30, Steps: 3}); err != nil {
		t.Fatal(err)
	}
	st := waitIdle(t, c)
	if st.Error != "" || st.StepsDone != 3 {
		t.Fatalf("status = %+v", st)
	}
	if st.ExecutedTotal != 2 {
		t.Fatalf("executed_total = %d, want 2", st.ExecutedTotal)
	}

	filled, _ := store.Count(context.Background(), model.SignalFilter{Status: string(model.StatusFilled)})
	if filled != 2 {
		t.Fatalf("filled = %d", filled)
	}
	positions, _ := gw.GetPositions(context.Background())
	if len(positions) != 2 {
		t.Fatalf("positions = %+v", positions)
	}
}

// 假期整天推进：无执行、单步完成、无错误
func TestReplayHolidaySkips(t *testing.T) {
	sched, store, _ := replayEnv(t)

	start := time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC) // 假期
	c := New(start, []TickCaller{TickFunc(sched.Tick)}, 10*time.Second)
	if _, err := c.AdvanceAndTick(&AdvanceRequest{Days: 1}); err != nil {
		t.Fatal(err)
	}
	st := waitIdle(t, c)
	if st.Error != "" {
		t.Fatalf("error = %s", st.Error)
	}
	if st.StepsDone != 1 {
		t.Errorf("steps_done = %d, want 1", st.StepsDone)
	}
	if st.ExecutedTotal != 0 {
		t.Errorf("executed_total = %d, want 0", st.ExecutedTotal)
	}
	total, _ := store.Count(context.Background(), model.SignalFilter{})
	if total != 0 {
		t.Errorf("signals = %d, want none on a holiday", total)
	}
}
