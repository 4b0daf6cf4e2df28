package memory

import (
	"context"
	"testing"
	"time"

	"tickflow/internal/model"
)

func TestOptimisticStatusTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewSignalStore()
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)

	sig := model.NewOrderSignal("job1", "acct", "us", "AAPL", model.SideBuy, 10, nil, "", now)
	id, err := store.Add(ctx, sig)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := store.UpdateStatusFrom(ctx, id, model.StatusPending, model.StatusSent, nil, "")
	if err != nil || !ok {
		t.Fatalf("pending->sent: ok=%v err=%v", ok, err)
	}
	// 重复认领必须失败：前置状态已不满足
	ok, _ = store.UpdateStatusFrom(ctx, id, model.StatusPending, model.StatusSent, nil, "")
	if ok {
		t.Fatal("double claim must not succeed")
	}

	executedAt := now.Add(time.Minute)
	ok, _ = store.UpdateStatusFrom(ctx, id, model.StatusSent, model.StatusFilled, &executedAt, "")
	if !ok {
		t.Fatal("sent->filled should succeed")
	}
	got, _ := store.Get(ctx, id)
	if got.Status != model.StatusFilled || got.ExecutedAt == nil {
		t.Fatalf("signal = %+v", got)
	}
}

func TestListPendingFilters(t *testing.T) {
	ctx := context.Background()
	store := NewSignalStore()
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)

	early := model.NewOrderSignal("j", "a1", "us", "AAPL", model.SideBuy, 1, nil, "", now.Add(-2*time.Hour))
	late := model.NewOrderSignal("j", "a2", "us", "MSFT", model.SideBuy, 1, nil, "", now.Add(-time.Hour))
	other := model.NewOrderSignal("j", "a1", "crypto", "BTC", model.SideBuy, 1, nil, "", now)
	future := model.NewOrderSignal("j", "a1", "us", "TSLA", model.SideBuy, 1, nil, "", now)
	at := now.Add(time.Hour)
	future.TriggerAt = &at

	for _, s := range []*model.TradingSignal{late, early, other, future} {
		if _, err := store.Add(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	// 市场过滤 + trigger_at未到的不出现，created_at升序
	out, err := store.ListPending(ctx, "", "us", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Symbol != "AAPL" || out[1].Symbol != "MSFT" {
		t.Fatalf("pending = %+v", out)
	}

	// 账户过滤
	out, _ = store.ListPending(ctx, "a2", "us", now)
	if len(out) != 1 || out[0].Symbol != "MSFT" {
		t.Fatalf("pending for a2 = %+v", out)
	}

	// trigger_at到点后可见
	out, _ = store.ListPending(ctx, "", "us", now.Add(2*time.Hour))
	if len(out) != 3 {
		t.Fatalf("pending after trigger_at = %d, want 3", len(out))
	}
}

func TestCancelOnlyPending(t *testing.T) {
	ctx := context.Background()
	store := NewSignalStore()
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)

	sig := model.NewOrderSignal("j", "a", "us", "AAPL", model.SideBuy, 1, nil, "", now)
	id, _ := store.Add(ctx, sig)

	ok, err := store.Cancel(ctx, id)
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	got, _ := store.Get(ctx, id)
	if got.Status != model.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	// 终态不能再取消
	ok, _ = store.Cancel(ctx, id)
	if ok {
		t.Fatal("cancel on terminal signal must fail")
	}
}

func TestListAndCountFilter(t *testing.T) {
	ctx := context.Background()
	store := NewSignalStore()
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)

	a := model.NewOrderSignal("j", "a1", "us", "AAPL", model.SideBuy, 1, nil, "", now)
	b := model.NewRebalanceSignal("j", "a1", "us", "MSFT", map[string]float64{"MSFT": 1}, nil, now)
	if _, err := store.AddMany(ctx, []*model.TradingSignal{a, b}); err != nil {
		t.Fatal(err)
	}
	store.UpdateStatusFrom(ctx, a.ID, model.StatusPending, model.StatusSent, nil, "")

	n, _ := store.Count(ctx, model.SignalFilter{Status: string(model.StatusPending)})
	if n != 1 {
		t.Errorf("pending count = %d", n)
	}
	out, _ := store.List(ctx, model.SignalFilter{Kind: string(model.KindRebalance)})
	if len(out) != 1 || out[0].Symbol != "MSFT" {
		t.Errorf("list = %+v", out)
	}
}

func TestHistoryLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSignalStore()
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)

	id, err := store.AddHistory(ctx, &model.JobHistory{JobName: "job1", TriggerTime: now, Status: model.HistoryRunning})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.FinishHistory(ctx, id, model.HistorySuccess, 2, "", now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	out, _ := store.ListHistories(ctx, "job1", 10)
	if len(out) != 1 || out[0].Status != model.HistorySuccess || out[0].SignalCount != 2 {
		t.Fatalf("histories = %+v", out)
	}
}
