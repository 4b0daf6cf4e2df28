package strategy

import (
	"context"
	"testing"
	"time"

	"tickflow/internal/broker/paper"
	"tickflow/internal/model"
)

func testCtx(gw *paper.Gateway, now time.Time) *Context {
	return &Context{
		JobName: "job1",
		Account: "sim-main",
		Market:  "us",
		Now:     now,
		Gateway: gw,
	}
}

func TestRebalancePerSymbolSignals(t *testing.T) {
	s, err := Build("rebalance", "us-core", map[string]interface{}{
		"weights": map[string]interface{}{"AAPL": 0.5, "MSFT": 0.3},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	signals, err := s.Compute(context.Background(), testCtx(paper.New("sim-main", 1000), now))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("signals = %d, want one per symbol", len(signals))
	}
	// 符号排序稳定
	if signals[0].Symbol != "AAPL" || signals[1].Symbol != "MSFT" {
		t.Errorf("symbols = %s, %s", signals[0].Symbol, signals[1].Symbol)
	}
	for _, sig := range signals {
		if sig.Kind != model.KindRebalance || sig.Status != model.StatusPending {
			t.Errorf("signal = %+v", sig)
		}
		if w := sig.Payload.TargetWeights[sig.Symbol]; w <= 0 {
			t.Errorf("signal %s missing weight", sig.Symbol)
		}
	}
}

func TestRebalanceParamValidation(t *testing.T) {
	cases := []map[string]interface{}{
		{},
		{"weights": map[string]interface{}{"AAPL": "not a number"}},
		{"weights": map[string]interface{}{"AAPL": -0.1}},
		{"weights": map[string]interface{}{"AAPL": 0.8, "MSFT": 0.5}},
	}
	for i, params := range cases {
		if _, err := Build("rebalance", "bad", params); err == nil {
			t.Errorf("case %d should fail", i)
		}
	}
}

func TestBuyHoldEntersOnce(t *testing.T) {
	s, err := Build("buy_hold", "hold-aapl", map[string]interface{}{"symbol": "AAPL", "qty": 10})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	gw := paper.New("sim-main", 10000)
	gw.SetQuote("AAPL", 100, now)

	signals, err := s.Compute(context.Background(), testCtx(gw, now))
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 || signals[0].Payload.Side != model.SideBuy {
		t.Fatalf("signals = %+v, want one buy", signals)
	}

	// 建仓后不再产信号
	if _, err := gw.PlaceOrder(context.Background(), &model.Order{
		Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 10,
	}); err != nil {
		t.Fatal(err)
	}
	signals, err = s.Compute(context.Background(), testCtx(gw, now))
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 0 {
		t.Fatalf("signals = %+v, want none while holding", signals)
	}
}

func TestSmaCrossSignals(t *testing.T) {
	s, err := Build("sma_cross", "sma-aapl", map[string]interface{}{
		"symbol": "AAPL", "fast": 2, "slow": 3, "qty": 5,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	now := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	gw := paper.New("sim-main", 100000)

	feed := func(price float64) []*model.TradingSignal {
		gw.SetQuote("AAPL", price, now)
		signals, err := s.Compute(context.Background(), testCtx(gw, now))
		if err != nil {
			t.Fatalf("compute at %v: %v", price, err)
		}
		now = now.Add(time.Minute)
		return signals
	}

	// 下行段：快线在慢线下方
	for _, p := range []float64{100, 98, 96, 94} {
		if sigs := feed(p); len(sigs) != 0 {
			t.Fatalf("unexpected signal on downtrend: %+v", sigs)
		}
	}
	// 反转拉升触发金叉买入
	var got []*model.TradingSignal
	for _, p := range []float64{99, 104} {
		if sigs := feed(p); len(sigs) > 0 {
			got = sigs
			break
		}
	}
	if len(got) != 1 || got[0].Payload.Side != model.SideBuy {
		t.Fatalf("signals = %+v, want golden-cross buy", got)
	}
}

func TestUnknownStrategyType(t *testing.T) {
	if _, err := Build("does-not-exist", "x", nil); err == nil {
		t.Fatal("unknown type should fail")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	s, err := Build("buy_hold", "hold-msft", map[string]interface{}{"symbol": "MSFT", "qty": 1})
	if err != nil {
		t.Fatal(err)
	}
	r.Register(s)
	if _, err := r.Get("hold-msft"); err != nil {
		t.Errorf("get: %v", err)
	}
	if _, err := r.Get("nope"); err == nil {
		t.Error("missing instance should error")
	}
}
