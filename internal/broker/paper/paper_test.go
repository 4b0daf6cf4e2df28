package paper

import (
	"context"
	"testing"
	"time"

	"tickflow/internal/model"
)

func TestBuyAndSellFlow(t *testing.T) {
	ctx := context.Background()
	gw := New("sim-main", 10000)
	now := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	gw.SetQuote("AAPL", 100, now)

	resp, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 50})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if resp.State != model.OrderFilled || resp.OrderID == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if gw.Cash() != 5000 {
		t.Errorf("cash = %v, want 5000", gw.Cash())
	}

	info, err := gw.GetAccountInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Equity != 10000 {
		t.Errorf("equity = %v, want 10000", info.Equity)
	}

	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideSell, Quantity: 50}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if gw.Cash() != 10000 {
		t.Errorf("cash = %v after round trip", gw.Cash())
	}
	positions, _ := gw.GetPositions(ctx)
	if len(positions) != 0 {
		t.Errorf("positions = %+v, want flat", positions)
	}
}

func TestOrderRejections(t *testing.T) {
	ctx := context.Background()
	gw := New("sim-main", 100)
	now := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	gw.SetQuote("AAPL", 100, now)

	// 现金不足
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 2}); err == nil {
		t.Error("buy beyond cash should be rejected")
	}
	// 无持仓卖出
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideSell, Quantity: 1}); err == nil {
		t.Error("naked sell should be rejected")
	}
	// 无行情
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "TSLA", Side: model.SideBuy, Quantity: 1}); err == nil {
		t.Error("no quote should be rejected")
	}
	// 非法数量
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 0}); err == nil {
		t.Error("zero quantity should be rejected")
	}
	// 注入拒单
	gw.RejectSymbol("AAPL", "halted")
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 1}); err == nil {
		t.Error("injected rejection should fail the order")
	}
	gw.RejectSymbol("AAPL", "")
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 1}); err != nil {
		t.Errorf("after clearing rejection: %v", err)
	}
}

func TestLimitPriceUsed(t *testing.T) {
	ctx := context.Background()
	gw := New("sim-main", 1000)
	now := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	gw.SetQuote("AAPL", 100, now)

	limit := 90.0
	if _, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 10, Price: &limit}); err != nil {
		t.Fatalf("limit buy: %v", err)
	}
	if gw.Cash() != 100 {
		t.Errorf("cash = %v, limit price should be used", gw.Cash())
	}
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	gw := New("sim-main", 1000)
	now := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	gw.SetQuote("AAPL", 100, now)

	resp, err := gw.PlaceOrder(ctx, &model.Order{Account: "sim-main", Symbol: "AAPL", Side: model.SideBuy, Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	// 纸面单即时成交，撤单只会失败
	if err := gw.CancelOrder(ctx, resp.OrderID); err == nil {
		t.Error("cancelling a filled order should fail")
	}
	if err := gw.CancelOrder(ctx, "no-such-order"); err == nil {
		t.Error("unknown order should fail")
	}
}
