package scheduler

import (
	"testing"
	"time"

	"tickflow/internal/market"
)

func usMarket(t *testing.T) *market.Market {
	t.Helper()
	m, err := market.New("us", "America/New_York", "09:30", "16:00", 60, []string{"2026-07-03"})
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

func TestCronMatch(t *testing.T) {
	cases := []struct {
		expr  string
		at    time.Time
		match bool
	}{
		{"0 9 * * *", time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC), true},
		{"0 9 * * *", time.Date(2026, 8, 3, 9, 1, 0, 0, time.UTC), false},
		{"*/15 * * * *", time.Date(2026, 8, 3, 9, 45, 0, 0, time.UTC), true},
		{"*/15 * * * *", time.Date(2026, 8, 3, 9, 50, 0, 0, time.UTC), false},
		{"30 9 * * 1-5", time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC), true},  // 周一
		{"30 9 * * 1-5", time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC), false}, // 周日
		{"0 0 1 * *", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, c := range cases {
		spec, err := parseCron(c.expr)
		if err != nil {
			t.Fatalf("parse %q: %v", c.expr, err)
		}
		if got := spec.Match(c.at); got != c.match {
			t.Errorf("%q at %v: got %v, want %v", c.expr, c.at, got, c.match)
		}
	}
}

func TestCronParseErrors(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "a * * * *", "*/0 * * * *"} {
		if _, err := parseCron(expr); err == nil {
			t.Errorf("parse %q: expected error", expr)
		}
	}
}

func TestPreMarketDue(t *testing.T) {
	m := usMarket(t)
	trig := &TriggerSpec{Kind: TriggerPreMarket, Minutes: 30}

	// ET 09:00 = 13:00 UTC
	at := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC)
	if !trig.Due(m, at, time.Time{}) {
		t.Error("should fire 30min before open")
	}
	if trig.Due(m, at.Add(time.Minute), time.Time{}) {
		t.Error("should not fire one minute later")
	}
	// 同一分钟重复tick不再触发
	if trig.Due(m, at.Add(10*time.Second), at) {
		t.Error("same minute should be deduplicated")
	}
	// 假期不触发
	holiday := time.Date(2026, 7, 3, 13, 0, 0, 0, time.UTC)
	if trig.Due(m, holiday, time.Time{}) {
		t.Error("should not fire on a holiday")
	}
}

func TestIntervalDue(t *testing.T) {
	m := usMarket(t)
	trig := &TriggerSpec{Kind: TriggerInterval, Minutes: 15}

	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	if !trig.Due(m, start, time.Time{}) {
		t.Error("first evaluation should fire")
	}
	if trig.Due(m, start.Add(5*time.Minute), start) {
		t.Error("should wait out the interval")
	}
	if !trig.Due(m, start.Add(15*time.Minute), start) {
		t.Error("should fire after the interval elapsed")
	}
}

func TestMarketOpenAndCloseDue(t *testing.T) {
	m := usMarket(t)
	open := &TriggerSpec{Kind: TriggerMarketOpen}
	closeTrig := &TriggerSpec{Kind: TriggerMarketClose}

	openAt := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	closeAt := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC)
	if !open.Due(m, openAt, time.Time{}) {
		t.Error("market_open should fire at the bell")
	}
	if open.Due(m, openAt.Add(time.Minute), time.Time{}) {
		t.Error("market_open fires only at the open minute")
	}
	if !closeTrig.Due(m, closeAt, time.Time{}) {
		t.Error("market_close should fire at the close")
	}
}

func TestOpenBarDue(t *testing.T) {
	m := usMarket(t)
	trig := &TriggerSpec{Kind: TriggerOpenBar, Minutes: 60}

	openAt := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	if !trig.Due(m, openAt, time.Time{}) {
		t.Error("bar 0 should fire at open")
	}
	if !trig.Due(m, openAt.Add(time.Hour), time.Time{}) {
		t.Error("bar 1 should fire an hour after open")
	}
	if trig.Due(m, openAt.Add(30*time.Minute), time.Time{}) {
		t.Error("no bar at half hour offset")
	}
	if trig.Due(m, openAt.Add(-time.Hour), time.Time{}) {
		t.Error("no bars before open")
	}
	afterClose := time.Date(2026, 8, 3, 20, 30, 0, 0, time.UTC)
	if trig.Due(m, afterClose, time.Time{}) {
		t.Error("no bars after close")
	}
}

func TestAtTimeDue(t *testing.T) {
	m := usMarket(t)
	trig := &TriggerSpec{Kind: TriggerAtTime, Time: "10:00"}

	// ET 10:00 = 14:00 UTC
	at := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	if !trig.Due(m, at, time.Time{}) {
		t.Error("at_time should fire at local 10:00")
	}
	if trig.Due(m, at.Add(time.Minute), time.Time{}) {
		t.Error("at_time fires only at the exact minute")
	}
}

func TestTriggerValidate(t *testing.T) {
	bad := []TriggerSpec{
		{Kind: "banana"},
		{Kind: TriggerCron, Cron: "not a cron"},
		{Kind: TriggerInterval, Minutes: 0},
	}
	for _, trig := range bad {
		tr := trig
		if err := tr.Validate(false); err == nil {
			t.Errorf("%+v should fail validation", tr)
		}
	}
	// 种类与阶段不匹配也算配置错误
	if err := (&TriggerSpec{Kind: TriggerMarketOpen}).Validate(false); err == nil {
		t.Error("market_open is not a pre trigger")
	}
	if err := (&TriggerSpec{Kind: TriggerCron, Cron: "* * * * *"}).Validate(true); err == nil {
		t.Error("cron is not an exec trigger")
	}
}
