package market

import (
	"testing"
	"time"
)

func newUS(t *testing.T) *Market {
	t.Helper()
	m, err := New("us", "America/New_York", "09:30", "16:00", 60, []string{"2026-07-03"})
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

func TestIsTradingDay(t *testing.T) {
	m := newUS(t)

	// 2026-08-03 是周一
	monday := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	if !m.IsTradingDay(monday) {
		t.Error("monday should be a trading day")
	}
	saturday := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)
	if m.IsTradingDay(saturday) {
		t.Error("saturday should not be a trading day")
	}
	holiday := time.Date(2026, 7, 3, 14, 0, 0, 0, time.UTC)
	if m.IsTradingDay(holiday) {
		t.Error("holiday should not be a trading day")
	}
}

func TestAlwaysOpenMarket(t *testing.T) {
	m, err := New("crypto", "", "", "", 0, nil)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	sunday := time.Date(2026, 8, 2, 3, 0, 0, 0, time.UTC)
	if !m.IsTradingDay(sunday) {
		t.Error("24/7 market should always trade")
	}
	if !m.OpenAt(sunday).IsZero() {
		t.Error("no fixed open expected")
	}
}

func TestOpenCloseInstants(t *testing.T) {
	m := newUS(t)
	// 夏令时：ET 09:30 = 13:30 UTC
	day := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	open := m.OpenAt(day)
	want := time.Date(2026, 8, 3, 13, 30, 0, 0, time.UTC)
	if !open.Equal(want) {
		t.Errorf("open = %v, want %v", open, want)
	}
	closeAt := m.CloseAt(day)
	wantClose := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC)
	if !closeAt.Equal(wantClose) {
		t.Errorf("close = %v, want %v", closeAt, wantClose)
	}
}

func TestMatchesMinute(t *testing.T) {
	a := time.Date(2026, 8, 3, 13, 30, 5, 0, time.UTC)
	b := time.Date(2026, 8, 3, 13, 30, 59, 0, time.UTC)
	if !MatchesMinute(a, b) {
		t.Error("same minute should match")
	}
	c := time.Date(2026, 8, 3, 13, 31, 0, 0, time.UTC)
	if MatchesMinute(a, c) {
		t.Error("different minute should not match")
	}
	if MatchesMinute(a, time.Time{}) {
		t.Error("zero time never matches")
	}
}

func TestBadConfig(t *testing.T) {
	if _, err := New("x", "Mars/Olympus", "09:30", "16:00", 0, nil); err == nil {
		t.Error("invalid timezone should fail")
	}
	if _, err := New("x", "", "25:00", "", 0, nil); err == nil {
		t.Error("invalid open_time should fail")
	}
}
