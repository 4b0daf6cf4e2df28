package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tickflow/internal/consts"
)

// 市场模型：时区、开收盘时刻、假期。触发器用它把
// market_open / pre_market 等换算为具体时刻

type Market struct {
	Name           string
	Timezone       string // 如 America/New_York，空表示UTC（24/7市场）
	OpenTime       string // "09:30"，空表示无固定开盘（如加密货币）
	CloseTime      string // "16:00"
	OpenBarMinutes int    // open_bar 触发间隔
	Holidays       map[string]bool // 本地日期 YYYY-MM-DD

	loc *time.Location
}

// New 构建市场并解析时区。时区非法视为配置错误
func New(name, timezone, openTime, closeTime string, barMinutes int, holidays []string) (*Market, error) {
	m := &Market{
		Name:           name,
		Timezone:       timezone,
		OpenTime:       openTime,
		CloseTime:      closeTime,
		OpenBarMinutes: barMinutes,
		Holidays:       make(map[string]bool, len(holidays)),
	}
	for _, h := range holidays {
		m.Holidays[h] = true
	}
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("market %s: invalid timezone %q: %w", name, timezone, err)
		}
	}
	if openTime != "" {
		if _, _, err := ParseHHMM(openTime); err != nil {
			return nil, fmt.Errorf("market %s: invalid open_time %q: %w", name, openTime, err)
		}
	}
	if closeTime != "" {
		if _, _, err := ParseHHMM(closeTime); err != nil {
			return nil, fmt.Errorf("market %s: invalid close_time %q: %w", name, closeTime, err)
		}
	}
	m.loc = loc
	return m, nil
}

// Location 市场时区
func (m *Market) Location() *time.Location {
	if m.loc == nil {
		return time.UTC
	}
	return m.loc
}

// IsTradingDay 是否交易日（非周末且非假期）。无固定开盘时间的市场全年可交易
func (m *Market) IsTradingDay(now time.Time) bool {
	if m.OpenTime == "" {
		return true
	}
	local := now.In(m.Location())
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !m.Holidays[local.Format(consts.DateLayout)]
}

// OpenAt 当天开盘时刻（UTC）。无固定开盘返回zero time
func (m *Market) OpenAt(now time.Time) time.Time {
	return m.atLocalTime(now, m.OpenTime)
}

// CloseAt 当天收盘时刻（UTC）
func (m *Market) CloseAt(now time.Time) time.Time {
	return m.atLocalTime(now, m.CloseTime)
}

func (m *Market) atLocalTime(now time.Time, hhmm string) time.Time {
	if hhmm == "" {
		return time.Time{}
	}
	h, mi, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}
	}
	local := now.In(m.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), h, mi, 0, 0, m.Location()).UTC()
}

// MatchesMinute 两个时刻是否落在同一分钟（触发器按分钟精度比较）
func MatchesMinute(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.UTC().Truncate(time.Minute).Equal(b.UTC().Truncate(time.Minute))
}

// ParseHHMM 解析 "09:30" / "9:30"
func ParseHHMM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	mi, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if h < 0 || h > 23 || mi < 0 || mi > 59 {
		return 0, 0, fmt.Errorf("out of range: %q", s)
	}
	return h, mi, nil
}
