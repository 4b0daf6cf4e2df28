package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tickflow/internal/market"
)

// 触发器判定：分钟精度。调度tick按分钟推进，同一分钟内重复tick
// 由lastRun挡掉，保证幂等

// cronSpec 五段cron（分 时 日 月 周），只做匹配不做预测。
// 支持 * 、*/n 、逗号列表、区间
type cronSpec struct {
	minute, hour, dom, month, dow map[int]bool
}

func parseCron(expr string) (*cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	sets := make([]map[int]bool, 5)
	for i, f := range fields {
		set, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron %q: field %d: %w", expr, i+1, err)
		}
		sets[i] = set
	}
	return &cronSpec{minute: sets[0], hour: sets[1], dom: sets[2], month: sets[3], dow: sets[4]}, nil
}

func parseCronField(field string, lo, hi int) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		step := 1
		if idx := strings.Index(part, "/"); idx >= 0 {
			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("bad step in %q", part)
			}
			step = s
			part = part[:idx]
		}
		start, end := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			seg := strings.SplitN(part, "-", 2)
			var err1, err2 error
			start, err1 = strconv.Atoi(seg[0])
			end, err2 = strconv.Atoi(seg[1])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("bad value %q", part)
			}
			start, end = v, v
		}
		if start < lo || end > hi || start > end {
			return nil, fmt.Errorf("out of range %q", part)
		}
		for v := start; v <= end; v += step {
			set[v] = true
		}
	}
	return set, nil
}

func (c *cronSpec) Match(t time.Time) bool {
	if !c.minute[t.Minute()] || !c.hour[t.Hour()] || !c.month[int(t.Month())] {
		return false
	}
	// 日与周按cron惯例：两者都受限时任一匹配即可
	domAll := len(c.dom) == 31
	dowAll := len(c.dow) == 7
	domOk := c.dom[t.Day()]
	dowOk := c.dow[int(t.Weekday())]
	if !domAll && !dowAll {
		return domOk || dowOk
	}
	return domOk && dowOk
}

// Due 判断触发器在now是否到期。lastRun是该任务上次触发时间，
// 用于interval间隔与同分钟去重
func (t *TriggerSpec) Due(m *market.Market, now, lastRun time.Time) bool {
	// 同一分钟只触发一次
	if market.MatchesMinute(now, lastRun) {
		return false
	}
	switch t.Kind {
	case TriggerCron:
		spec, err := parseCron(t.Cron)
		if err != nil {
			return false
		}
		return spec.Match(now.In(m.Location()))

	case TriggerInterval:
		if lastRun.IsZero() {
			return true
		}
		return now.Sub(lastRun) >= time.Duration(t.Minutes)*time.Minute

	case TriggerPreMarket:
		if !m.IsTradingDay(now) {
			return false
		}
		return market.MatchesMinute(now, m.OpenAt(now).Add(-time.Duration(t.Minutes)*time.Minute))

	case TriggerPostMarket:
		if !m.IsTradingDay(now) {
			return false
		}
		return market.MatchesMinute(now, m.CloseAt(now).Add(time.Duration(t.Minutes)*time.Minute))

	case TriggerMarketOpen:
		if !m.IsTradingDay(now) {
			return false
		}
		return market.MatchesMinute(now, m.OpenAt(now))

	case TriggerMarketClose:
		if !m.IsTradingDay(now) {
			return false
		}
		return market.MatchesMinute(now, m.CloseAt(now))

	case TriggerOpenBar:
		if !m.IsTradingDay(now) {
			return false
		}
		openAt, closeAt := m.OpenAt(now), m.CloseAt(now)
		if openAt.IsZero() {
			return false
		}
		minute := now.UTC().Truncate(time.Minute)
		if minute.Before(openAt) || (!closeAt.IsZero() && minute.After(closeAt)) {
			return false
		}
		bar := t.Minutes
		if bar <= 0 {
			bar = m.OpenBarMinutes
		}
		if bar <= 0 {
			bar = 60
		}
		elapsed := int(minute.Sub(openAt).Minutes())
		return elapsed%bar == 0

	case TriggerAtTime:
		if !m.IsTradingDay(now) {
			return false
		}
		h, mi, err := market.ParseHHMM(t.Time)
		if err != nil {
			return false
		}
		local := now.In(m.Location())
		return local.Hour() == h && local.Minute() == mi
	}
	return false
}
