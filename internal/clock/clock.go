package clock

import (
	"context"
	"sync"
	"time"

	"tickflow/internal/market"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
	"tickflow/pkg/logger"
)

// 模拟时钟：回放环境里唯一的时间源。advance-and-tick在后台逐步
// 推进时间，每步同步等调度tick返回再走下一步，保证第N步的执行
// 全部落地后时间才到N+1步

type state int

const (
	stateIdle state = iota
	stateAdvancing
	stateCancelling
)

// snap对齐允许的步长（分钟）。60及以上的粗步会跨过开收盘，
// 需要在边界处补tick
var allowedStepMinutes = map[int]bool{5: true, 15: true, 30: true, 60: true, 120: true, 180: true}

// Boundary 需要保证不被跨过的市场事件时刻（开盘/收盘，市场本地时间）
type Boundary struct {
	Name     string
	Timezone string
	HHMM     string // "09:30"
	loc      *time.Location
	hour     int
	minute   int
}

func NewBoundary(name, timezone, hhmm string) (*Boundary, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, err
		}
	}
	h, m, err := market.ParseHHMM(hhmm)
	if err != nil {
		return nil, err
	}
	return &Boundary{Name: name, Timezone: timezone, HHMM: hhmm, loc: loc, hour: h, minute: m}, nil
}

// instantWithin 边界在(from, to]内的具体时刻，没有则zero time
func (b *Boundary) instantWithin(from, to time.Time) time.Time {
	// 区间最多跨一天，按from与to两天的本地日期各试一次
	for _, day := range []time.Time{from.In(b.loc), to.In(b.loc)} {
		at := time.Date(day.Year(), day.Month(), day.Day(), b.hour, b.minute, 0, 0, b.loc).UTC()
		if at.After(from) && !at.After(to) {
			return at
		}
	}
	return time.Time{}
}

// AdvanceRequest 推进请求。带Steps时按给定单位重复Steps次；
// 不带Steps时 {unit: N} 约定为N步、每步1个单位
type AdvanceRequest struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`

	Steps          int  `json:"steps"`
	SnapToBoundary bool `json:"snap_to_boundary"`
}

func (r *AdvanceRequest) delta() time.Duration {
	return time.Duration(r.Days)*24*time.Hour +
		time.Duration(r.Hours)*time.Hour +
		time.Duration(r.Minutes)*time.Minute +
		time.Duration(r.Seconds)*time.Second
}

// unit 取第一个非零时间字段（days > hours > minutes > seconds），
// 多个字段同时给只认最大的那个单位
func (r *AdvanceRequest) unit() (time.Duration, int) {
	switch {
	case r.Days > 0:
		return 24 * time.Hour, r.Days
	case r.Hours > 0:
		return time.Hour, r.Hours
	case r.Minutes > 0:
		return time.Minute, r.Minutes
	case r.Seconds > 0:
		return time.Second, r.Seconds
	}
	return 0, 0
}

// Status advance-and-tick进度快照，可在推进中随时轮询
type Status struct {
	Running       bool   `json:"running"`
	StepsDone     int    `json:"steps_done"`
	StepsTotal    int    `json:"steps_total"`
	ExecutedTotal int    `json:"executed_total"`
	Cancelled     bool   `json:"cancelled"`
	Error         string `json:"error"`
	Now           string `json:"now"`
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
	st  state

	tickers     []TickCaller
	stepTimeout time.Duration
	boundaries  []*Boundary
	endDate     time.Time // 零值表示不设上限

	// 单例推进任务的进度，Idle时保留上一轮结果供查看
	stepsDone     int
	stepsTotal    int
	executedTotal int
	cancelled     bool
	lastErr       string
}

func New(initial time.Time, tickers []TickCaller, stepTimeout time.Duration) *Clock {
	if stepTimeout <= 0 {
		stepTimeout = 60 * time.Second
	}
	return &Clock{
		now:         initial.UTC(),
		tickers:     tickers,
		stepTimeout: stepTimeout,
	}
}

// SetBoundaries 配置开收盘边界（snap_to_boundary时生效）
func (c *Clock) SetBoundaries(bs []*Boundary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundaries = bs
}

// SetEndDate 推进上限，到达后停止不再步进
func (c *Clock) SetEndDate(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endDate = t.UTC()
}

// Configure 运行期换tick目标与超时。推进中拒绝
func (c *Clock) Configure(tickers []TickCaller, stepTimeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateIdle {
		return errors.WithCode(ecode.ConflictErr, "advance-and-tick in progress")
	}
	if len(tickers) > 0 {
		c.tickers = tickers
	}
	if stepTimeout > 0 {
		c.stepTimeout = stepTimeout
	}
	return nil
}

// Config 当前tick目标与每步超时，/config GET用
func (c *Clock) Config() ([]string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	targets := make([]string, 0, len(c.tickers))
	for _, t := range c.tickers {
		if ht, ok := t.(interface{ Target() string }); ok {
			targets = append(targets, ht.Target())
			continue
		}
		targets = append(targets, "local")
	}
	return targets, c.stepTimeout
}

// Now 当前模拟时间（UTC）
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set 设置绝对时间，仅Idle可用
func (c *Clock) Set(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateIdle {
		return errors.WithCode(ecode.ConflictErr, "advance-and-tick in progress")
	}
	c.now = t.UTC()
	return nil
}

// Advance 同步推进一个delta，不触发tick，仅Idle可用
func (c *Clock) Advance(req *AdvanceRequest) (time.Time, error) {
	d := req.delta()
	if d <= 0 {
		return time.Time{}, errors.WithCode(ecode.ValidateErr, "advance needs a positive delta")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateIdle {
		return time.Time{}, errors.WithCode(ecode.ConflictErr, "advance-and-tick in progress")
	}
	c.now = c.now.Add(d)
	return c.now, nil
}

// AdvanceAndTick 启动后台推进。非Idle直接冲突，不排队。
// 返回本次的总步数。{unit: N}不带steps表示N步、每步1个单位；
// 带steps则步长为unit×值、重复steps次
func (c *Clock) AdvanceAndTick(req *AdvanceRequest) (int, error) {
	unit, value := req.unit()
	if value < 1 {
		return 0, errors.WithCode(ecode.ValidateErr, "advance-and-tick needs one of days/hours/minutes/seconds >= 1")
	}
	var step time.Duration
	var steps int
	if req.Steps > 0 {
		step = time.Duration(value) * unit
		steps = req.Steps
	} else {
		step = unit
		steps = value
	}
	// snap对齐要求亚小时步长落在整点分割上
	if req.SnapToBoundary && step < time.Hour && !allowedStepMinutes[int(step/time.Minute)] {
		return 0, errors.WithCode(ecode.ValidateErr, "snap_to_boundary needs a sub-hour step in {5,15,30} minutes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateIdle {
		return 0, errors.WithCode(ecode.ConflictErr, "advance-and-tick already running")
	}
	c.st = stateAdvancing
	c.stepsDone = 0
	c.stepsTotal = steps
	c.executedTotal = 0
	c.cancelled = false
	c.lastErr = ""

	start := c.now
	if req.SnapToBoundary {
		// 起点对齐到步长边界，后续tick都落在整点上
		start = snapDown(start, step)
		c.now = start
	}

	go c.run(start, step, steps, req.SnapToBoundary)
	return steps, nil
}

// run 推进主循环。严格串行：上一步tick返回前绝不动时间
func (c *Clock) run(start time.Time, step time.Duration, steps int, snap bool) {
	cur := start
	for i := 0; i < steps; i++ {
		// 取消只在步界检查，进行中的一步跑完
		c.mu.Lock()
		if c.st == stateCancelling {
			c.cancelled = true
			c.mu.Unlock()
			break
		}
		end := c.endDate
		boundaries := c.boundaries
		c.mu.Unlock()

		next := cur.Add(step)
		if !end.IsZero() && next.After(end) {
			break
		}

		// 粗步会整段跨过开收盘，先在边界时刻补一拍
		if snap && step >= time.Hour {
			for _, b := range boundaries {
				at := b.instantWithin(cur, next)
				if at.IsZero() || at.Equal(next) {
					continue
				}
				if err := c.tickAt(at); err != nil {
					c.fail(err)
					return
				}
			}
		}

		if err := c.tickAt(next); err != nil {
			c.fail(err)
			return
		}
		cur = next

		c.mu.Lock()
		c.stepsDone++
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.st = stateIdle
	c.mu.Unlock()
}

// tickAt 把时间推到at并同步通知所有tick目标，超时即失败
func (c *Clock) tickAt(at time.Time) error {
	c.mu.Lock()
	c.now = at
	tickers := c.tickers
	timeout := c.stepTimeout
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, t := range tickers {
		executed, err := t.Tick(ctx, at)
		if err != nil {
			return errors.Wrap(err, ecode.TimeoutErr, "tick at "+at.Format(time.RFC3339))
		}
		c.mu.Lock()
		c.executedTotal += executed
		c.mu.Unlock()
	}
	return nil
}

// fail tick失败：停止步进，回到Idle等人工处理。出错的那一步
// 计入steps_done，进度保留供排查
func (c *Clock) fail(err error) {
	logger.Error("advance-and-tick stopped", logger.Pair("error", err.Error()))
	c.mu.Lock()
	c.stepsDone++
	c.lastErr = err.Error()
	c.st = stateIdle
	c.mu.Unlock()
}

// Cancel 请求取消。Idle无效果；不打断进行中的一步
func (c *Clock) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateAdvancing {
		return false
	}
	c.st = stateCancelling
	return true
}

// Status 进度快照
func (c *Clock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:       c.st != stateIdle,
		StepsDone:     c.stepsDone,
		StepsTotal:    c.stepsTotal,
		ExecutedTotal: c.executedTotal,
		Cancelled:     c.cancelled,
		Error:         c.lastErr,
		Now:           c.now.Format(time.RFC3339),
	}
}

// snapDown 向下对齐到step的整数倍（按UTC自午夜起算）
func snapDown(t time.Time, step time.Duration) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := t.Sub(midnight)
	return midnight.Add(offset - offset%step)
}
