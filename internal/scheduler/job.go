package scheduler

import (
	"fmt"

	"tickflow/internal/market"
)

// 任务定义：策略+账户+市场+触发器的静态组合，配置加载后不可变

const (
	// 预执行触发器：决定何时跑策略
	TriggerCron       = "cron"
	TriggerInterval   = "interval"
	TriggerPreMarket  = "pre_market"
	TriggerPostMarket = "post_market"

	// 市场执行触发器：决定何时把pending信号变成订单
	TriggerMarketOpen  = "market_open"
	TriggerMarketClose = "market_close"
	TriggerOpenBar     = "open_bar"
	TriggerAtTime      = "at_time"
)

// TriggerSpec 触发器定义。字段按Kind取用：
// cron用Cron；interval/open_bar用Minutes；pre/post_market用Minutes做偏移；
// at_time用Time（市场本地HH:MM）
type TriggerSpec struct {
	Kind    string `yaml:"kind"`
	Cron    string `yaml:"cron,omitempty"`
	Minutes int    `yaml:"minutes,omitempty"`
	Time    string `yaml:"time,omitempty"`
}

// Validate 加载期校验，失败属于配置错误，引擎不得启动
func (t *TriggerSpec) Validate(isExec bool) error {
	switch t.Kind {
	case TriggerCron:
		if isExec {
			return fmt.Errorf("cron is a pre trigger, not an exec trigger")
		}
		if _, err := parseCron(t.Cron); err != nil {
			return err
		}
	case TriggerInterval:
		if isExec {
			return fmt.Errorf("interval is a pre trigger, not an exec trigger")
		}
		if t.Minutes <= 0 {
			return fmt.Errorf("interval trigger needs minutes > 0")
		}
	case TriggerPreMarket, TriggerPostMarket:
		if isExec {
			return fmt.Errorf("%s is a pre trigger, not an exec trigger", t.Kind)
		}
		if t.Minutes < 0 {
			return fmt.Errorf("%s offset minutes must be >= 0", t.Kind)
		}
	case TriggerMarketOpen, TriggerMarketClose:
		if !isExec {
			return fmt.Errorf("%s is an exec trigger, not a pre trigger", t.Kind)
		}
	case TriggerOpenBar:
		if !isExec {
			return fmt.Errorf("open_bar is an exec trigger, not a pre trigger")
		}
	case TriggerAtTime:
		if !isExec {
			return fmt.Errorf("at_time is an exec trigger, not a pre trigger")
		}
		if _, _, err := market.ParseHHMM(t.Time); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
	return nil
}

// Job 调度任务。PreTrigger为空表示纯执行任务（只消费pending信号）
type Job struct {
	Name            string
	Strategy        string
	Account         string
	Market          string
	Symbols         []string
	PreTrigger      *TriggerSpec
	ExecTrigger     *TriggerSpec
	SendImmediately bool
	NotifyOnFailure bool
	NotifyOnSignal  bool
}

func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job missing name")
	}
	if j.Market == "" {
		return fmt.Errorf("job %s: missing market", j.Name)
	}
	if j.PreTrigger == nil && j.ExecTrigger == nil {
		return fmt.Errorf("job %s: needs at least one trigger", j.Name)
	}
	if j.PreTrigger != nil {
		if j.Strategy == "" {
			return fmt.Errorf("job %s: pre trigger needs a strategy", j.Name)
		}
		if j.Account == "" {
			return fmt.Errorf("job %s: pre trigger needs an account", j.Name)
		}
		if err := j.PreTrigger.Validate(false); err != nil {
			return fmt.Errorf("job %s: pre trigger: %w", j.Name, err)
		}
	}
	if j.ExecTrigger != nil {
		if err := j.ExecTrigger.Validate(true); err != nil {
			return fmt.Errorf("job %s: exec trigger: %w", j.Name, err)
		}
	}
	return nil
}
