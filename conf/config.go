package conf

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 配置加载。触发器/市场定义在加载后做一次性校验，
// 校验失败引擎不启动

type DbConfig struct {
	Enabled  bool   `yaml:"enabled"` // false时用内存信号存储（回放/测试）
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
}

type EmailConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Host       string   `yaml:"smtp_host"`
	Port       int      `yaml:"smtp_port"`
	Username   string   `yaml:"smtp_user"`
	Password   string   `yaml:"smtp_password"`
	Sender     string   `yaml:"smtp_sender"`
	Recipients []string `yaml:"recipients"`
}

type MarketConfig struct {
	Timezone       string   `yaml:"timezone"`   // 空=UTC（7x24市场）
	OpenTime       string   `yaml:"open_time"`  // "09:30"，空=无固定开盘
	CloseTime      string   `yaml:"close_time"` // "16:00"
	OpenBarMinutes int      `yaml:"open_bar_minutes"`
	Holidays       []string `yaml:"holidays"` // 本地日期 YYYY-MM-DD
}

type AccountConfig struct {
	Name        string  `yaml:"name" validate:"required"`
	BrokerType  string  `yaml:"broker_type" validate:"required,oneof=paper futu ibkr"`
	Identity    string  `yaml:"identity"`
	InitialCash float64 `yaml:"initial_cash"` // paper账户初始资金
}

type StrategyDef struct {
	Name   string                 `yaml:"name" validate:"required"`
	Type   string                 `yaml:"type" validate:"required"`
	Params map[string]interface{} `yaml:"params"`
}

type TriggerConfig struct {
	Kind    string `yaml:"kind"`
	Cron    string `yaml:"cron"`
	Minutes int    `yaml:"minutes"`
	Time    string `yaml:"time"`
}

type JobConfig struct {
	Name            string         `yaml:"name" validate:"required"`
	Strategy        string         `yaml:"strategy"`
	Account         string         `yaml:"account"`
	Market          string         `yaml:"market" validate:"required"`
	Symbols         []string       `yaml:"symbols"`
	PreTrigger      *TriggerConfig `yaml:"pre_trigger"`
	ExecTrigger     *TriggerConfig `yaml:"exec_trigger"`
	SendImmediately bool           `yaml:"send_immediately"`
	NotifyOnFailure bool           `yaml:"notify_on_failure"`
	NotifyOnSignal  bool           `yaml:"notify_on_signal"`
}

type SchedulerConfig struct {
	MaxWorkers       int  `yaml:"max_workers"`
	RetryFailed      bool `yaml:"retry_failed"` // failed信号下次市场执行重试
	BrokerTimeoutSec int  `yaml:"broker_timeout_sec"`
}

type SnapConfig struct {
	Market   string `yaml:"market"`
	Timezone string `yaml:"timezone"`
	Time     string `yaml:"time"` // "09:30"
}

type ClockConfig struct {
	Enabled        bool         `yaml:"enabled"`
	InitialTime    string       `yaml:"initial_time"` // ISO-8601，空=当前时间
	EndDate        string       `yaml:"end_date"`     // 推进上限，空=不限
	TickURLs       []string     `yaml:"tick_urls"`    // 空=进程内直连调度器
	TickTimeoutSec int          `yaml:"tick_timeout_sec"`
	Boundaries     []SnapConfig `yaml:"boundaries"` // snap_to_boundary要保住的开收盘时刻
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	Language     string `yaml:"language"`
	MaxPingCount int    `yaml:"max-ping-count"`

	Db    DbConfig    `yaml:"database"`
	Log   LogConfig   `yaml:"log"`
	Kafka KafkaConfig `yaml:"kafka"`
	Email EmailConfig `yaml:"email"`

	WebhookURL string `yaml:"webhook_url"`

	Markets    map[string]MarketConfig `yaml:"markets"`
	Accounts   []AccountConfig         `yaml:"accounts" validate:"dive"`
	Strategies []StrategyDef           `yaml:"strategies" validate:"dive"`
	Jobs       []JobConfig             `yaml:"jobs" validate:"dive"`
	Scheduler  SchedulerConfig         `yaml:"scheduler"`
	Clock      ClockConfig             `yaml:"clock"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	if err := validator.New().Struct(&AppConfig); err != nil {
		return fmt.Errorf("Validate config error: %w", err)
	}
	return nil
}
