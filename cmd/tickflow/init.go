package main

import (
	"fmt"
	"time"

	"tickflow/conf"
	"tickflow/internal/broker"
	"tickflow/internal/broker/paper"
	clocksvc "tickflow/internal/clock"
	"tickflow/internal/dao"
	"tickflow/internal/dao/memory"
	"tickflow/internal/dao/query"
	clockhandler "tickflow/internal/handler/clock"
	orderhandler "tickflow/internal/handler/order"
	schedhandler "tickflow/internal/handler/scheduler"
	signalhandler "tickflow/internal/handler/signal"
	"tickflow/internal/market"
	"tickflow/internal/model"
	"tickflow/internal/model/entity"
	"tickflow/internal/router"
	"tickflow/internal/scheduler"
	"tickflow/internal/strategy"
	"tickflow/pkg/db"
	"tickflow/pkg/kafka"
	"tickflow/pkg/logger"
)

// InitRouter 按配置装配整个引擎。任何配置错误直接失败，不带病启动
func InitRouter() (Router, func(), error) {
	cfg := conf.AppConfig

	// 市场
	markets := make(map[string]*market.Market, len(cfg.Markets))
	for name, mc := range cfg.Markets {
		m, err := market.New(name, mc.Timezone, mc.OpenTime, mc.CloseTime, mc.OpenBarMinutes, mc.Holidays)
		if err != nil {
			return nil, nil, err
		}
		markets[name] = m
	}

	// 账户与券商网关。futu/ibkr接入在独立网关服务里，这个进程只带paper
	brokers := broker.NewRegistry()
	for _, ac := range cfg.Accounts {
		if ac.BrokerType != string(model.BrokerPaper) {
			return nil, nil, fmt.Errorf("account %s: broker type %q not available in this build", ac.Name, ac.BrokerType)
		}
		brokers.Register(model.Account{
			Name:       ac.Name,
			BrokerType: model.BrokerType(ac.BrokerType),
			Identity:   ac.Identity,
		}, paper.New(ac.Name, ac.InitialCash))
	}

	// 策略实例
	strategies := strategy.NewRegistry()
	for _, def := range cfg.Strategies {
		s, err := strategy.Build(def.Type, def.Name, def.Params)
		if err != nil {
			return nil, nil, err
		}
		strategies.Register(s)
	}

	// 信号/历史存储：有库走mysql，没库用内存（回放与测试）
	var (
		signalDao  dao.SignalDao
		historyDao dao.HistoryDao
	)
	if cfg.Db.Enabled {
		gdb := db.Init(db.NewConfig(cfg.Db.Username, cfg.Db.Password, cfg.Db.Host, cfg.Db.Port, cfg.Db.DbName))
		if err := gdb.AutoMigrate(&entity.TradingSignal{}, &entity.JobHistory{}); err != nil {
			return nil, nil, err
		}
		signalDao = query.NewSignalDao(gdb)
		historyDao = query.NewHistoryDao(gdb)
	} else {
		store := memory.NewSignalStore()
		signalDao = store
		historyDao = store
	}

	var producer kafka.ProducerService
	if cfg.Kafka.Broker != "" {
		producer = kafka.NewEventProducer(cfg.Kafka.Broker)
	}

	notifier := scheduler.NewNotifier(scheduler.NotifyConfig{
		EmailEnabled: cfg.Email.Enabled,
		SMTPHost:     cfg.Email.Host,
		SMTPPort:     cfg.Email.Port,
		SMTPUser:     cfg.Email.Username,
		SMTPPassword: cfg.Email.Password,
		Sender:       cfg.Email.Sender,
		Recipients:   cfg.Email.Recipients,
		WebhookURL:   cfg.WebhookURL,
	}, producer)

	exec := scheduler.NewExecEngine(signalDao, brokers,
		time.Duration(cfg.Scheduler.BrokerTimeoutSec)*time.Second, cfg.Scheduler.RetryFailed)

	jobs := make([]*scheduler.Job, 0, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		jobs = append(jobs, &scheduler.Job{
			Name:            jc.Name,
			Strategy:        jc.Strategy,
			Account:         jc.Account,
			Market:          jc.Market,
			Symbols:         jc.Symbols,
			PreTrigger:      toTrigger(jc.PreTrigger),
			ExecTrigger:     toTrigger(jc.ExecTrigger),
			SendImmediately: jc.SendImmediately,
			NotifyOnFailure: jc.NotifyOnFailure,
			NotifyOnSignal:  jc.NotifyOnSignal,
		})
	}

	sched, err := scheduler.New(jobs, markets, brokers, strategies, signalDao, historyDao,
		exec, notifier, scheduler.Options{MaxWorkers: cfg.Scheduler.MaxWorkers})
	if err != nil {
		return nil, nil, err
	}

	var clockH *clockhandler.Handler
	if cfg.Clock.Enabled {
		clk, err := buildClock(cfg.Clock, sched)
		if err != nil {
			return nil, nil, err
		}
		clockH = clockhandler.NewHandler(clk)
	}

	apiRouter := router.NewApiRouter(
		clockH,
		schedhandler.NewHandler(sched, historyDao),
		signalhandler.NewHandler(signalDao),
		orderhandler.NewHandler(brokers),
	)

	shutdown := func() {
		if producer != nil {
			producer.Close()
		}
		logger.Sync()
	}
	return apiRouter, shutdown, nil
}

func toTrigger(tc *conf.TriggerConfig) *scheduler.TriggerSpec {
	if tc == nil {
		return nil
	}
	return &scheduler.TriggerSpec{
		Kind:    tc.Kind,
		Cron:    tc.Cron,
		Minutes: tc.Minutes,
		Time:    tc.Time,
	}
}

func buildClock(cc conf.ClockConfig, sched *scheduler.Scheduler) (*clocksvc.Clock, error) {
	initial := time.Now().UTC()
	if cc.InitialTime != "" {
		t, err := time.Parse(time.RFC3339, cc.InitialTime)
		if err != nil {
			return nil, fmt.Errorf("clock initial_time: %w", err)
		}
		initial = t.UTC()
	}

	// 没配tick地址就进程内直连调度器
	var tickers []clocksvc.TickCaller
	if len(cc.TickURLs) == 0 {
		tickers = append(tickers, clocksvc.TickFunc(sched.Tick))
	} else {
		for _, u := range cc.TickURLs {
			tickers = append(tickers, clocksvc.NewHTTPTicker(u))
		}
	}

	clk := clocksvc.New(initial, tickers, time.Duration(cc.TickTimeoutSec)*time.Second)

	if cc.EndDate != "" {
		t, err := time.Parse("2006-01-02", cc.EndDate)
		if err != nil {
			return nil, fmt.Errorf("clock end_date: %w", err)
		}
		clk.SetEndDate(t.Add(24*time.Hour - time.Second))
	}

	var bs []*clocksvc.Boundary
	for _, sc := range cc.Boundaries {
		b, err := clocksvc.NewBoundary(sc.Market, sc.Timezone, sc.Time)
		if err != nil {
			return nil, fmt.Errorf("clock boundary %s: %w", sc.Market, err)
		}
		bs = append(bs, b)
	}
	clk.SetBoundaries(bs)
	return clk, nil
}
