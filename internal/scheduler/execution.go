package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"tickflow/internal/broker"
	"tickflow/internal/dao"
	"tickflow/internal/market"
	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
	"tickflow/pkg/logger"
)

// 市场执行引擎：把pending信号换算成订单打给券商网关。
// 账户间相互隔离，一个账户失败不影响其他账户

// ExecutionReport 一次市场执行的汇总
type ExecutionReport struct {
	Market   string   `json:"market"`
	Pending  int      `json:"pending"`
	Executed int      `json:"executed"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type ExecEngine struct {
	signals dao.SignalDao
	brokers *broker.Registry

	// 券商调用超时，超时按可重试失败处理（标failed，不中断tick）
	brokerTimeout time.Duration
	// failed信号是否在下次市场执行时重试
	retryFailed bool
}

func NewExecEngine(signals dao.SignalDao, brokers *broker.Registry, brokerTimeout time.Duration, retryFailed bool) *ExecEngine {
	if brokerTimeout <= 0 {
		brokerTimeout = 10 * time.Second
	}
	return &ExecEngine{
		signals:       signals,
		brokers:       brokers,
		brokerTimeout: brokerTimeout,
		retryFailed:   retryFailed,
	}
}

// Fire 执行该市场全部到期pending信号。没有pending不是错误
func (e *ExecEngine) Fire(ctx context.Context, mkt *market.Market, now time.Time) *ExecutionReport {
	report := &ExecutionReport{Market: mkt.Name}

	if e.retryFailed {
		e.requeueFailed(ctx, mkt.Name)
	}

	pending, err := e.signals.ListPending(ctx, "", mkt.Name, now)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list pending: %v", err))
		return report
	}
	report.Pending = len(pending)
	if len(pending) == 0 {
		return report
	}
	e.executeGroups(ctx, pending, now, report)

	logger.Info("market execution done",
		logger.Pair("market", mkt.Name),
		logger.Pair("pending", report.Pending),
		logger.Pair("executed", report.Executed),
		logger.Pair("failed", report.Failed))
	return report
}

// ExecuteNow 绕过市场窗口立即执行给定信号（send_immediately通道）
func (e *ExecEngine) ExecuteNow(ctx context.Context, mktName string, sigs []model.TradingSignal, now time.Time) *ExecutionReport {
	report := &ExecutionReport{Market: mktName, Pending: len(sigs)}
	e.executeGroups(ctx, sigs, now, report)
	return report
}

func (e *ExecEngine) executeGroups(ctx context.Context, pending []model.TradingSignal, now time.Time, report *ExecutionReport) {
	// 按账户分组，组内保持created_at顺序
	byAccount := make(map[string][]model.TradingSignal)
	var accounts []string
	for _, s := range pending {
		if _, ok := byAccount[s.Account]; !ok {
			accounts = append(accounts, s.Account)
		}
		byAccount[s.Account] = append(byAccount[s.Account], s)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, account := range accounts {
		wg.Add(1)
		go func(account string, sigs []model.TradingSignal) {
			defer wg.Done()
			executed, failed, errs := e.fireAccount(ctx, account, sigs, now)
			mu.Lock()
			report.Executed += executed
			report.Failed += failed
			report.Errors = append(report.Errors, errs...)
			mu.Unlock()
		}(account, byAccount[account])
	}
	wg.Wait()
}

// requeueFailed 把failed信号拨回pending参与本轮执行
func (e *ExecEngine) requeueFailed(ctx context.Context, mktName string) {
	failed, err := e.signals.List(ctx, model.SignalFilter{Market: mktName, Status: string(model.StatusFailed)})
	if err != nil {
		logger.Warnf("requeue failed signals: %v", err)
		return
	}
	for _, s := range failed {
		if _, err := e.signals.UpdateStatusFrom(ctx, s.ID, model.StatusFailed, model.StatusPending, nil, ""); err != nil {
			logger.Warnf("requeue signal %d: %v", s.ID, err)
		}
	}
}

// derivedOrder 一条信号换算出的订单。delta带符号：正买负卖
type derivedOrder struct {
	signalID int64
	order    model.Order
	delta    float64
}

func (e *ExecEngine) fireAccount(ctx context.Context, account string, sigs []model.TradingSignal, now time.Time) (executed, failed int, errs []string) {
	gw, err := e.brokers.Gateway(account)
	if err != nil {
		// 账户没网关：整组标failed，不影响其他账户
		for _, s := range sigs {
			e.markFailed(ctx, s.ID, model.StatusPending, err.Error())
			failed++
		}
		return 0, failed, []string{err.Error()}
	}

	// 乐观认领：pending→sent，抢不到说明别处已处理
	var claimed []model.TradingSignal
	for _, s := range sigs {
		ok, err := e.signals.UpdateStatusFrom(ctx, s.ID, model.StatusPending, model.StatusSent, nil, "")
		if err != nil {
			errs = append(errs, fmt.Sprintf("claim signal %d: %v", s.ID, err))
			continue
		}
		if ok {
			claimed = append(claimed, s)
		}
	}
	if len(claimed) == 0 {
		return 0, 0, errs
	}

	orders, resolveFailed := e.resolveOrders(ctx, gw, account, claimed)
	for id, reason := range resolveFailed {
		e.markFailed(ctx, id, model.StatusSent, reason)
		failed++
		errs = append(errs, fmt.Sprintf("signal %d: %s", id, reason))
	}

	// 先卖后买腾现金，同向内大额优先
	sort.SliceStable(orders, func(i, j int) bool {
		if (orders[i].delta < 0) != (orders[j].delta < 0) {
			return orders[i].delta < 0
		}
		return math.Abs(orders[i].delta) > math.Abs(orders[j].delta)
	})

	orderFailures := make(map[int64]string)
	for _, d := range orders {
		if _, dup := orderFailures[d.signalID]; dup {
			continue
		}
		if err := e.placeOne(ctx, gw, &d.order); err != nil {
			orderFailures[d.signalID] = err.Error()
		}
	}

	// 定稿：有失败的标failed，其余标filled
	for _, s := range claimed {
		if _, ok := resolveFailed[s.ID]; ok {
			continue
		}
		if reason, ok := orderFailures[s.ID]; ok {
			e.markFailed(ctx, s.ID, model.StatusSent, reason)
			failed++
			errs = append(errs, fmt.Sprintf("signal %d: %s", s.ID, reason))
			continue
		}
		// 没有派生订单（调仓差额为零）也算执行完成
		executedAt := now
		if _, err := e.signals.UpdateStatusFrom(ctx, s.ID, model.StatusSent, model.StatusFilled, &executedAt, ""); err != nil {
			errs = append(errs, fmt.Sprintf("finalize signal %d: %v", s.ID, err))
			continue
		}
		executed++
	}
	return executed, failed, errs
}

// resolveOrders 把认领到的信号换算成订单。调仓信号按
// q = trunc((w*E - v) / p) 折算股数，E为权益、v为现值、p为最新价
func (e *ExecEngine) resolveOrders(ctx context.Context, gw broker.Gateway, account string, claimed []model.TradingSignal) ([]derivedOrder, map[int64]string) {
	var orders []derivedOrder
	resolveFailed := make(map[int64]string)

	var (
		info      *model.AccountInfo
		positions map[string]model.Position
		acctErr   error
		fetched   bool
	)
	fetchAccount := func() {
		if fetched {
			return
		}
		fetched = true
		cctx, cancel := context.WithTimeout(ctx, e.brokerTimeout)
		defer cancel()
		info, acctErr = gw.GetAccountInfo(cctx)
		if acctErr != nil {
			return
		}
		var ps []model.Position
		ps, acctErr = gw.GetPositions(cctx)
		if acctErr != nil {
			return
		}
		positions = make(map[string]model.Position, len(ps))
		for _, p := range ps {
			positions[p.Symbol] = p
		}
	}

	for _, s := range claimed {
		switch s.Kind {
		case model.KindOrder:
			delta := s.Payload.Qty
			if s.Payload.Side == model.SideSell {
				delta = -delta
			}
			orders = append(orders, derivedOrder{
				signalID: s.ID,
				order: model.Order{
					Account:  account,
					Symbol:   s.Symbol,
					Side:     s.Payload.Side,
					Quantity: s.Payload.Qty,
					Price:    s.Payload.Price,
				},
				delta: delta,
			})

		case model.KindRebalance:
			fetchAccount()
			if acctErr != nil {
				resolveFailed[s.ID] = fmt.Sprintf("fetch account: %v", acctErr)
				continue
			}
			derived, err := e.resolveRebalance(ctx, gw, account, s, info.Equity, positions)
			if err != nil {
				resolveFailed[s.ID] = err.Error()
				continue
			}
			orders = append(orders, derived...)

		default:
			resolveFailed[s.ID] = fmt.Sprintf("unknown signal kind %q", s.Kind)
		}
	}
	return orders, resolveFailed
}

func (e *ExecEngine) resolveRebalance(ctx context.Context, gw broker.Gateway, account string, s model.TradingSignal, equity float64, positions map[string]model.Position) ([]derivedOrder, error) {
	// 目标市值：优先用显式notional，否则权重×权益
	targets := make(map[string]float64)
	for symbol, w := range s.Payload.TargetWeights {
		targets[symbol] = w * equity
	}
	for symbol, notional := range s.Payload.TargetNotional {
		targets[symbol] = notional
	}
	if len(targets) == 0 {
		return nil, errors.WithCode(ecode.ValidateErr, "rebalance signal has no targets")
	}

	symbols := make([]string, 0, len(targets))
	for symbol := range targets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var orders []derivedOrder
	for _, symbol := range symbols {
		cctx, cancel := context.WithTimeout(ctx, e.brokerTimeout)
		quote, err := gw.GetQuote(cctx, symbol)
		cancel()
		if err != nil {
			return nil, errors.Wrap(err, ecode.BrokerErr, "quote "+symbol)
		}
		if quote.Price <= 0 {
			return nil, errors.WithCode(ecode.BrokerErr, "non-positive quote for %s", symbol)
		}

		// 未持有即现值为0
		var current float64
		if p, ok := positions[symbol]; ok {
			current = p.MarketValue()
		}
		qty := math.Trunc((targets[symbol] - current) / quote.Price)
		if qty == 0 {
			continue
		}
		side := model.SideBuy
		if qty < 0 {
			side = model.SideSell
		}
		orders = append(orders, derivedOrder{
			signalID: s.ID,
			order: model.Order{
				Account:  account,
				Symbol:   symbol,
				Side:     side,
				Quantity: math.Abs(qty),
			},
			delta: qty,
		})
	}
	return orders, nil
}

func (e *ExecEngine) placeOne(ctx context.Context, gw broker.Gateway, order *model.Order) error {
	cctx, cancel := context.WithTimeout(ctx, e.brokerTimeout)
	defer cancel()
	resp, err := gw.PlaceOrder(cctx, order)
	if err != nil {
		return err
	}
	if resp.State == model.OrderRejected {
		return errors.WithCode(ecode.BrokerErr, "order rejected: %s", resp.Message)
	}
	return nil
}

func (e *ExecEngine) markFailed(ctx context.Context, id int64, from model.SignalStatus, reason string) {
	if _, err := e.signals.UpdateStatusFrom(ctx, id, from, model.StatusFailed, nil, reason); err != nil {
		logger.Warnf("mark signal %d failed: %v", id, err)
	}
}
