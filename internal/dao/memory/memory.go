package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tickflow/internal/dao"
	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

// 内存版信号存储：回放/单测场景使用，无需mysql。语义与gorm实现一致，
// 状态变更同样走乐观检查

type SignalStore struct {
	mu      sync.RWMutex
	nextID  int64
	signals map[int64]*model.TradingSignal

	nextHistoryID int64
	histories     map[int64]*model.JobHistory
}

var (
	_ dao.SignalDao  = (*SignalStore)(nil)
	_ dao.HistoryDao = (*SignalStore)(nil)
)

func NewSignalStore() *SignalStore {
	return &SignalStore{
		nextID:    1,
		signals:   make(map[int64]*model.TradingSignal),
		histories: make(map[int64]*model.JobHistory),
	}
}

func (s *SignalStore) Add(_ context.Context, signal *model.TradingSignal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(signal), nil
}

func (s *SignalStore) add(signal *model.TradingSignal) int64 {
	cp := *signal
	cp.ID = s.nextID
	s.nextID++
	s.signals[cp.ID] = &cp
	signal.ID = cp.ID
	return cp.ID
}

func (s *SignalStore) AddMany(_ context.Context, signals []*model.TradingSignal) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(signals))
	for _, sig := range signals {
		ids = append(ids, s.add(sig))
	}
	return ids, nil
}

func (s *SignalStore) Get(_ context.Context, id int64) (*model.TradingSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, errors.WithCode(ecode.NotFoundErr, "signal %d not found", id)
	}
	cp := *sig
	return &cp, nil
}

func (s *SignalStore) ListPending(_ context.Context, account, market string, triggerAtBefore time.Time) ([]model.TradingSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TradingSignal
	for _, sig := range s.signals {
		if sig.Status != model.StatusPending || sig.Market != market {
			continue
		}
		if account != "" && sig.Account != account {
			continue
		}
		if sig.TriggerAt != nil && sig.TriggerAt.After(triggerAtBefore) {
			continue
		}
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *SignalStore) List(_ context.Context, filter model.SignalFilter) ([]model.TradingSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TradingSignal
	for _, sig := range s.signals {
		if !matchFilter(sig, filter) {
			continue
		}
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SignalStore) Count(_ context.Context, filter model.SignalFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, sig := range s.signals {
		if matchFilter(sig, filter) {
			n++
		}
	}
	return n, nil
}

func matchFilter(sig *model.TradingSignal, f model.SignalFilter) bool {
	if f.Account != "" && sig.Account != f.Account {
		return false
	}
	if f.Market != "" && sig.Market != f.Market {
		return false
	}
	if f.Status != "" && string(sig.Status) != f.Status {
		return false
	}
	if f.Kind != "" && string(sig.Kind) != f.Kind {
		return false
	}
	day := sig.CreatedAt.UTC().Format("2006-01-02")
	if f.DateFrom != "" && day < f.DateFrom {
		return false
	}
	if f.DateTo != "" && day > f.DateTo {
		return false
	}
	return true
}

func (s *SignalStore) UpdateStatusFrom(_ context.Context, id int64, from, to model.SignalStatus, executedAt *time.Time, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok || sig.Status != from {
		return false, nil
	}
	sig.Status = to
	if executedAt != nil {
		sig.ExecutedAt = executedAt
	}
	if reason != "" {
		sig.Error = reason
	}
	return true, nil
}

func (s *SignalStore) Cancel(ctx context.Context, id int64) (bool, error) {
	return s.UpdateStatusFrom(ctx, id, model.StatusPending, model.StatusCancelled, nil, "")
}

func (s *SignalStore) AddHistory(_ context.Context, h *model.JobHistory) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	cp.ID = s.nextHistoryID + 1
	s.nextHistoryID++
	s.histories[cp.ID] = &cp
	h.ID = cp.ID
	return cp.ID, nil
}

func (s *SignalStore) FinishHistory(_ context.Context, id int64, status string, signalCount int, errMsg string, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[id]
	if !ok {
		return errors.WithCode(ecode.NotFoundErr, "history %d not found", id)
	}
	h.Status = status
	h.SignalCount = signalCount
	h.ErrorMsg = errMsg
	h.EndTime = &endTime
	return nil
}

func (s *SignalStore) ListHistories(_ context.Context, jobName string, limit int) ([]model.JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.JobHistory
	for _, h := range s.histories {
		if jobName != "" && h.JobName != jobName {
			continue
		}
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerTime.After(out[j].TriggerTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
