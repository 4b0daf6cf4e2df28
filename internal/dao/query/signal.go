package query

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"tickflow/internal/dao"
	"tickflow/internal/model"
	"tickflow/internal/model/entity"
)

// SignalDao 的gorm实现，表见 entity.TradingSignal

type signalDao struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewSignalDao(db *gorm.DB) dao.SignalDao {
	// 单机部署，节点号固定即可
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return &signalDao{db: db, node: node}
}

func (d *signalDao) Add(ctx context.Context, signal *model.TradingSignal) (int64, error) {
	e, err := toEntity(signal)
	if err != nil {
		return 0, err
	}
	e.ID = uint64(d.node.Generate().Int64())
	if err := d.db.WithContext(ctx).Create(e).Error; err != nil {
		return 0, err
	}
	signal.ID = int64(e.ID)
	return signal.ID, nil
}

func (d *signalDao) AddMany(ctx context.Context, signals []*model.TradingSignal) ([]int64, error) {
	ids := make([]int64, 0, len(signals))
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range signals {
			e, err := toEntity(s)
			if err != nil {
				return err
			}
			e.ID = uint64(d.node.Generate().Int64())
			if err := tx.Create(e).Error; err != nil {
				return err
			}
			s.ID = int64(e.ID)
			ids = append(ids, s.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (d *signalDao) Get(ctx context.Context, id int64) (*model.TradingSignal, error) {
	var e entity.TradingSignal
	if err := d.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return fromEntity(&e)
}

func (d *signalDao) ListPending(ctx context.Context, account, market string, triggerAtBefore time.Time) ([]model.TradingSignal, error) {
	q := d.db.WithContext(ctx).
		Where("status = ?", string(model.StatusPending)).
		Where("market = ?", market).
		Where("trigger_at IS NULL OR trigger_at <= ?", triggerAtBefore)
	if account != "" {
		q = q.Where("account = ?", account)
	}
	var es []entity.TradingSignal
	if err := q.Order("created_at ASC").Find(&es).Error; err != nil {
		return nil, err
	}
	return fromEntities(es)
}

func (d *signalDao) List(ctx context.Context, filter model.SignalFilter) ([]model.TradingSignal, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > 500 {
		limit = 500
	}
	var es []entity.TradingSignal
	err := d.applyFilter(d.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&es).Error
	if err != nil {
		return nil, err
	}
	return fromEntities(es)
}

func (d *signalDao) Count(ctx context.Context, filter model.SignalFilter) (int64, error) {
	var n int64
	err := d.applyFilter(d.db.WithContext(ctx).Model(&entity.TradingSignal{}), filter).Count(&n).Error
	return n, err
}

func (d *signalDao) applyFilter(q *gorm.DB, f model.SignalFilter) *gorm.DB {
	if f.Account != "" {
		q = q.Where("account = ?", f.Account)
	}
	if f.Market != "" {
		q = q.Where("market = ?", f.Market)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.DateFrom != "" {
		q = q.Where("created_at >= ?", f.DateFrom+" 00:00:00")
	}
	if f.DateTo != "" {
		q = q.Where("created_at <= ?", f.DateTo+" 23:59:59")
	}
	return q
}

func (d *signalDao) UpdateStatusFrom(ctx context.Context, id int64, from, to model.SignalStatus, executedAt *time.Time, reason string) (bool, error) {
	updates := map[string]interface{}{"status": string(to)}
	if executedAt != nil {
		updates["executed_at"] = executedAt
	}
	if reason != "" {
		updates["error"] = reason
	}
	// 乐观检查：只有仍处于期望前置状态的行才会被更新
	res := d.db.WithContext(ctx).
		Model(&entity.TradingSignal{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (d *signalDao) Cancel(ctx context.Context, id int64) (bool, error) {
	return d.UpdateStatusFrom(ctx, id, model.StatusPending, model.StatusCancelled, nil, "")
}

func toEntity(s *model.TradingSignal) (*entity.TradingSignal, error) {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, err
	}
	return &entity.TradingSignal{
		ID:         uint64(s.ID),
		JobName:    s.JobName,
		Account:    s.Account,
		Market:     s.Market,
		Kind:       string(s.Kind),
		Symbol:     s.Symbol,
		Payload:    string(payload),
		Status:     string(s.Status),
		Error:      s.Error,
		CreatedAt:  s.CreatedAt,
		ExecutedAt: s.ExecutedAt,
		TriggerAt:  s.TriggerAt,
	}, nil
}

func fromEntity(e *entity.TradingSignal) (*model.TradingSignal, error) {
	var payload model.SignalPayload
	if e.Payload != "" {
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return nil, err
		}
	}
	return &model.TradingSignal{
		ID:         int64(e.ID),
		JobName:    e.JobName,
		Account:    e.Account,
		Market:     e.Market,
		Kind:       model.SignalKind(e.Kind),
		Symbol:     e.Symbol,
		Payload:    payload,
		Status:     model.SignalStatus(e.Status),
		Error:      e.Error,
		CreatedAt:  e.CreatedAt,
		ExecutedAt: e.ExecutedAt,
		TriggerAt:  e.TriggerAt,
	}, nil
}

func fromEntities(es []entity.TradingSignal) ([]model.TradingSignal, error) {
	out := make([]model.TradingSignal, 0, len(es))
	for i := range es {
		s, err := fromEntity(&es[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}
