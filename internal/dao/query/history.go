package query

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tickflow/internal/dao"
	"tickflow/internal/model"
	"tickflow/internal/model/entity"
)

type historyDao struct {
	db *gorm.DB
}

func NewHistoryDao(db *gorm.DB) dao.HistoryDao {
	return &historyDao{db: db}
}

func (d *historyDao) AddHistory(ctx context.Context, h *model.JobHistory) (int64, error) {
	e := &entity.JobHistory{
		JobName:     h.JobName,
		Strategy:    h.Strategy,
		TriggerTime: h.TriggerTime,
		Status:      h.Status,
	}
	if err := d.db.WithContext(ctx).Create(e).Error; err != nil {
		return 0, err
	}
	h.ID = int64(e.ID)
	return h.ID, nil
}

func (d *historyDao) FinishHistory(ctx context.Context, id int64, status string, signalCount int, errMsg string, endTime time.Time) error {
	return d.db.WithContext(ctx).
		Model(&entity.JobHistory{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"signal_count":  signalCount,
			"error_message": errMsg,
			"end_time":      endTime,
		}).Error
}

func (d *historyDao) ListHistories(ctx context.Context, jobName string, limit int) ([]model.JobHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	q := d.db.WithContext(ctx).Model(&entity.JobHistory{})
	if jobName != "" {
		q = q.Where("job_name = ?", jobName)
	}
	var es []entity.JobHistory
	if err := q.Order("trigger_time DESC").Limit(limit).Find(&es).Error; err != nil {
		return nil, err
	}
	out := make([]model.JobHistory, 0, len(es))
	for _, e := range es {
		out = append(out, model.JobHistory{
			ID:          int64(e.ID),
			JobName:     e.JobName,
			Strategy:    e.Strategy,
			TriggerTime: e.TriggerTime,
			EndTime:     e.EndTime,
			Status:      e.Status,
			SignalCount: e.SignalCount,
			ErrorMsg:    e.ErrorMsg,
		})
	}
	return out, nil
}
