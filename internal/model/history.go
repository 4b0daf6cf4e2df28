package model

import "time"

// JobHistory 一次任务触发的运行记录
type JobHistory struct {
	ID          int64      `json:"id"`
	JobName     string     `json:"job_name"`
	Strategy    string     `json:"strategy,omitempty"`
	TriggerTime time.Time  `json:"trigger_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Status      string     `json:"status"` // running/success/failed
	SignalCount int        `json:"signal_count"`
	ErrorMsg    string     `json:"error_message,omitempty"`
}

const (
	HistoryRunning = "running"
	HistorySuccess = "success"
	HistoryFailed  = "failed"
)
