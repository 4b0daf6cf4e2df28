package scheduler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tickflow/internal/consts"
	"tickflow/internal/dao"
	"tickflow/internal/scheduler"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
	"tickflow/pkg/response"
)

type Handler struct {
	sched   *scheduler.Scheduler
	history dao.HistoryDao
}

func NewHandler(sched *scheduler.Scheduler, history dao.HistoryDao) *Handler {
	return &Handler{sched: sched, history: history}
}

type tickReq struct {
	Now string `json:"now"`
}

// Tick POST /api/scheduler/tick。时钟服务依赖的同步契约：
// 返回时该now的全部到期工作已经落地，响应为裸JSON
func (h *Handler) Tick() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req tickReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		now, err := parseTime(req.Now)
		if err != nil {
			// 请求体没给就退回模拟时间头
			if v := ctx.GetString(consts.SimulationTimeHeader); v != "" {
				now, err = parseTime(v)
			}
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		executed, err := h.sched.Tick(ctx.Request.Context(), now)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"executed_count": executed})
	}
}

// Jobs GET /api/scheduler/jobs 任务列表（含自动注入的执行任务）
func (h *Handler) Jobs() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		jobs := h.sched.Jobs()
		type jobView struct {
			Name            string `json:"name"`
			Strategy        string `json:"strategy,omitempty"`
			Account         string `json:"account,omitempty"`
			Market          string `json:"market"`
			PreTrigger      any    `json:"pre_trigger,omitempty"`
			ExecTrigger     any    `json:"exec_trigger,omitempty"`
			SendImmediately bool   `json:"send_immediately"`
		}
		out := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, jobView{
				Name:            j.Name,
				Strategy:        j.Strategy,
				Account:         j.Account,
				Market:          j.Market,
				PreTrigger:      j.PreTrigger,
				ExecTrigger:     j.ExecTrigger,
				SendImmediately: j.SendImmediately,
			})
		}
		response.JSON(ctx, nil, out)
	}
}

type runJobReq struct {
	Name string `json:"name" binding:"required"`
	Now  string `json:"now"`
}

// RunJob POST /api/scheduler/jobs/run 手动触发一个任务
func (h *Handler) RunJob() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req runJobReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		now := time.Now().UTC()
		if req.Now != "" {
			t, err := parseTime(req.Now)
			if err != nil {
				response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
				return
			}
			now = t
		}
		executed, err := h.sched.RunJobNow(ctx.Request.Context(), req.Name, now)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, gin.H{"executed_count": executed})
	}
}

type historyReq struct {
	Job   string `form:"job"`
	Limit int    `form:"limit"`
}

// Histories GET /api/scheduler/histories 任务运行历史
func (h *Handler) Histories() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req historyReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		if req.Limit <= 0 || req.Limit > 200 {
			req.Limit = 50
		}
		list, err := h.history.ListHistories(ctx.Request.Context(), req.Job, req.Limit)
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.InternalErr, "list histories"), nil)
			return
		}
		response.JSON(ctx, nil, list)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.WithCode(ecode.ValidateErr, "bad time %q", s)
}
