package clock

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tickflow/internal/clock"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

// 时钟HTTP入口。这组端点是机器协作契约（回放驱动方按裸JSON对
// 接），不走统一响应包装

type Handler struct {
	clock *clock.Clock
}

func NewHandler(c *clock.Clock) *Handler {
	return &Handler{clock: c}
}

// Now GET /now
func (h *Handler) Now() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"now": h.clock.Now().Format(time.RFC3339)})
	}
}

type setReq struct {
	Now string `json:"now" binding:"required"`
}

// Set POST /set，推进中返回409
func (h *Handler) Set() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req setReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t, err := parseISO(req.Now)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.clock.Set(t); err != nil {
			ctx.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"now": h.clock.Now().Format(time.RFC3339)})
	}
}

// Advance POST /advance，同步推进不触发tick
func (h *Handler) Advance() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req clock.AdvanceRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		now, err := h.clock.Advance(&req)
		if err != nil {
			ctx.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"now": now.Format(time.RFC3339)})
	}
}

// AdvanceAndTick POST /advance-and-tick，后台推进，202受理，
// 已有任务在跑返回409
func (h *Handler) AdvanceAndTick() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req clock.AdvanceRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		steps, err := h.clock.AdvanceAndTick(&req)
		if err != nil {
			ctx.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusAccepted, gin.H{"status": "started", "steps": steps})
	}
}

// Status GET /advance-and-tick/status，推进中可随时轮询
func (h *Handler) Status() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, h.clock.Status())
	}
}

// Cancel POST /advance-and-tick/cancel
func (h *Handler) Cancel() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h.clock.Cancel()
		ctx.JSON(http.StatusOK, gin.H{"status": "cancel_requested"})
	}
}

type configReq struct {
	TickURLs       []string `json:"tick_urls"`
	TickTimeoutSec int      `json:"tick_timeout_sec"`
}

// Config GET /config
func (h *Handler) Config() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		targets, timeout := h.clock.Config()
		ctx.JSON(http.StatusOK, gin.H{
			"tick_urls":        targets,
			"tick_timeout_sec": int(timeout / time.Second),
		})
	}
}

// Configure POST /config，运行期换tick目标/超时
func (h *Handler) Configure() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req configReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var tickers []clock.TickCaller
		for _, u := range req.TickURLs {
			tickers = append(tickers, clock.NewHTTPTicker(u))
		}
		if err := h.clock.Configure(tickers, time.Duration(req.TickTimeoutSec)*time.Second); err != nil {
			ctx.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.WithCode(ecode.ValidateErr, "bad time %q", s)
}

func httpStatusFor(err error) int {
	switch errors.Code(err) {
	case ecode.ConflictErr:
		return http.StatusConflict
	case ecode.ValidateErr:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
