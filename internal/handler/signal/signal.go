package signal

import (
	"github.com/gin-gonic/gin"

	"tickflow/internal/dao"
	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
	"tickflow/pkg/response"
)

type Handler struct {
	signals dao.SignalDao
}

func NewHandler(signals dao.SignalDao) *Handler {
	return &Handler{signals: signals}
}

type listReq struct {
	Account  string `form:"account"`
	Market   string `form:"market"`
	Status   string `form:"status"`
	Kind     string `form:"kind"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

func (r *listReq) filter() model.SignalFilter {
	page := r.Page
	if page < 1 {
		page = 1
	}
	size := r.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return model.SignalFilter{
		Account:  r.Account,
		Market:   r.Market,
		Status:   r.Status,
		Kind:     r.Kind,
		DateFrom: r.DateFrom,
		DateTo:   r.DateTo,
		Offset:   (page - 1) * size,
		Limit:    size,
	}
}

// List GET /api/v1/signal/list
func (h *Handler) List() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req listReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		filter := req.filter()
		list, err := h.signals.List(ctx.Request.Context(), filter)
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.InternalErr, "list signals"), nil)
			return
		}
		total, err := h.signals.Count(ctx.Request.Context(), filter)
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.InternalErr, "count signals"), nil)
			return
		}
		response.JSON(ctx, nil, gin.H{"total": total, "list": list})
	}
}

type detailReq struct {
	ID int64 `form:"id" binding:"required"`
}

// Detail GET /api/v1/signal/detail
func (h *Handler) Detail() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req detailReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		sig, err := h.signals.Get(ctx.Request.Context(), req.ID)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, sig)
	}
}

type cancelReq struct {
	ID int64 `json:"id" binding:"required"`
}

// Cancel POST /api/v1/signal/cancel 只取消pending信号
func (h *Handler) Cancel() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req cancelReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		ok, err := h.signals.Cancel(ctx.Request.Context(), req.ID)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		if !ok {
			response.JSON(ctx, errors.WithCode(ecode.ConflictErr, "signal %d is not pending", req.ID), nil)
			return
		}
		response.JSON(ctx, nil, gin.H{"cancelled": req.ID})
	}
}
