package order

import (
	"github.com/gin-gonic/gin"

	"tickflow/internal/broker"
	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
	"tickflow/pkg/response"
)

// 下单直通入口：绕过信号流程直接打到券商网关，运维/对账用

type Handler struct {
	brokers *broker.Registry
}

func NewHandler(brokers *broker.Registry) *Handler {
	return &Handler{brokers: brokers}
}

type placeReq struct {
	Account  string   `json:"account" binding:"required"`
	Symbol   string   `json:"symbol" binding:"required"`
	Side     string   `json:"side" binding:"required,oneof=buy sell"`
	Quantity float64  `json:"quantity" binding:"required,gt=0"`
	Price    *float64 `json:"price"`
}

// Place POST /api/order
func (h *Handler) Place() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req placeReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		gw, err := h.brokers.Gateway(req.Account)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		resp, err := gw.PlaceOrder(ctx.Request.Context(), &model.Order{
			Account:  req.Account,
			Symbol:   req.Symbol,
			Side:     model.OrderSide(req.Side),
			Quantity: req.Quantity,
			Price:    req.Price,
		})
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.BrokerErr, "place order"), nil)
			return
		}
		response.JSON(ctx, nil, gin.H{"order_id": resp.OrderID, "state": resp.State})
	}
}

type cancelReq struct {
	Account string `form:"account" binding:"required"`
}

// Cancel DELETE /api/order/:id
func (h *Handler) Cancel() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req cancelReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		gw, err := h.brokers.Gateway(req.Account)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		if err := gw.CancelOrder(ctx.Request.Context(), ctx.Param("id")); err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, gin.H{"cancelled": ctx.Param("id")})
	}
}

// Positions GET /api/order/positions?account=
func (h *Handler) Positions() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req cancelReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		gw, err := h.brokers.Gateway(req.Account)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		positions, err := gw.GetPositions(ctx.Request.Context())
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.BrokerErr, "positions"), nil)
			return
		}
		response.JSON(ctx, nil, positions)
	}
}

// Account GET /api/account?account= 现金/净值/持仓快照
func (h *Handler) Account() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req cancelReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		gw, err := h.brokers.Gateway(req.Account)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		info, err := gw.GetAccountInfo(ctx.Request.Context())
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, ecode.BrokerErr, "account info"), nil)
			return
		}
		response.JSON(ctx, nil, info)
	}
}

// Quote GET /api/market/quote/:symbol?account=
func (h *Handler) Quote() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req cancelReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "%s", err.Error()), nil)
			return
		}
		gw, err := h.brokers.Gateway(req.Account)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		quote, err := gw.GetQuote(ctx.Request.Context(), ctx.Param("symbol"))
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, quote)
	}
}
