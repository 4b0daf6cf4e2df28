package router

import (
	"github.com/gin-gonic/gin"

	clockhandler "tickflow/internal/handler/clock"
	"tickflow/internal/handler/order"
	"tickflow/internal/handler/ping"
	schedhandler "tickflow/internal/handler/scheduler"
	"tickflow/internal/handler/signal"
	"tickflow/internal/middleware"
)

type ApiRouter struct {
	clockHandler  *clockhandler.Handler
	schedHandler  *schedhandler.Handler
	signalHandler *signal.Handler
	orderHandler  *order.Handler
}

func NewApiRouter(ch *clockhandler.Handler, sh *schedhandler.Handler, sig *signal.Handler, oh *order.Handler) *ApiRouter {
	return &ApiRouter{clockHandler: ch, schedHandler: sh, signalHandler: sig, orderHandler: oh}
}

func (api *ApiRouter) Load(g *gin.Engine) {
	g.Use(middleware.RequestId(), middleware.SimTime(), middleware.Logger)

	g.GET("/ping", ping.Ping())

	// 模拟时钟（机器协作契约，裸JSON）
	if api.clockHandler != nil {
		g.GET("/now", api.clockHandler.Now())
		g.POST("/set", api.clockHandler.Set())
		g.POST("/advance", api.clockHandler.Advance())
		g.POST("/advance-and-tick", api.clockHandler.AdvanceAndTick())
		g.GET("/advance-and-tick/status", api.clockHandler.Status())
		g.POST("/advance-and-tick/cancel", api.clockHandler.Cancel())
		g.GET("/config", api.clockHandler.Config())
		g.POST("/config", api.clockHandler.Configure())
	}

	// 调度tick是时钟依赖的同步契约，同样裸JSON
	sched := g.Group("/api/scheduler")
	{
		sched.POST("/tick", api.schedHandler.Tick())
		sched.GET("/jobs", api.schedHandler.Jobs())
		sched.POST("/jobs/run", api.schedHandler.RunJob())
		sched.GET("/histories", api.schedHandler.Histories())
	}

	// 直通下单
	o := g.Group("/api/order")
	{
		o.POST("", api.orderHandler.Place())
		o.DELETE("/:id", api.orderHandler.Cancel())
		o.GET("/positions", api.orderHandler.Positions())
	}
	g.GET("/api/account", api.orderHandler.Account())
	g.GET("/api/market/quote/:symbol", api.orderHandler.Quote())

	sg := g.Group("/api/v1/signal")
	{
		sg.GET("/list", api.signalHandler.List())
		sg.GET("/detail", api.signalHandler.Detail())
		sg.POST("/cancel", api.signalHandler.Cancel())
	}
}
