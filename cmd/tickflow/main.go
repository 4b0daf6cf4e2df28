package main

import (
	"flag"
	"log"

	"github.com/gin-gonic/gin"

	"tickflow/conf"
	"tickflow/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	if err := conf.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := conf.AppConfig

	logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		FileName:   cfg.Log.FileName,
		TimeFormat: cfg.Log.TimeFormat,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		LocalTime:  cfg.Log.LocalTime,
		Console:    cfg.Log.Console,
	})

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	apiRouter, shutdown, err := InitRouter()
	if err != nil {
		logger.Fatalf("init failed: %v", err)
	}

	srv := NewServer(&cfg)
	srv.RegisterOnShutdown(shutdown)
	srv.Run(apiRouter)
}
