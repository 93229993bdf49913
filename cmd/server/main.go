package main

import (
	"github.com/gin-gonic/gin"
	"github.com/intakeplan/internal/config"
	"github.com/intakeplan/internal/db"
	"github.com/intakeplan/internal/handler"
	"github.com/intakeplan/internal/logger"
	"github.com/intakeplan/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.Environment)

	// 初始化数据库
	if err := db.Init(db.Options{Driver: cfg.DatabaseDriver, Path: cfg.DatabasePath, DSN: cfg.DatabaseDSN}); err != nil {
		logger.Log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		logger.Log.Fatalf("failed to ensure super root user: %v", err)
	}

	api := handler.NewAPI(db.DB)
	if cfg.ProductSeedPath != "" {
		if _, err := api.Products().Seed(cfg.ProductSeedPath); err != nil {
			logger.Log.WithError(err).Warn("product seed skipped")
		}
	}

	gin.SetMode(cfg.GinMode)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	logger.Log.WithField("addr", cfg.ListenAddr).Info("intakeplan server listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Log.Fatalf("failed to run server: %v", err)
	}
}
