package main

import (
	"log"

	"github.com/betterlyfe/internal/config"
	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/handler"
	"github.com/betterlyfe/internal/logger"
	"github.com/betterlyfe/internal/router"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	gdb, err := db.Init(db.Options{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		DSN:    cfg.DatabaseDSN,
	})
	if err != nil {
		appLog.Fatal("failed to initialize database", "error", err)
	}

	if err := db.EnsureAccount(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		appLog.Fatal("failed to ensure super root account", "error", err)
	}

	api := handler.NewAPI(gdb, handler.Options{
		Logger:    appLog,
		Location:  cfg.Timezone,
		UploadDir: cfg.UploadDir,
		UploadURL: cfg.UploadURLPath,
	})

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret, cfg.UploadDir, cfg.UploadURLPath)
	appLog.Info("server starting", "addr", cfg.ListenAddr, "driver", cfg.DatabaseDriver, "timezone", cfg.Timezone.String())
	if err := r.Run(cfg.ListenAddr); err != nil {
		appLog.Fatal("failed to run server", "error", err)
	}
}
