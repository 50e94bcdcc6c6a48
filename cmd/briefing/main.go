package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/LJTian/DailyBriefing/internal/briefing"
	"github.com/LJTian/DailyBriefing/internal/config"
	"github.com/LJTian/DailyBriefing/internal/storage"
)

// 只生成并发布一期简报后退出：适合 CI / 定时任务调用
func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: $CONFIG_PATH or config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 配置了数据库才记录历史
	var recorder briefing.Recorder
	if cfg.PostgresDSN != "" {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		recorder = store
	}

	runner, err := briefing.Build(ctx, cfg, recorder)
	if err != nil {
		log.Fatalf("init briefing runner failed: %v", err)
	}

	out, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("briefing run failed: %v", err)
	}
	log.Printf("Published: %s", out.StreamURL)
}
