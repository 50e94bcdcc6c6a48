package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/DailyBriefing/internal/api"
	"github.com/LJTian/DailyBriefing/internal/briefing"
	"github.com/LJTian/DailyBriefing/internal/config"
	"github.com/LJTian/DailyBriefing/internal/scheduler"
	"github.com/LJTian/DailyBriefing/internal/storage"
)

// 单次生成的上限：抓取每个源 20s，加上合成、混音与上传
const runTimeout = 15 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: $CONFIG_PATH or config.yaml)")
	runOnStart := flag.Bool("run-on-start", false, "publish one briefing shortly after startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// 未配置 POSTGRES_DSN 时不记录历史，历史相关接口返回 503
	var (
		recorder briefing.Recorder
		history  api.BriefingStore
	)
	if cfg.PostgresDSN != "" {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		recorder, history = store, store
	} else {
		log.Printf("warn: POSTGRES_DSN not set, briefing history disabled")
	}

	runner, err := briefing.Build(context.Background(), cfg, recorder)
	if err != nil {
		log.Fatalf("init briefing runner failed: %v", err)
	}

	job := func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		if errors.Is(err, briefing.ErrRunInProgress) {
			return fmt.Errorf("%w: %v", scheduler.ErrSkipped, err)
		}
		return err
	}
	s, err := scheduler.New(cfg.CronSpec, job, runTimeout)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	var startupDelay time.Duration
	if *runOnStart {
		// 延迟执行首轮，避免与服务启动争抢资源
		startupDelay = 15 * time.Second
	}
	s.Start(startupDelay)

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 与 /feed.json 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	trigger := func(ctx context.Context) (*briefing.Outcome, error) {
		ctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		return runner.Run(ctx)
	}
	apiServer := api.NewServer(history, trigger, cfg.Feed.Path)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
