package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job 一次定时任务，例如生成并发布当天的简报
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	job     Job
	timeout time.Duration
}

// ErrSkipped 由 Job 返回时只记录为跳过，而不是失败（例如上一轮尚未结束）
var ErrSkipped = errors.New("scheduler: run skipped")

// New 按 cron 表达式注册任务；timeout 为单次执行的上限，<=0 表示不限制
func New(spec string, job Job, timeout time.Duration) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		job:     job,
		timeout: timeout,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start 启动定时器；startupDelay > 0 时在启动后额外执行一轮
func (s *Scheduler) Start(startupDelay time.Duration) {
	s.cron.Start()
	if startupDelay > 0 {
		time.AfterFunc(startupDelay, func() {
			go s.runOnce()
		})
	}
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Cron 暴露底层 cron，便于追加其他定时任务
func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log.Println("start scheduled job...")
	start := time.Now()
	err := s.job(ctx)
	switch {
	case errors.Is(err, ErrSkipped):
		log.Printf("scheduled job skipped: %v", err)
	case err != nil:
		log.Printf("scheduled job error: %v", err)
	default:
		log.Printf("scheduled job done in %s", time.Since(start).Round(time.Millisecond))
	}
}
