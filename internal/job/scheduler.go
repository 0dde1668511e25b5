// Package job 后台定时任务
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"classhub/config"
	"classhub/internal/service"
)

// reminderTimeout 单次提醒扫描的最长耗时
const reminderTimeout = 10 * time.Minute

// ReminderSweeper 截止提醒扫描
type ReminderSweeper interface {
	SendDueReminders(ctx context.Context, now time.Time) (*service.ReminderSummary, error)
}

// Scheduler 基于 cron 表达式的任务调度器
type Scheduler struct {
	cron    *cron.Cron
	sweeper ReminderSweeper
	logger  *zap.Logger
}

// NewScheduler 按配置注册截止提醒任务；任务仍在执行时跳过下一次触发
func NewScheduler(cfg *config.ReminderConfig, sweeper ReminderSweeper, logger *zap.Logger) (*Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.Cron, s.runReminders); err != nil {
		return nil, fmt.Errorf("invalid reminder cron %q: %w", cfg.Cron, err)
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("定时任务已注册", zap.Time("next", e.Next))
	}
}

// Stop 停止调度，返回的 ctx 在运行中的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
	defer cancel()

	if _, err := s.sweeper.SendDueReminders(ctx, time.Now()); err != nil {
		s.logger.Error("截止提醒任务失败", zap.Error(err))
	}
}

// cronLogger 将 cron 内部日志转接到 zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
