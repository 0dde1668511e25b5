package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classhub/config"
	"classhub/internal/api/handler"
	"classhub/internal/api/router"
	"classhub/internal/job"
	"classhub/internal/repository"
	"classhub/internal/service"
	"classhub/pkg/database"
	"classhub/pkg/jwt"
	applogger "classhub/pkg/logger"
	"classhub/pkg/mailer"
	"classhub/pkg/redis"
	"classhub/pkg/storage"
)

func main() {
	// 1. 加载配置（CLASSHUB_CONFIG_FILE 可指定配置文件路径）
	cfg, err := config.Load(os.Getenv("CLASSHUB_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("storage", cfg.Storage.Driver),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流与提醒去重将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 附件存储与邮件
	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.Fatal("附件存储初始化失败", zap.Error(err))
	}
	rules := storage.RulesFromConfig(&cfg.Upload)
	attachments := storage.NewManager(store, rules)

	mail := mailer.New(&cfg.Mail, logger)
	notifier := service.NewMailNotifier(mail, logger)

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)

	deps := service.Deps{
		Store:    attachments,
		Notifier: notifier,
		Mailer:   mail,
	}
	// 避免将 nil *redis.Client 装入接口
	if rdb != nil {
		deps.Blacklist = rdb
		deps.Markers = rdb
	}

	svc, err := service.NewService(cfg, repo, jwtMgr, deps, logger)
	if err != nil {
		logger.Fatal("服务初始化失败", zap.Error(err))
	}
	h := handler.NewHandler(svc, rules)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. 截止提醒定时任务
	var scheduler *job.Scheduler
	if cfg.Reminder.Enabled {
		scheduler, err = job.NewScheduler(&cfg.Reminder, svc.Reminder, logger)
		if err != nil {
			logger.Fatal("定时任务初始化失败", zap.Error(err))
		}
		scheduler.Start()
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	// 附件上传体积较大，读写超时放宽
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待运行中的提醒任务结束
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("提醒任务未在超时内结束")
		}
	}

	// 等待后台通知发送完毕
	notifier.Wait()

	// 关闭数据库连接
	sqlDB.Close()

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
