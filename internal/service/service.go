package service

import (
	"go.uber.org/zap"

	"classhub/config"
	"classhub/internal/repository"
	"classhub/pkg/jwt"
	"classhub/pkg/mailer"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Classroom  ClassroomService
	Assignment AssignmentService
	Reminder   ReminderService
	Export     ExportService
}

// Deps 外部协作方；Blacklist / Markers 为 nil 时对应功能降级
type Deps struct {
	Store     AttachmentStore
	Notifier  Notifier
	Mailer    mailer.Mailer
	Blacklist TokenBlacklist
	Markers   ReminderMarker
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	deps Deps,
	logger *zap.Logger,
) (*Service, error) {
	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	return &Service{
		Auth:       NewAuthService(repo, jwtMgr, deps.Blacklist, logger),
		Classroom:  NewClassroomService(repo, logger),
		Assignment: NewAssignmentService(repo, deps.Store, deps.Notifier, logger),
		Reminder:   NewReminderService(repo, deps.Mailer, deps.Markers, loc, logger),
		Export:     NewExportService(repo, logger),
	}, nil
}
