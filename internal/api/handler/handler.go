package handler

import (
	"classhub/internal/service"
	"classhub/pkg/storage"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Classroom  *ClassroomHandler
	Assignment *AssignmentHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
// rules 为附件上传限制，在进入 Service 前校验
func NewHandler(svc *service.Service, rules storage.Rules) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Classroom:  NewClassroomHandler(svc.Classroom),
		Assignment: NewAssignmentHandler(svc.Assignment, rules),
		Export:     NewExportHandler(svc.Export),
	}
}
