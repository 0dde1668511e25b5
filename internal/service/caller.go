package service

import "classhub/internal/model"

// Caller 调用者身份，由 Handler 从认证上下文中取出后显式传入
type Caller struct {
	UserID string
	Role   string
}

// IsTeacher 是否以教师身份调用
func (c Caller) IsTeacher() bool { return c.Role == model.RoleTeacher }

// IsStudent 是否以学生身份调用
func (c Caller) IsStudent() bool { return c.Role == model.RoleStudent }
