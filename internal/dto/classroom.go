package dto

// ── 班级模块 DTO ──

// CreateClassroomRequest 创建班级请求
type CreateClassroomRequest struct {
	Name        string `json:"name"        binding:"required,min=1,max=200"`
	Subject     string `json:"subject"     binding:"max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// JoinClassroomRequest 凭邀请码加入班级
type JoinClassroomRequest struct {
	Code string `json:"code" binding:"required,min=4,max=16"`
}

// ClassroomResponse 班级信息
type ClassroomResponse struct {
	ClassroomID   string        `json:"classroom_id"`
	Name          string        `json:"name"`
	Subject       string        `json:"subject"`
	Description   string        `json:"description"`
	Code          string        `json:"code"`
	Teacher       *UserSummary  `json:"teacher,omitempty"`
	AssignmentIDs []string      `json:"assignment_ids"`
	Students      []UserSummary `json:"students,omitempty"` // 仅详情接口返回
	CreatedAt     string        `json:"created_at"`
}
