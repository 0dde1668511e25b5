package dto

import "time"

// ── 作业模块 DTO ──

// CreateAssignmentRequest 创建作业（multipart 表单解析而来）
type CreateAssignmentRequest struct {
	Title              string
	Description        string
	DueDate            *time.Time
	Points             *int
	ClassroomID        string
	TeacherID          string
	CollectSubmissions *bool
}

// UpdateAssignmentRequest 部分更新作业，nil 字段保持不变
type UpdateAssignmentRequest struct {
	Title              *string
	Description        *string
	DueDate            *time.Time
	ClearDueDate       bool // dueDate 传空字符串时清除截止时间
	Points             *int
	CollectSubmissions *bool
}

// GradeRequest 批改请求
type GradeRequest struct {
	StudentID string   `json:"student_id"`
	Grade     *float64 `json:"grade"    binding:"required"`
	Feedback  *string  `json:"feedback" binding:"omitempty,max=5000"`
}

// CommentRequest 发表评论
type CommentRequest struct {
	Text string `json:"text" binding:"required,max=5000"`
}

// ── 作业模块响应 ──

// AttachmentResponse 附件
type AttachmentResponse struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SubmissionResponse 提交记录；Status 为读取时计算的 on_time / late
type SubmissionResponse struct {
	SubmissionID string               `json:"submission_id"`
	AssignmentID string               `json:"assignment_id"`
	StudentID    string               `json:"student_id"`
	Student      *UserSummary         `json:"student,omitempty"`
	Attachments  []AttachmentResponse `json:"attachments"`
	SubmittedAt  string               `json:"submitted_at"`
	Status       string               `json:"status"`
	Grade        *float64             `json:"grade"`
	Feedback     *string              `json:"feedback"`
	IsGraded     bool                 `json:"is_graded"`
}

// SubmissionStatus 学生视角下自己的提交状态
type SubmissionStatus struct {
	Submitted   bool     `json:"submitted"`
	SubmittedAt *string  `json:"submitted_at"`
	Status      string   `json:"status,omitempty"`
	Grade       *float64 `json:"grade"`
	Feedback    *string  `json:"feedback"`
	IsGraded    bool     `json:"is_graded"`
}

// CommentResponse 评论
type CommentResponse struct {
	CommentID string       `json:"comment_id"`
	AuthorID  string       `json:"author_id"`
	Author    *UserSummary `json:"author,omitempty"`
	Text      string       `json:"text"`
	CreatedAt string       `json:"created_at"`
}

// AssignmentResponse 作业
// 教师视角 Submissions 为全部提交；学生视角仅含本人提交，并附带 SubmissionStatus
type AssignmentResponse struct {
	AssignmentID       string               `json:"assignment_id"`
	ClassroomID        string               `json:"classroom_id"`
	TeacherID          string               `json:"teacher_id"`
	Teacher            *UserSummary         `json:"teacher,omitempty"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	DueDate            *string              `json:"due_date"`
	Points             int                  `json:"points"`
	IsPublished        bool                 `json:"is_published"`
	CollectSubmissions bool                 `json:"collect_submissions"`
	Attachments        []AttachmentResponse `json:"attachments"`
	Submissions        []SubmissionResponse `json:"submissions"`
	SubmissionCount    *int                 `json:"submission_count,omitempty"`
	GradedCount        *int                 `json:"graded_count,omitempty"`
	SubmissionStatus   *SubmissionStatus    `json:"submission_status,omitempty"`
	Comments           []CommentResponse    `json:"comments,omitempty"`
	CreatedAt          string               `json:"created_at"`
	UpdatedAt          string               `json:"updated_at"`
}
