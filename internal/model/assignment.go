package model

import (
	"time"

	"gorm.io/datatypes"
)

// Attachment 附件值对象，按值嵌入作业或提交（JSONB）
type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Key         string `json:"key"`
	Driver      string `json:"driver"`
}

// Assignment 作业表，对应 assignments
// 布尔与分值字段不设 gorm default，避免零值被忽略；默认值由迁移脚本与服务层负责
type Assignment struct {
	AssignmentID       string                          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	ClassroomID        string                          `gorm:"type:uuid;not null;index"                       json:"classroom_id"`
	TeacherID          string                          `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Title              string                          `gorm:"type:varchar(300);not null"                     json:"title"`
	Description        string                          `gorm:"type:text;not null"                             json:"description"`
	DueDate            *time.Time                      `gorm:"type:timestamptz"                               json:"due_date"`
	Points             int                             `gorm:"not null"                                       json:"points"`
	IsPublished        bool                            `gorm:"not null"                                       json:"is_published"`
	CollectSubmissions bool                            `gorm:"not null"                                       json:"collect_submissions"`
	Attachments        datatypes.JSONSlice[Attachment] `gorm:"type:jsonb;not null"                            json:"attachments"`
	BaseModel

	// 关联
	Classroom *Classroom `gorm:"foreignKey:ClassroomID;references:ClassroomID" json:"classroom,omitempty"`
	Teacher   *User      `gorm:"foreignKey:TeacherID;references:UserID"       json:"teacher,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string { return "assignments" }

// Submission 学生提交表，对应 submissions，(assignment_id, student_id) 唯一
type Submission struct {
	SubmissionID string                          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"submission_id"`
	AssignmentID string                          `gorm:"type:uuid;not null"                             json:"assignment_id"`
	StudentID    string                          `gorm:"type:uuid;not null"                             json:"student_id"`
	Attachments  datatypes.JSONSlice[Attachment] `gorm:"type:jsonb;not null"                            json:"attachments"`
	SubmittedAt  time.Time                       `gorm:"not null"                                       json:"submitted_at"`
	Grade        *float64                        `gorm:"type:numeric(10,2)"                             json:"grade"`
	Feedback     *string                         `gorm:"type:text"                                      json:"feedback"`
	IsGraded     bool                            `gorm:"not null"                                       json:"is_graded"`

	// 关联
	Student *User `gorm:"foreignKey:StudentID;references:UserID" json:"student,omitempty"`
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }

// Comment 作业评论表，对应 assignment_comments，只追加
type Comment struct {
	CommentID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"comment_id"`
	AssignmentID string    `gorm:"type:uuid;not null"                             json:"assignment_id"`
	AuthorID     string    `gorm:"type:uuid;not null"                             json:"author_id"`
	Text         string    `gorm:"type:text;not null"                             json:"text"`
	CreatedAt    time.Time `gorm:"not null"                                       json:"created_at"`

	// 关联
	Author *User `gorm:"foreignKey:AuthorID;references:UserID" json:"author,omitempty"`
}

// TableName 指定表名
func (Comment) TableName() string { return "assignment_comments" }
