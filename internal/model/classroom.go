package model

import "time"

// Classroom 班级表，对应 classrooms
// AssignmentIDs 为班级作业列表，通过 array_append / array_remove 原子维护
type Classroom struct {
	ClassroomID   string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"classroom_id"`
	Name          string      `gorm:"type:varchar(200);not null"                     json:"name"`
	Description   string      `gorm:"type:text;not null"                             json:"description"`
	Subject       string      `gorm:"type:varchar(200);not null"                     json:"subject"`
	Code          string      `gorm:"type:varchar(16);not null;uniqueIndex"          json:"code"`
	TeacherID     string      `gorm:"type:uuid;not null"                             json:"teacher_id"`
	AssignmentIDs StringArray `gorm:"type:uuid[];not null"                           json:"assignment_ids"`
	BaseModel

	// 关联
	Teacher *User `gorm:"foreignKey:TeacherID;references:UserID" json:"teacher,omitempty"`
}

// TableName 指定表名
func (Classroom) TableName() string { return "classrooms" }

// ClassroomStudent 班级成员表，对应 classroom_students
type ClassroomStudent struct {
	ClassroomID string    `gorm:"type:uuid;primaryKey" json:"classroom_id"`
	StudentID   string    `gorm:"type:uuid;primaryKey" json:"student_id"`
	JoinedAt    time.Time `gorm:"not null"             json:"joined_at"`

	// 关联
	Student *User `gorm:"foreignKey:StudentID;references:UserID" json:"student,omitempty"`
}

// TableName 指定表名
func (ClassroomStudent) TableName() string { return "classroom_students" }
