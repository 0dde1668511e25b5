package model

// 用户角色
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User 用户表，对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name         string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string `gorm:"type:varchar(20);not null"                      json:"role"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsTeacher 是否为教师
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
