package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User       UserRepository
	Classroom  ClassroomRepository
	Assignment AssignmentRepository
	Submission SubmissionRepository
	Comment    CommentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		User:       NewUserRepo(db),
		Classroom:  NewClassroomRepo(db),
		Assignment: NewAssignmentRepo(db),
		Submission: NewSubmissionRepo(db),
		Comment:    NewCommentRepo(db),
	}
}

// BeginTx 开启事务
// 未绑定数据库（单元测试中直接组装 mock）时返回 nil，调用方需判空
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务的 Repository 聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
