package repository

import (
	"context"

	"gorm.io/gorm"

	"classhub/internal/model"
)

// CommentRepository 作业评论数据访问接口（只追加）
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.Comment, error)
}

type commentRepo struct {
	db *gorm.DB
}

// NewCommentRepo 创建 CommentRepository 实例
func NewCommentRepo(db *gorm.DB) CommentRepository {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
