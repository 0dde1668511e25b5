package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"classhub/internal/model"
	pkgerrors "classhub/pkg/errors"
)

// AssignmentRepository 作业数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *model.Assignment) error
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	// ListByClassroom 按创建时间倒序；publishedOnly 为 true 时过滤未发布
	ListByClassroom(ctx context.Context, classroomID string, publishedOnly bool) ([]model.Assignment, error)
	// Update 部分更新字段，并把 appendAttachments 追加到现有附件之后
	Update(ctx context.Context, id string, fields map[string]interface{}, appendAttachments []model.Attachment) error
	Delete(ctx context.Context, id string) error
	// ListDueBetween 已发布且收取提交、截止时间落在 [from, to) 的作业
	ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Create(ctx context.Context, assignment *model.Assignment) error {
	if assignment.Attachments == nil {
		assignment.Attachments = datatypes.JSONSlice[model.Attachment]{}
	}
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("assignment_id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) ListByClassroom(ctx context.Context, classroomID string, publishedOnly bool) ([]model.Assignment, error) {
	var assignments []model.Assignment
	db := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("classroom_id = ?", classroomID)
	if publishedOnly {
		db = db.Where("is_published = ?", true)
	}
	err := db.Order("created_at DESC").Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) Update(ctx context.Context, id string, fields map[string]interface{}, appendAttachments []model.Attachment) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	if len(appendAttachments) > 0 {
		updates["attachments"] = gorm.Expr("attachments || ?::jsonb",
			datatypes.JSONSlice[model.Attachment](appendAttachments))
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("assignment_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotAffected
	}
	return nil
}

// Delete 硬删除；提交与评论由外键级联删除
func (r *assignmentRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		Delete(&model.Assignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotAffected
	}
	return nil
}

func (r *assignmentRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Where("is_published = ? AND collect_submissions = ?", true, true).
		Where("due_date >= ? AND due_date < ?", from, to).
		Order("due_date ASC").
		Find(&assignments).Error
	return assignments, err
}
