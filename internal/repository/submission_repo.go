package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"classhub/internal/model"
	pkgerrors "classhub/pkg/errors"
)

// SubmissionRepository 提交数据访问接口
type SubmissionRepository interface {
	// CreateIfAbsent 原子插入；该学生已有提交时不写入并返回 false
	CreateIfAbsent(ctx context.Context, submission *model.Submission) (bool, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*model.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error)
	ListByAssignments(ctx context.Context, assignmentIDs []string) ([]model.Submission, error)
	ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]model.Submission, error)
	// UpdateGrade 仅更新 grade / feedback / is_graded
	UpdateGrade(ctx context.Context, assignmentID, studentID string, grade *float64, feedback *string) error
	Delete(ctx context.Context, assignmentID, studentID string) error
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) CreateIfAbsent(ctx context.Context, submission *model.Submission) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(submission)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *submissionRepo) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) ListByAssignments(ctx context.Context, assignmentIDs []string) ([]model.Submission, error) {
	if len(assignmentIDs) == 0 {
		return []model.Submission{}, nil
	}
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("assignment_id IN ?", assignmentIDs).
		Order("submitted_at ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]model.Submission, error) {
	if len(assignmentIDs) == 0 {
		return []model.Submission{}, nil
	}
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND assignment_id IN ?", studentID, assignmentIDs).
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) UpdateGrade(ctx context.Context, assignmentID, studentID string, grade *float64, feedback *string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Updates(map[string]interface{}{
			"grade":     grade,
			"feedback":  feedback,
			"is_graded": true,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotAffected
	}
	return nil
}

func (r *submissionRepo) Delete(ctx context.Context, assignmentID, studentID string) error {
	result := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Delete(&model.Submission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotAffected
	}
	return nil
}
