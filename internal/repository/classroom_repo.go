package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"classhub/internal/model"
	pkgerrors "classhub/pkg/errors"
)

// ClassroomRepository 班级与成员数据访问接口
type ClassroomRepository interface {
	Create(ctx context.Context, classroom *model.Classroom) error
	GetByID(ctx context.Context, id string) (*model.Classroom, error)
	GetByCode(ctx context.Context, code string) (*model.Classroom, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]model.Classroom, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Classroom, error)

	// AddStudent 加入班级，已是成员时返回 false
	AddStudent(ctx context.Context, classroomID, studentID string) (bool, error)
	IsStudent(ctx context.Context, classroomID, studentID string) (bool, error)
	ListStudents(ctx context.Context, classroomID string) ([]model.User, error)

	// AttachAssignment / DetachAssignment 原子维护班级作业列表
	AttachAssignment(ctx context.Context, classroomID, assignmentID string) error
	DetachAssignment(ctx context.Context, classroomID, assignmentID string) error
}

type classroomRepo struct {
	db *gorm.DB
}

// NewClassroomRepo 创建 ClassroomRepository 实例
func NewClassroomRepo(db *gorm.DB) ClassroomRepository {
	return &classroomRepo{db: db}
}

func (r *classroomRepo) Create(ctx context.Context, classroom *model.Classroom) error {
	if classroom.AssignmentIDs == nil {
		classroom.AssignmentIDs = model.StringArray{}
	}
	return r.db.WithContext(ctx).Create(classroom).Error
}

func (r *classroomRepo) GetByID(ctx context.Context, id string) (*model.Classroom, error) {
	var classroom model.Classroom
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("classroom_id = ?", id).
		First(&classroom).Error
	if err != nil {
		return nil, err
	}
	return &classroom, nil
}

func (r *classroomRepo) GetByCode(ctx context.Context, code string) (*model.Classroom, error) {
	var classroom model.Classroom
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&classroom).Error
	if err != nil {
		return nil, err
	}
	return &classroom, nil
}

func (r *classroomRepo) ListByTeacher(ctx context.Context, teacherID string) ([]model.Classroom, error) {
	var classrooms []model.Classroom
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&classrooms).Error
	return classrooms, err
}

func (r *classroomRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Classroom, error) {
	var classrooms []model.Classroom
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Joins("JOIN classroom_students cs ON cs.classroom_id = classrooms.classroom_id").
		Where("cs.student_id = ?", studentID).
		Order("cs.joined_at DESC").
		Find(&classrooms).Error
	return classrooms, err
}

func (r *classroomRepo) AddStudent(ctx context.Context, classroomID, studentID string) (bool, error) {
	member := &model.ClassroomStudent{
		ClassroomID: classroomID,
		StudentID:   studentID,
		JoinedAt:    time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *classroomRepo) IsStudent(ctx context.Context, classroomID, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ClassroomStudent{}).
		Where("classroom_id = ? AND student_id = ?", classroomID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *classroomRepo) ListStudents(ctx context.Context, classroomID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN classroom_students cs ON cs.student_id = users.user_id").
		Where("cs.classroom_id = ?", classroomID).
		Order("users.name ASC").
		Find(&users).Error
	return users, err
}

func (r *classroomRepo) AttachAssignment(ctx context.Context, classroomID, assignmentID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Classroom{}).
		Where("classroom_id = ?", classroomID).
		Update("assignment_ids", gorm.Expr("array_append(assignment_ids, ?::uuid)", assignmentID))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotAffected
	}
	return nil
}

func (r *classroomRepo) DetachAssignment(ctx context.Context, classroomID, assignmentID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Classroom{}).
		Where("classroom_id = ?", classroomID).
		Update("assignment_ids", gorm.Expr("array_remove(assignment_ids, ?::uuid)", assignmentID)).Error
}
