package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"classhub/internal/dto"
	"classhub/internal/model"
	"classhub/internal/repository"
)

var (
	ErrClassroomNotFound     = errors.New("classroom not found")
	ErrClassroomAccessDenied = errors.New("no access to this classroom")
	ErrAlreadyEnrolled       = errors.New("already enrolled in this classroom")
	ErrStudentOnly           = errors.New("only students can join classrooms")
	ErrTeacherOnly           = errors.New("only teachers can create classrooms")
	ErrCodeExhausted         = errors.New("could not allocate a classroom code")
)

const (
	classCodeLength   = 6
	classCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 去掉易混淆的 0/O/1/I
	classCodeAttempts = 5
)

// ClassroomService 班级与成员业务接口
type ClassroomService interface {
	Create(ctx context.Context, caller Caller, req *dto.CreateClassroomRequest) (*dto.ClassroomResponse, error)
	Join(ctx context.Context, caller Caller, code string) (*dto.ClassroomResponse, error)
	List(ctx context.Context, caller Caller) ([]dto.ClassroomResponse, error)
	Get(ctx context.Context, caller Caller, id string) (*dto.ClassroomResponse, error)
}

type classroomService struct {
	repo     *repository.Repository
	logger   *zap.Logger
	codeFunc func() (string, error)
}

// NewClassroomService 创建 ClassroomService 实例
func NewClassroomService(repo *repository.Repository, logger *zap.Logger) ClassroomService {
	return &classroomService{repo: repo, logger: logger, codeFunc: generateClassCode}
}

// ────────────────────── Create ──────────────────────

func (s *classroomService) Create(ctx context.Context, caller Caller, req *dto.CreateClassroomRequest) (*dto.ClassroomResponse, error) {
	if !caller.IsTeacher() {
		return nil, ErrTeacherOnly
	}

	for attempt := 0; attempt < classCodeAttempts; attempt++ {
		code, err := s.codeFunc()
		if err != nil {
			return nil, err
		}

		classroom := &model.Classroom{
			Name:          strings.TrimSpace(req.Name),
			Subject:       strings.TrimSpace(req.Subject),
			Description:   strings.TrimSpace(req.Description),
			Code:          code,
			TeacherID:     caller.UserID,
			AssignmentIDs: model.StringArray{},
		}
		err = s.repo.Classroom.Create(ctx, classroom)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue // 邀请码冲突，重新生成
		}
		if err != nil {
			s.logger.Error("创建班级失败", zap.Error(err))
			return nil, err
		}

		s.logger.Info("班级创建成功", zap.String("classroom_id", classroom.ClassroomID), zap.String("code", code))
		resp := toClassroomResponse(classroom, nil)
		return &resp, nil
	}

	s.logger.Error("班级邀请码多次冲突", zap.Int("attempts", classCodeAttempts))
	return nil, ErrCodeExhausted
}

// ────────────────────── Join ──────────────────────

func (s *classroomService) Join(ctx context.Context, caller Caller, code string) (*dto.ClassroomResponse, error) {
	if !caller.IsStudent() {
		return nil, ErrStudentOnly
	}

	classroom, err := s.repo.Classroom.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		s.logger.Error("按邀请码查询班级失败", zap.Error(err))
		return nil, err
	}

	added, err := s.repo.Classroom.AddStudent(ctx, classroom.ClassroomID, caller.UserID)
	if err != nil {
		s.logger.Error("加入班级失败", zap.String("classroom_id", classroom.ClassroomID), zap.Error(err))
		return nil, err
	}
	if !added {
		return nil, ErrAlreadyEnrolled
	}

	resp := toClassroomResponse(classroom, nil)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *classroomService) List(ctx context.Context, caller Caller) ([]dto.ClassroomResponse, error) {
	var (
		classrooms []model.Classroom
		err        error
	)
	if caller.IsTeacher() {
		classrooms, err = s.repo.Classroom.ListByTeacher(ctx, caller.UserID)
	} else {
		classrooms, err = s.repo.Classroom.ListByStudent(ctx, caller.UserID)
	}
	if err != nil {
		s.logger.Error("查询班级列表失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ClassroomResponse, 0, len(classrooms))
	for i := range classrooms {
		result = append(result, toClassroomResponse(&classrooms[i], nil))
	}
	return result, nil
}

// ────────────────────── Get ──────────────────────

func (s *classroomService) Get(ctx context.Context, caller Caller, id string) (*dto.ClassroomResponse, error) {
	classroom, _, err := resolveClassroomAccess(ctx, s.repo, s.logger, caller, id)
	if err != nil {
		return nil, err
	}

	students, err := s.repo.Classroom.ListStudents(ctx, id)
	if err != nil {
		s.logger.Error("查询班级成员失败", zap.String("classroom_id", id), zap.Error(err))
		return nil, err
	}

	resp := toClassroomResponse(classroom, students)
	return &resp, nil
}

// ── 访问控制 ──

// resolveClassroomAccess 校验调用者是班级教师或已加入的学生
// 返回值 isTeacher 表示调用者是否为该班级的任课教师
func resolveClassroomAccess(
	ctx context.Context,
	repo *repository.Repository,
	logger *zap.Logger,
	caller Caller,
	classroomID string,
) (*model.Classroom, bool, error) {
	classroom, err := repo.Classroom.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrClassroomNotFound
		}
		logger.Error("查询班级失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, false, err
	}

	if classroom.TeacherID == caller.UserID {
		return classroom, true, nil
	}

	if !caller.IsStudent() {
		return nil, false, ErrClassroomAccessDenied
	}
	enrolled, err := repo.Classroom.IsStudent(ctx, classroomID, caller.UserID)
	if err != nil {
		logger.Error("查询班级成员关系失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, false, err
	}
	if !enrolled {
		return nil, false, ErrClassroomAccessDenied
	}
	return classroom, false, nil
}

// ── 辅助函数 ──

func generateClassCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(classCodeAlphabet)))
	for i := 0; i < classCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(classCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func toClassroomResponse(c *model.Classroom, students []model.User) dto.ClassroomResponse {
	ids := []string(c.AssignmentIDs)
	if ids == nil {
		ids = []string{}
	}
	resp := dto.ClassroomResponse{
		ClassroomID:   c.ClassroomID,
		Name:          c.Name,
		Subject:       c.Subject,
		Description:   c.Description,
		Code:          c.Code,
		Teacher:       toUserSummary(c.Teacher),
		AssignmentIDs: ids,
		CreatedAt:     formatTime(c.CreatedAt),
	}
	if students != nil {
		resp.Students = make([]dto.UserSummary, 0, len(students))
		for i := range students {
			resp.Students = append(resp.Students, *toUserSummary(&students[i]))
		}
	}
	return resp
}
