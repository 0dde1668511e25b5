package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"classhub/internal/dto"
	"classhub/internal/model"
	"classhub/internal/repository"
	pkgerrors "classhub/pkg/errors"
	"classhub/pkg/storage"
)

// ── 作业模块业务错误 ──

var (
	ErrMissingField       = errors.New("missing required field")
	ErrTitleRequired      = errors.New("title is required")
	ErrInvalidPoints      = errors.New("points must not be negative")
	ErrNotTeacher         = errors.New("only teachers can create assignments")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrNotAssignmentOwner = errors.New("only the assignment's teacher can do this")
	ErrNotEnrolled        = errors.New("not enrolled in this classroom")
	ErrSubmissionsClosed  = errors.New("submissions are not allowed for this assignment")
	ErrAlreadySubmitted   = errors.New("already submitted")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAttachmentUpload   = errors.New("failed to upload attachments")
	ErrCommentEmpty       = errors.New("comment text is required")
)

const defaultPoints = 100

// SubmissionTiming 提交时效，读取时计算，从不落库
type SubmissionTiming string

const (
	TimingOnTime SubmissionTiming = "on_time"
	TimingLate   SubmissionTiming = "late"
)

// Classify 无截止时间或提交不晚于截止时间为 on_time，否则 late
func Classify(due *time.Time, submittedAt time.Time) SubmissionTiming {
	if due == nil || !submittedAt.After(*due) {
		return TimingOnTime
	}
	return TimingLate
}

// AttachmentStore 附件存储
type AttachmentStore interface {
	Save(ctx context.Context, folder string, fh *multipart.FileHeader) (*storage.Object, error)
	Remove(ctx context.Context, key string) error
}

// AssignmentService 作业生命周期业务接口
//
// 状态流转：
//   - 教师创建（默认发布、默认收取提交）→ 编辑 / 切换发布 / 删除（级联）
//   - 学生提交（每人至多一份）→ 教师批改 → 学生可随时撤回（硬删除，成绩一并丢失）
type AssignmentService interface {
	Create(ctx context.Context, caller Caller, req *dto.CreateAssignmentRequest, files []*multipart.FileHeader) (*dto.AssignmentResponse, error)
	ListByClassroom(ctx context.Context, caller Caller, classroomID string) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, caller Caller, id string) (*dto.AssignmentResponse, error)
	Submit(ctx context.Context, caller Caller, id string, files []*multipart.FileHeader) (*dto.SubmissionResponse, error)
	// MarkDone 无附件提交
	MarkDone(ctx context.Context, caller Caller, id string) (*dto.SubmissionResponse, error)
	Unsubmit(ctx context.Context, caller Caller, id string) error
	Grade(ctx context.Context, caller Caller, id, studentID string, req *dto.GradeRequest) (*dto.SubmissionResponse, error)
	AddComment(ctx context.Context, caller Caller, id, text string) (*dto.CommentResponse, error)
	Update(ctx context.Context, caller Caller, id string, req *dto.UpdateAssignmentRequest, files []*multipart.FileHeader) (*dto.AssignmentResponse, error)
	TogglePublish(ctx context.Context, caller Caller, id string) (*dto.AssignmentResponse, error)
	Delete(ctx context.Context, caller Caller, id string) error
}

type assignmentService struct {
	repo     *repository.Repository
	store    AttachmentStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAssignmentService 创建 AssignmentService 实例
// notifier 可为 nil（不发送通知）
func NewAssignmentService(
	repo *repository.Repository,
	store AttachmentStore,
	notifier Notifier,
	logger *zap.Logger,
) AssignmentService {
	return &assignmentService{
		repo:     repo,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── Create ──────────────────────

func (s *assignmentService) Create(ctx context.Context, caller Caller, req *dto.CreateAssignmentRequest, files []*multipart.FileHeader) (*dto.AssignmentResponse, error) {
	classroomID := strings.TrimSpace(req.ClassroomID)
	teacherID := strings.TrimSpace(req.TeacherID)
	if teacherID == "" {
		teacherID = caller.UserID
	}

	var missing []string
	if classroomID == "" {
		missing = append(missing, "classroom")
	}
	if teacherID == "" {
		missing = append(missing, "teacher")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	points := defaultPoints
	if req.Points != nil {
		points = *req.Points
	}
	if points < 0 {
		return nil, ErrInvalidPoints
	}

	collect := true
	if req.CollectSubmissions != nil {
		collect = *req.CollectSubmissions
	}

	// 1. 教师身份：必须是调用者本人且角色为 teacher
	if teacherID != caller.UserID || !caller.IsTeacher() {
		return nil, ErrNotTeacher
	}
	teacher, err := s.repo.User.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTeacher
		}
		s.logger.Error("查询教师失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}
	if !teacher.IsTeacher() {
		return nil, ErrNotTeacher
	}

	// 2. 班级存在且由该教师任教
	classroom, err := s.repo.Classroom.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		s.logger.Error("查询班级失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, err
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrClassroomAccessDenied
	}

	// 3. 上传附件：单个失败仅记录并跳过
	attachments := s.uploadAll(ctx, "assignments/"+classroomID, files)

	assignment := &model.Assignment{
		ClassroomID:        classroomID,
		TeacherID:          teacherID,
		Title:              title,
		Description:        strings.TrimSpace(req.Description),
		DueDate:            utcPtr(req.DueDate),
		Points:             points,
		IsPublished:        true,
		CollectSubmissions: collect,
		Attachments:        datatypes.JSONSlice[model.Attachment](attachments),
	}

	// 4. 作业落库与加入班级作业列表在同一事务内
	if err := s.createInTx(ctx, assignment); err != nil {
		s.removeAttachments(ctx, attachments)
		return nil, err
	}

	s.logger.Info("作业创建成功",
		zap.String("assignment_id", assignment.AssignmentID),
		zap.String("classroom_id", classroomID),
		zap.Int("attachments", len(attachments)))

	// 5. 通知班级学生（不阻塞、不影响结果）
	s.notifyPosted(ctx, classroom, assignment)

	assignment.Teacher = teacher
	resp := s.toAssignmentResponse(assignment, []model.Submission{}, nil, true)
	return &resp, nil
}

func (s *assignmentService) createInTx(ctx context.Context, assignment *model.Assignment) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	if err := txRepo.Assignment.Create(ctx, assignment); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("创建作业失败", zap.Error(err))
		return err
	}

	if err := txRepo.Classroom.AttachAssignment(ctx, assignment.ClassroomID, assignment.AssignmentID); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		if errors.Is(err, pkgerrors.ErrNotAffected) {
			return ErrClassroomNotFound
		}
		s.logger.Error("班级作业列表追加失败", zap.String("classroom_id", assignment.ClassroomID), zap.Error(err))
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *assignmentService) notifyPosted(ctx context.Context, classroom *model.Classroom, assignment *model.Assignment) {
	if s.notifier == nil {
		return
	}
	students, err := s.repo.Classroom.ListStudents(ctx, classroom.ClassroomID)
	if err != nil {
		s.logger.Warn("查询通知收件人失败", zap.String("classroom_id", classroom.ClassroomID), zap.Error(err))
		return
	}
	s.notifier.AssignmentPosted(ctx, classroom, assignment, studentEmails(students, nil))
}

// ────────────────────── List ──────────────────────

func (s *assignmentService) ListByClassroom(ctx context.Context, caller Caller, classroomID string) ([]dto.AssignmentResponse, error) {
	_, isTeacher, err := resolveClassroomAccess(ctx, s.repo, s.logger, caller, classroomID)
	if err != nil {
		return nil, err
	}

	// 学生只能看到已发布的作业
	assignments, err := s.repo.Assignment.ListByClassroom(ctx, classroomID, !isTeacher)
	if err != nil {
		s.logger.Error("查询作业列表失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.AssignmentID)
	}

	// 教师取全部提交；学生只取自己的提交，不暴露他人记录
	var submissions []model.Submission
	if isTeacher {
		submissions, err = s.repo.Submission.ListByAssignments(ctx, ids)
	} else {
		submissions, err = s.repo.Submission.ListByStudent(ctx, caller.UserID, ids)
	}
	if err != nil {
		s.logger.Error("查询提交记录失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, err
	}

	byAssignment := make(map[string][]model.Submission, len(assignments))
	for _, sub := range submissions {
		byAssignment[sub.AssignmentID] = append(byAssignment[sub.AssignmentID], sub)
	}

	result := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		result = append(result, s.toAssignmentResponse(&assignments[i], byAssignment[assignments[i].AssignmentID], nil, isTeacher))
	}
	return result, nil
}

// ────────────────────── Get ──────────────────────

func (s *assignmentService) Get(ctx context.Context, caller Caller, id string) (*dto.AssignmentResponse, error) {
	assignment, isTeacher, err := s.loadForMember(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	var submissions []model.Submission
	if isTeacher {
		submissions, err = s.repo.Submission.ListByAssignment(ctx, id)
		if err != nil {
			s.logger.Error("查询提交记录失败", zap.String("assignment_id", id), zap.Error(err))
			return nil, err
		}
	} else {
		own, err := s.repo.Submission.GetByAssignmentAndStudent(ctx, id, caller.UserID)
		switch {
		case err == nil:
			submissions = []model.Submission{*own}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			s.logger.Error("查询提交记录失败", zap.String("assignment_id", id), zap.Error(err))
			return nil, err
		}
	}

	comments, err := s.repo.Comment.ListByAssignment(ctx, id)
	if err != nil {
		s.logger.Error("查询评论失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}

	resp := s.toAssignmentResponse(assignment, submissions, comments, isTeacher)
	return &resp, nil
}

// loadForMember 读取作业并校验调用者为班级成员；学生不可见未发布作业
func (s *assignmentService) loadForMember(ctx context.Context, caller Caller, id string) (*model.Assignment, bool, error) {
	assignment, err := s.getAssignment(ctx, id)
	if err != nil {
		return nil, false, err
	}

	_, isTeacher, err := resolveClassroomAccess(ctx, s.repo, s.logger, caller, assignment.ClassroomID)
	if err != nil {
		if errors.Is(err, ErrClassroomNotFound) {
			return nil, false, ErrAssignmentNotFound
		}
		return nil, false, err
	}
	isTeacher = isTeacher || assignment.TeacherID == caller.UserID

	if !isTeacher && !assignment.IsPublished {
		return nil, false, ErrAssignmentNotFound
	}
	return assignment, isTeacher, nil
}

// ────────────────────── Submit ──────────────────────

func (s *assignmentService) Submit(ctx context.Context, caller Caller, id string, files []*multipart.FileHeader) (*dto.SubmissionResponse, error) {
	assignment, err := s.getAssignment(ctx, id)
	if err != nil {
		return nil, err
	}

	// 校验顺序：已加入班级 → 允许提交 → 尚未提交
	if err := s.requireEnrolled(ctx, caller, assignment); err != nil {
		return nil, err
	}
	if !assignment.IsPublished {
		return nil, ErrAssignmentNotFound
	}
	if !assignment.CollectSubmissions {
		return nil, ErrSubmissionsClosed
	}

	// 先行检查，避免已提交时仍上传文件；最终以唯一约束为准
	if _, err := s.repo.Submission.GetByAssignmentAndStudent(ctx, id, caller.UserID); err == nil {
		return nil, ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询提交记录失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}

	attachments := s.uploadAll(ctx, "submissions/"+id, files)
	if len(files) > 0 && len(attachments) == 0 {
		return nil, ErrAttachmentUpload
	}

	submission := &model.Submission{
		AssignmentID: id,
		StudentID:    caller.UserID,
		Attachments:  datatypes.JSONSlice[model.Attachment](attachments),
		SubmittedAt:  s.now().UTC(),
	}

	created, err := s.repo.Submission.CreateIfAbsent(ctx, submission)
	if err != nil {
		s.removeAttachments(ctx, attachments)
		s.logger.Error("创建提交失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}
	if !created {
		// 并发的重复提交：另一请求已写入
		s.removeAttachments(ctx, attachments)
		return nil, ErrAlreadySubmitted
	}

	s.logger.Info("作业已提交",
		zap.String("assignment_id", id),
		zap.String("student_id", caller.UserID),
		zap.String("timing", string(Classify(assignment.DueDate, submission.SubmittedAt))))

	resp := toSubmissionResponse(submission, assignment.DueDate)
	return &resp, nil
}

func (s *assignmentService) MarkDone(ctx context.Context, caller Caller, id string) (*dto.SubmissionResponse, error) {
	return s.Submit(ctx, caller, id, nil)
}

// ────────────────────── Unsubmit ──────────────────────

func (s *assignmentService) Unsubmit(ctx context.Context, caller Caller, id string) error {
	assignment, err := s.getAssignment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireEnrolled(ctx, caller, assignment); err != nil {
		return err
	}

	submission, err := s.repo.Submission.GetByAssignmentAndStudent(ctx, id, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 未发布且无提交时按作业不存在处理
			if !assignment.IsPublished {
				return ErrAssignmentNotFound
			}
			return ErrSubmissionNotFound
		}
		s.logger.Error("查询提交记录失败", zap.String("assignment_id", id), zap.Error(err))
		return err
	}

	// 不校验截止时间，已批改的提交撤回后成绩一并删除
	if err := s.repo.Submission.Delete(ctx, id, caller.UserID); err != nil {
		if errors.Is(err, pkgerrors.ErrNotAffected) {
			return ErrSubmissionNotFound
		}
		s.logger.Error("撤回提交失败", zap.String("assignment_id", id), zap.Error(err))
		return err
	}

	if submission.IsGraded {
		s.logger.Warn("已批改的提交被撤回，成绩已丢弃",
			zap.String("assignment_id", id), zap.String("student_id", caller.UserID))
	}
	s.removeAttachments(ctx, submission.Attachments)
	return nil
}

// ────────────────────── Grade ──────────────────────

func (s *assignmentService) Grade(ctx context.Context, caller Caller, id, studentID string, req *dto.GradeRequest) (*dto.SubmissionResponse, error) {
	assignment, err := s.loadForOwner(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, fmt.Errorf("%w: student", ErrMissingField)
	}

	var feedback *string
	if req.Feedback != nil {
		trimmed := strings.TrimSpace(*req.Feedback)
		feedback = &trimmed
	}

	// 仅更新成绩相关字段，提交时间与附件保持不变；不校验成绩与满分的关系
	if err := s.repo.Submission.UpdateGrade(ctx, id, studentID, req.Grade, feedback); err != nil {
		if errors.Is(err, pkgerrors.ErrNotAffected) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("批改失败", zap.String("assignment_id", id), zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	submission, err := s.repo.Submission.GetByAssignmentAndStudent(ctx, id, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询提交记录失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}

	resp := toSubmissionResponse(submission, assignment.DueDate)
	return &resp, nil
}

// ────────────────────── Comment ──────────────────────

func (s *assignmentService) AddComment(ctx context.Context, caller Caller, id, text string) (*dto.CommentResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrCommentEmpty
	}

	if _, _, err := s.loadForMember(ctx, caller, id); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		AssignmentID: id,
		AuthorID:     caller.UserID,
		Text:         text,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Comment.Create(ctx, comment); err != nil {
		s.logger.Error("创建评论失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}

	if author, err := s.repo.User.GetByID(ctx, caller.UserID); err == nil {
		comment.Author = author
	}

	resp := toCommentResponse(comment)
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *assignmentService) Update(ctx context.Context, caller Caller, id string, req *dto.UpdateAssignmentRequest, files []*multipart.FileHeader) (*dto.AssignmentResponse, error) {
	if _, err := s.loadForOwner(ctx, caller, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.ClearDueDate {
		fields["due_date"] = nil
	} else if req.DueDate != nil {
		fields["due_date"] = req.DueDate.UTC()
	}
	if req.Points != nil {
		if *req.Points < 0 {
			return nil, ErrInvalidPoints
		}
		fields["points"] = *req.Points
	}
	if req.CollectSubmissions != nil {
		fields["collect_submissions"] = *req.CollectSubmissions
	}

	// 新附件追加到现有列表之后
	attachments := s.uploadAll(ctx, "assignments/"+id, files)

	if len(fields) > 0 || len(attachments) > 0 {
		fields["updated_at"] = s.now().UTC()
		if err := s.repo.Assignment.Update(ctx, id, fields, attachments); err != nil {
			s.removeAttachments(ctx, attachments)
			if errors.Is(err, pkgerrors.ErrNotAffected) {
				return nil, ErrAssignmentNotFound
			}
			s.logger.Error("更新作业失败", zap.String("assignment_id", id), zap.Error(err))
			return nil, err
		}
	}

	return s.Get(ctx, caller, id)
}

// ────────────────────── Publish ──────────────────────

func (s *assignmentService) TogglePublish(ctx context.Context, caller Caller, id string) (*dto.AssignmentResponse, error) {
	assignment, err := s.loadForOwner(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"is_published": !assignment.IsPublished,
		"updated_at":   s.now().UTC(),
	}
	if err := s.repo.Assignment.Update(ctx, id, fields, nil); err != nil {
		if errors.Is(err, pkgerrors.ErrNotAffected) {
			return nil, ErrAssignmentNotFound
		}
		s.logger.Error("切换发布状态失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}

	return s.Get(ctx, caller, id)
}

// ────────────────────── Delete ──────────────────────

func (s *assignmentService) Delete(ctx context.Context, caller Caller, id string) error {
	assignment, err := s.loadForOwner(ctx, caller, id)
	if err != nil {
		return err
	}

	// 级联删除的提交附件也要清理
	submissions, err := s.repo.Submission.ListByAssignment(ctx, id)
	if err != nil {
		s.logger.Error("查询提交记录失败", zap.String("assignment_id", id), zap.Error(err))
		return err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	if err := txRepo.Classroom.DetachAssignment(ctx, assignment.ClassroomID, id); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("从班级作业列表移除失败", zap.String("assignment_id", id), zap.Error(err))
		return err
	}

	if err := txRepo.Assignment.Delete(ctx, id); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		if errors.Is(err, pkgerrors.ErrNotAffected) {
			return ErrAssignmentNotFound
		}
		s.logger.Error("删除作业失败", zap.String("assignment_id", id), zap.Error(err))
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}

	// 存储清理失败只记录日志
	s.removeAttachments(ctx, assignment.Attachments)
	for _, sub := range submissions {
		s.removeAttachments(ctx, sub.Attachments)
	}

	s.logger.Info("作业已删除", zap.String("assignment_id", id), zap.Int("submissions", len(submissions)))
	return nil
}

// ── 内部辅助 ──

func (s *assignmentService) getAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	return findAssignment(ctx, s.repo, s.logger, id)
}

func (s *assignmentService) loadForOwner(ctx context.Context, caller Caller, id string) (*model.Assignment, error) {
	return ownedAssignment(ctx, s.repo, s.logger, caller, id)
}

func findAssignment(ctx context.Context, repo *repository.Repository, logger *zap.Logger, id string) (*model.Assignment, error) {
	assignment, err := repo.Assignment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		logger.Error("查询作业失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}
	return assignment, nil
}

// ownedAssignment 读取作业并要求调用者为作业创建教师（按身份相等判断，不看班级花名册）
func ownedAssignment(ctx context.Context, repo *repository.Repository, logger *zap.Logger, caller Caller, id string) (*model.Assignment, error) {
	assignment, err := findAssignment(ctx, repo, logger, id)
	if err != nil {
		return nil, err
	}
	if assignment.TeacherID != caller.UserID {
		return nil, ErrNotAssignmentOwner
	}
	return assignment, nil
}

// requireEnrolled 调用者须为作业所在班级的学生
func (s *assignmentService) requireEnrolled(ctx context.Context, caller Caller, assignment *model.Assignment) error {
	enrolled, err := s.repo.Classroom.IsStudent(ctx, assignment.ClassroomID, caller.UserID)
	if err != nil {
		s.logger.Error("查询班级成员关系失败", zap.String("classroom_id", assignment.ClassroomID), zap.Error(err))
		return err
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

// uploadAll 逐个上传；失败的文件记录日志后跳过
func (s *assignmentService) uploadAll(ctx context.Context, folder string, files []*multipart.FileHeader) []model.Attachment {
	attachments := make([]model.Attachment, 0, len(files))
	if s.store == nil {
		if len(files) > 0 {
			s.logger.Error("未配置附件存储，忽略上传", zap.Int("files", len(files)))
		}
		return attachments
	}

	for _, fh := range files {
		obj, err := s.store.Save(ctx, folder, fh)
		if err != nil {
			s.logger.Warn("附件上传失败，已跳过", zap.String("filename", fh.Filename), zap.Error(err))
			continue
		}
		attachments = append(attachments, model.Attachment{
			Filename:    obj.Filename,
			URL:         obj.URL,
			ContentType: obj.ContentType,
			Size:        obj.Size,
			Key:         obj.Key,
			Driver:      obj.Driver,
		})
	}
	return attachments
}

func (s *assignmentService) removeAttachments(ctx context.Context, attachments []model.Attachment) {
	if s.store == nil {
		return
	}
	for _, a := range attachments {
		if a.Key == "" {
			continue
		}
		if err := s.store.Remove(ctx, a.Key); err != nil {
			s.logger.Warn("附件删除失败", zap.String("key", a.Key), zap.Error(err))
		}
	}
}

// studentEmails 收集邮箱，exclude 中的学生跳过
func studentEmails(students []model.User, exclude map[string]bool) []string {
	emails := make([]string, 0, len(students))
	for _, st := range students {
		if st.Email == "" || exclude[st.UserID] {
			continue
		}
		emails = append(emails, st.Email)
	}
	return emails
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ── 响应转换 ──

func (s *assignmentService) toAssignmentResponse(a *model.Assignment, submissions []model.Submission, comments []model.Comment, isTeacher bool) dto.AssignmentResponse {
	resp := dto.AssignmentResponse{
		AssignmentID:       a.AssignmentID,
		ClassroomID:        a.ClassroomID,
		TeacherID:          a.TeacherID,
		Teacher:            toUserSummary(a.Teacher),
		Title:              a.Title,
		Description:        a.Description,
		Points:             a.Points,
		IsPublished:        a.IsPublished,
		CollectSubmissions: a.CollectSubmissions,
		Attachments:        toAttachmentResponses(a.Attachments),
		Submissions:        make([]dto.SubmissionResponse, 0, len(submissions)),
		CreatedAt:          formatTime(a.CreatedAt),
		UpdatedAt:          formatTime(a.UpdatedAt),
	}
	if a.DueDate != nil {
		due := formatTime(*a.DueDate)
		resp.DueDate = &due
	}

	graded := 0
	for i := range submissions {
		if submissions[i].IsGraded {
			graded++
		}
		resp.Submissions = append(resp.Submissions, toSubmissionResponse(&submissions[i], a.DueDate))
	}

	if isTeacher {
		total := len(submissions)
		resp.SubmissionCount = &total
		resp.GradedCount = &graded
	} else {
		status := &dto.SubmissionStatus{}
		if len(resp.Submissions) > 0 {
			own := resp.Submissions[0]
			status.Submitted = true
			status.SubmittedAt = &own.SubmittedAt
			status.Status = own.Status
			status.Grade = own.Grade
			status.Feedback = own.Feedback
			status.IsGraded = own.IsGraded
		}
		resp.SubmissionStatus = status
	}

	if comments != nil {
		resp.Comments = make([]dto.CommentResponse, 0, len(comments))
		for i := range comments {
			resp.Comments = append(resp.Comments, toCommentResponse(&comments[i]))
		}
	}
	return resp
}

func toSubmissionResponse(sub *model.Submission, due *time.Time) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		SubmissionID: sub.SubmissionID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		Student:      toUserSummary(sub.Student),
		Attachments:  toAttachmentResponses(sub.Attachments),
		SubmittedAt:  formatTime(sub.SubmittedAt),
		Status:       string(Classify(due, sub.SubmittedAt)),
		Grade:        sub.Grade,
		Feedback:     sub.Feedback,
		IsGraded:     sub.IsGraded,
	}
}

func toCommentResponse(c *model.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		CommentID: c.CommentID,
		AuthorID:  c.AuthorID,
		Author:    toUserSummary(c.Author),
		Text:      c.Text,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

func toAttachmentResponses(attachments []model.Attachment) []dto.AttachmentResponse {
	result := make([]dto.AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		result = append(result, dto.AttachmentResponse{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return result
}
