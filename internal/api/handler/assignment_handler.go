package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"classhub/internal/api/middleware"
	"classhub/internal/dto"
	"classhub/internal/service"
	"classhub/pkg/response"
	"classhub/pkg/storage"
)

// 表单中的附件字段：作业附件 attachments，学生提交 files
const (
	fieldAttachments = "attachments"
	fieldFiles       = "files"
)

// 截止时间可接受的格式；不含时区的按 UTC 解释
var dueDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

var (
	errInvalidDueDate = errors.New("invalid due date")
	errInvalidPoints  = errors.New("invalid points")
	errInvalidBool    = errors.New("invalid boolean")
)

// assignmentForm 创建 / 更新作业的表单字段（multipart 或 urlencoded）
// 指针字段为 nil 表示未提交该字段
type assignmentForm struct {
	Title              *string `form:"title"`
	Description        *string `form:"description"`
	DueDate            *string `form:"dueDate"`
	Points             *string `form:"points"`
	ClassroomID        string  `form:"classroom"`
	TeacherID          string  `form:"teacher"`
	CollectSubmissions *string `form:"collectSubmissions"`
}

// AssignmentHandler 作业模块 HTTP 处理器
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
	rules         storage.Rules
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService, rules storage.Rules) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc, rules: rules}
}

// CreateAssignment 创建作业（教师）
// POST /api/v1/assignments
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	form, files, ok := h.bindForm(c, fieldAttachments)
	if !ok {
		return
	}

	req := &dto.CreateAssignmentRequest{
		ClassroomID: form.ClassroomID,
		TeacherID:   form.TeacherID,
	}
	if form.Title != nil {
		req.Title = *form.Title
	}
	if form.Description != nil {
		req.Description = *form.Description
	}
	var err error
	if req.DueDate, _, err = parseDueDate(form.DueDate); err != nil {
		response.BadRequest(c, 10001, "Invalid due date")
		return
	}
	if req.Points, err = parsePoints(form.Points); err != nil {
		response.BadRequest(c, 10001, "Points must be a whole number")
		return
	}
	if req.CollectSubmissions, err = parseBool(form.CollectSubmissions); err != nil {
		response.BadRequest(c, 10001, "Invalid collectSubmissions value")
		return
	}

	assignment, err := h.assignmentSvc.Create(c.Request.Context(), caller, req, files)
	if err != nil {
		handleAssignmentError(c, err, errorMessages{
			service.ErrNotTeacher: "Invalid teacher ID or insufficient permissions",
		})
		return
	}

	response.Created(c, gin.H{"assignment": assignment})
}

// ListClassroomAssignments 班级作业列表（新→旧）
// GET /api/v1/assignments/classroom/:classroomId
func (h *AssignmentHandler) ListClassroomAssignments(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	assignments, err := h.assignmentSvc.ListByClassroom(c.Request.Context(), caller, c.Param("classroomId"))
	if err != nil {
		handleAssignmentError(c, err, nil)
		return
	}

	response.OK(c, gin.H{"assignments": assignments})
}

// GetAssignment 作业详情
// GET /api/v1/assignments/:id
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	assignment, err := h.assignmentSvc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleAssignmentError(c, err, nil)
		return
	}

	response.OK(c, gin.H{"assignment": assignment})
}

// SubmitAssignment 学生提交作业（至少一个文件）
// POST /api/v1/assignments/:id/submit
func (h *AssignmentHandler) SubmitAssignment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.handleFormError(c, err)
		return
	}
	files := formFiles(c, fieldFiles)
	if len(files) == 0 {
		response.BadRequest(c, 14004, "No files uploaded")
		return
	}
	if !h.checkFiles(c, files) {
		return
	}

	submission, err := h.assignmentSvc.Submit(c.Request.Context(), caller, c.Param("id"), files)
	if err != nil {
		handleAssignmentError(c, err, nil)
		return
	}

	response.Message(c, "Assignment submitted successfully", gin.H{"submission": submission})
}

// MarkDone 无附件完成作业
// POST /api/v1/assignments/:id/mark-done
func (h *AssignmentHandler) MarkDone(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	submission, err := h.assignmentSvc.MarkDone(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleAssignmentError(c, err, nil)
		return
	}

	response.Message(c, "Assignment marked as done successfully", gin.H{"submission": submission})
}

// UnsubmitAssignment 撤回提交
// POST /api/v1/assignments/:id/unsubmit
func (h *AssignmentHandler) UnsubmitAssignment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.assignmentSvc.Unsubmit(c.Request.Context(), caller, c.Param("id")); err != nil {
		handleAssignmentError(c, err, errorMessages{
			service.ErrSubmissionNotFound: "No submission to unsubmit",
		})
		return
	}

	response.Message(c, "Submission removed", nil)
}

// GradeSubmission 批改提交
// POST /api/v1/assignments/:id/grade
// POST /api/v1/assignments/:id/submissions/:studentId/grade
func (h *AssignmentHandler) GradeSubmission(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Missing required fields: grade")
		return
	}
	if sid := c.Param("studentId"); sid != "" {
		req.StudentID = sid
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.StudentID == "" {
		response.BadRequest(c, 10001, "Missing required fields: student_id")
		return
	}

	submission, err := h.assignmentSvc.Grade(c.Request.Context(), caller, c.Param("id"), req.StudentID, &req)
	if err != nil {
		handleAssignmentError(c, err, errorMessages{
			service.ErrNotAssignmentOwner: "Not authorized to grade this assignment",
		})
		return
	}

	response.Message(c, "Assignment graded successfully", gin.H{"submission": submission})
}

// AddComment 发表评论
// POST /api/v1/assignments/:id/comments
func (h *AssignmentHandler) AddComment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13012, "Comment text is required")
		return
	}

	comment, err := h.assignmentSvc.AddComment(c.Request.Context(), caller, c.Param("id"), req.Text)
	if err != nil {
		handleAssignmentError(c, err, nil)
		return
	}

	response.Created(c, gin.H{"comment": comment})
}

// UpdateAssignment 编辑作业，新附件追加到原有列表
// PUT /api/v1/assignments/:id
func (h *AssignmentHandler) UpdateAssignment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	form, files, ok := h.bindForm(c, fieldAttachments)
	if !ok {
		return
	}

	req := &dto.UpdateAssignmentRequest{
		Title:       form.Title,
		Description: form.Description,
	}
	var err error
	if req.DueDate, req.ClearDueDate, err = parseDueDate(form.DueDate); err != nil {
		response.BadRequest(c, 10001, "Invalid due date")
		return
	}
	if req.Points, err = parsePoints(form.Points); err != nil {
		response.BadRequest(c, 10001, "Points must be a whole number")
		return
	}
	if req.CollectSubmissions, err = parseBool(form.CollectSubmissions); err != nil {
		response.BadRequest(c, 10001, "Invalid collectSubmissions value")
		return
	}

	assignment, err := h.assignmentSvc.Update(c.Request.Context(), caller, c.Param("id"), req, files)
	if err != nil {
		handleAssignmentError(c, err, errorMessages{
			service.ErrNotAssignmentOwner: "You can only edit your own assignments",
		})
		return
	}

	response.OK(c, gin.H{"assignment": assignment})
}

// TogglePublish 切换发布状态
// PUT /api/v1/assignments/:id/publish
func (h *AssignmentHandler) TogglePublish(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	assignment, err := h.assignmentSvc.TogglePublish(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleAssignmentError(c, err, nil)
		return
	}

	state := "unpublished"
	if assignment.IsPublished {
		state = "published"
	}
	response.Message(c, "Assignment "+state+" successfully", gin.H{
		"assignment":  assignment,
		"isPublished": assignment.IsPublished,
	})
}

// DeleteAssignment 删除作业（级联删除提交与评论）
// DELETE /api/v1/assignments/:id
func (h *AssignmentHandler) DeleteAssignment(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.assignmentSvc.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		handleAssignmentError(c, err, errorMessages{
			service.ErrNotAssignmentOwner: "You can only delete your own assignments",
		})
		return
	}

	response.Message(c, "Assignment deleted successfully", nil)
}

// ── 表单解析 ──

// bindForm 解析作业表单与指定字段的附件，失败时已写入响应
func (h *AssignmentHandler) bindForm(c *gin.Context, fileField string) (*assignmentForm, []*multipart.FileHeader, bool) {
	var form assignmentForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		h.handleFormError(c, err)
		return nil, nil, false
	}

	files := formFiles(c, fileField)
	if !h.checkFiles(c, files) {
		return nil, nil, false
	}
	return &form, files, true
}

func (h *AssignmentHandler) handleFormError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "Request body too large")
		return
	}
	response.BadRequest(c, 10001, "Invalid form data")
}

// checkFiles 按上传限制校验附件，失败时已写入响应
func (h *AssignmentHandler) checkFiles(c *gin.Context, files []*multipart.FileHeader) bool {
	err := h.rules.Check(files)
	switch {
	case err == nil:
		return true
	case errors.Is(err, storage.ErrFileTooLarge):
		response.BadRequest(c, 14001, "File too large. Maximum size is "+strconv.FormatInt(h.rules.MaxFileSize>>20, 10)+"MB.")
	case errors.Is(err, storage.ErrTooManyFiles):
		response.BadRequest(c, 14002, "Too many files. Maximum "+strconv.Itoa(h.rules.MaxFiles)+" files allowed.")
	case errors.Is(err, storage.ErrFileTypeNotAllowed):
		response.BadRequest(c, 14003, "Invalid file type. Allowed: "+strings.Join(h.rules.AllowedExts, ", "))
	default:
		response.BadRequest(c, 10001, "Invalid file upload")
	}
	return false
}

func formFiles(c *gin.Context, field string) []*multipart.FileHeader {
	if c.Request.MultipartForm == nil {
		return nil
	}
	return c.Request.MultipartForm.File[field]
}

// parseDueDate 解析截止时间；空字符串表示清除
func parseDueDate(raw *string) (*time.Time, bool, error) {
	if raw == nil {
		return nil, false, nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" || v == "null" {
		return nil, true, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, false, nil
		}
	}
	return nil, false, errInvalidDueDate
}

func parsePoints(raw *string) (*int, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return nil, errInvalidPoints
	}
	return &n, nil
}

// parseBool 兼容 HTML 复选框的 on/off；空值视为未提供
func parseBool(raw *string) (*bool, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	var b bool
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "on", "true", "1", "yes":
		b = true
	case "off", "false", "0", "no":
		b = false
	default:
		return nil, errInvalidBool
	}
	return &b, nil
}

// ── 错误映射 ──

// errorMessages 按操作覆盖默认错误提示
type errorMessages map[error]string

type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

var assignmentErrors = []errorMapping{
	{service.ErrTitleRequired, http.StatusBadRequest, 13002, "Missing required fields: title"},
	{service.ErrInvalidPoints, http.StatusBadRequest, 13003, "Points must not be negative"},
	{service.ErrNotTeacher, http.StatusForbidden, 13004, "Only teachers can do this"},
	{service.ErrAssignmentNotFound, http.StatusNotFound, 13005, "Assignment not found"},
	{service.ErrNotAssignmentOwner, http.StatusForbidden, 13006, "Access denied"},
	{service.ErrNotEnrolled, http.StatusForbidden, 13007, "Not enrolled in this classroom"},
	{service.ErrSubmissionsClosed, http.StatusBadRequest, 13008, "Submissions are not allowed for this assignment"},
	{service.ErrAlreadySubmitted, http.StatusBadRequest, 13009, "Assignment already submitted"},
	{service.ErrSubmissionNotFound, http.StatusNotFound, 13010, "Submission not found"},
	{service.ErrAttachmentUpload, http.StatusBadGateway, 13011, "Failed to upload attachments"},
	{service.ErrCommentEmpty, http.StatusBadRequest, 13012, "Comment text is required"},
	{service.ErrClassroomNotFound, http.StatusNotFound, 12001, "Classroom not found"},
	{service.ErrClassroomAccessDenied, http.StatusForbidden, 12002, "Access denied"},
}

// handleAssignmentError 作业模块错误映射
func handleAssignmentError(c *gin.Context, err error, overrides errorMessages) {
	if errors.Is(err, service.ErrMissingField) {
		fields := strings.TrimPrefix(err.Error(), service.ErrMissingField.Error()+": ")
		response.BadRequest(c, 13001, "Missing required fields: "+fields)
		return
	}

	for _, m := range assignmentErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if o, ok := overrides[m.target]; ok {
			msg = o
		}
		response.Error(c, m.status, m.code, msg)
		return
	}

	response.InternalError(c)
}
