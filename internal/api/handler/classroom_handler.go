package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classhub/internal/dto"
	"classhub/internal/service"
	"classhub/pkg/response"
)

// ClassroomHandler 班级模块 HTTP 处理器
type ClassroomHandler struct {
	classroomSvc service.ClassroomService
}

// NewClassroomHandler 创建 ClassroomHandler
func NewClassroomHandler(classroomSvc service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classroomSvc: classroomSvc}
}

// CreateClassroom 创建班级（教师）
// POST /api/v1/classrooms
func (h *ClassroomHandler) CreateClassroom(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Invalid request body")
		return
	}

	classroom, err := h.classroomSvc.Create(c.Request.Context(), caller, &req)
	if err != nil {
		handleClassroomError(c, err)
		return
	}

	response.Created(c, gin.H{"classroom": classroom})
}

// JoinClassroom 凭邀请码加入班级（学生）
// POST /api/v1/classrooms/join
func (h *ClassroomHandler) JoinClassroom(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.JoinClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Invalid request body")
		return
	}

	classroom, err := h.classroomSvc.Join(c.Request.Context(), caller, req.Code)
	if err != nil {
		handleClassroomError(c, err)
		return
	}

	response.Message(c, "Joined classroom successfully", gin.H{"classroom": classroom})
}

// ListClassrooms 当前用户任教或加入的班级
// GET /api/v1/classrooms
func (h *ClassroomHandler) ListClassrooms(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	classrooms, err := h.classroomSvc.List(c.Request.Context(), caller)
	if err != nil {
		handleClassroomError(c, err)
		return
	}

	response.OK(c, gin.H{"classrooms": classrooms})
}

// GetClassroom 班级详情（含花名册）
// GET /api/v1/classrooms/:id
func (h *ClassroomHandler) GetClassroom(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	classroom, err := h.classroomSvc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		handleClassroomError(c, err)
		return
	}

	response.OK(c, gin.H{"classroom": classroom})
}

// handleClassroomError 班级模块错误映射
func handleClassroomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassroomNotFound):
		response.NotFound(c, 12001, "Classroom not found")
	case errors.Is(err, service.ErrClassroomAccessDenied):
		response.Forbidden(c, 12002, "Access denied")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		response.BadRequest(c, 12003, "Already enrolled in this classroom")
	case errors.Is(err, service.ErrStudentOnly):
		response.Forbidden(c, 12004, "Only students can join classrooms")
	case errors.Is(err, service.ErrTeacherOnly):
		response.Forbidden(c, 12005, "Only teachers can create classrooms")
	case errors.Is(err, service.ErrCodeExhausted):
		response.Error(c, http.StatusServiceUnavailable, 12006, "Could not allocate a classroom code, please retry")
	default:
		response.InternalError(c)
	}
}
