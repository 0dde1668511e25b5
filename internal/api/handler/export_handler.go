package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"classhub/internal/service"
	"classhub/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportGrades 导出作业成绩表（任课教师）
// GET /api/v1/assignments/:id/grades/export
func (h *ExportHandler) ExportGrades(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.GradeSheet(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrExportGenerateFail) {
			response.InternalError(c)
			return
		}
		handleAssignmentError(c, err, errorMessages{
			service.ErrNotAssignmentOwner: "Only the assignment's teacher can export grades",
		})
		return
	}

	attachment(c, filename, contentTypeXLSX, buf.Bytes())
}

// ExportCalendar 导出班级作业截止日历
// GET /api/v1/classrooms/:id/calendar.ics
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	data, filename, err := h.exportSvc.ClassroomCalendar(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrExportGenerateFail) {
			response.InternalError(c)
			return
		}
		handleClassroomError(c, err)
		return
	}

	attachment(c, filename, contentTypeICS, data)
}

// attachment 设置下载响应头并写出文件
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}
