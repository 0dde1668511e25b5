package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"classhub/internal/model"
	"classhub/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("failed to generate export file")
)

const (
	statusMissing    = "missing"
	calendarProdID   = "-//ClassHub//Assignments//EN"
	calendarEventLen = time.Hour
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 成绩表导出为 Excel (.xlsx)，仅作业创建教师可导出
//   - 班级日历导出为 iCalendar (.ics)，班级成员可订阅；学生只看到已发布作业
//   - 导出以内存缓冲返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// GradeSheet 导出作业成绩表：班级全部学生一行，未提交标记为 missing
	GradeSheet(ctx context.Context, caller Caller, assignmentID string) (*bytes.Buffer, string, error)
	// ClassroomCalendar 导出班级作业截止日历
	ClassroomCalendar(ctx context.Context, caller Caller, classroomID string) ([]byte, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── GradeSheet ──────────────────────
//
// 输出格式：
//   - 标题行：班级名 / 作业标题
//   - 表头：学生 | 邮箱 | 状态 | 提交时间 | 成绩 | 满分 | 评语
//   - 行按学生姓名排序；状态为 missing / on_time / late

func (s *exportService) GradeSheet(ctx context.Context, caller Caller, assignmentID string) (*bytes.Buffer, string, error) {
	// 1. 仅作业创建教师
	assignment, err := ownedAssignment(ctx, s.repo, s.logger, caller, assignmentID)
	if err != nil {
		return nil, "", err
	}

	repo := s.repo
	classroomName := assignment.ClassroomID
	if classroom, err := repo.Classroom.GetByID(ctx, assignment.ClassroomID); err == nil {
		classroomName = classroom.Name
	}

	// 2. 花名册 + 提交
	students, err := repo.Classroom.ListStudents(ctx, assignment.ClassroomID)
	if err != nil {
		s.logger.Error("查询班级成员失败", zap.String("classroom_id", assignment.ClassroomID), zap.Error(err))
		return nil, "", err
	}
	submissions, err := repo.Submission.ListByAssignment(ctx, assignmentID)
	if err != nil {
		s.logger.Error("查询提交记录失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, "", err
	}

	byStudent := make(map[string]*model.Submission, len(submissions))
	for i := range submissions {
		byStudent[submissions[i].StudentID] = &submissions[i]
	}

	// 已提交但不在花名册中的学生也保留一行
	roster := append([]model.User(nil), students...)
	seen := make(map[string]bool, len(roster))
	for _, st := range roster {
		seen[st.UserID] = true
	}
	for _, sub := range submissions {
		if seen[sub.StudentID] {
			continue
		}
		u := model.User{UserID: sub.StudentID, Name: sub.StudentID}
		if sub.Student != nil {
			u = *sub.Student
		}
		roster = append(roster, u)
	}
	sort.SliceStable(roster, func(i, j int) bool {
		return strings.ToLower(roster[i].Name) < strings.ToLower(roster[j].Name)
	})

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Grades"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Student", "Email", "Status", "Submitted At", "Grade", "Points", "Feedback"}
	widths := []float64{24, 30, 10, 22, 8, 8, 48}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s / %s", classroomName, assignment.Title))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	row := 2
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	row = 3
	for _, st := range roster {
		f.SetCellValue(sheetName, cell("A", row), st.Name)
		f.SetCellValue(sheetName, cell("B", row), st.Email)
		f.SetCellValue(sheetName, cell("F", row), assignment.Points)

		sub, ok := byStudent[st.UserID]
		if !ok {
			f.SetCellValue(sheetName, cell("C", row), statusMissing)
			row++
			continue
		}
		f.SetCellValue(sheetName, cell("C", row), string(Classify(assignment.DueDate, sub.SubmittedAt)))
		f.SetCellValue(sheetName, cell("D", row), formatTime(sub.SubmittedAt))
		if sub.Grade != nil {
			f.SetCellValue(sheetName, cell("E", row), *sub.Grade)
		}
		if sub.Feedback != nil {
			f.SetCellValue(sheetName, cell("G", row), *sub.Feedback)
		}
		row++
	}

	// 4. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("grades_%s.xlsx", safeFilename(assignment.Title))
	return buf, filename, nil
}

// ────────────────────── ClassroomCalendar ──────────────────────
//
// 每个有截止时间的作业一条 VEVENT，截止时刻结束，持续一小时

func (s *exportService) ClassroomCalendar(ctx context.Context, caller Caller, classroomID string) ([]byte, string, error) {
	repo := s.repo
	classroom, isTeacher, err := resolveClassroomAccess(ctx, repo, s.logger, caller, classroomID)
	if err != nil {
		return nil, "", err
	}

	assignments, err := repo.Assignment.ListByClassroom(ctx, classroomID, !isTeacher)
	if err != nil {
		s.logger.Error("查询作业列表失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProdID)
	cal.SetXWRCalName(classroom.Name)

	stamp := s.now().UTC()
	for i := range assignments {
		a := &assignments[i]
		if a.DueDate == nil {
			continue
		}
		due := a.DueDate.UTC()

		event := cal.AddEvent(a.AssignmentID + "@classhub")
		event.SetDtStampTime(stamp)
		event.SetStartAt(due.Add(-calendarEventLen))
		event.SetEndAt(due)
		event.SetSummary(a.Title)
		if a.Description != "" {
			event.SetDescription(a.Description)
		}
		if !a.IsPublished {
			event.SetStatus(ics.ObjectStatusTentative)
		}
	}

	filename := fmt.Sprintf("%s.ics", safeFilename(classroom.Name))
	return []byte(cal.Serialize()), filename, nil
}

// ── 辅助函数 ──

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

func safeFilename(name string) string {
	name = strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if name == "" {
		return "export"
	}
	return name
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
