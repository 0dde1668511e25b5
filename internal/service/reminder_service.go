package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"classhub/internal/model"
	"classhub/internal/repository"
	"classhub/pkg/mailer"
)

const reminderMarkerTTL = 48 * time.Hour

// ReminderMarker 提醒去重标记；为 nil 时同日重跑会重复发送
type ReminderMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

// ReminderSummary 单次扫描结果
type ReminderSummary struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Assignments int       `json:"assignments"` // 窗口内的作业数
	Notified    int       `json:"notified"`    // 实际发送提醒的作业数
	Recipients  int       `json:"recipients"`
	Skipped     int       `json:"skipped"` // 已标记或无收件人
	Failed      int       `json:"failed"`
}

// ReminderService 截止提醒业务接口
type ReminderService interface {
	// SendDueReminders 提醒明天（按配置时区）截止且尚未提交的学生
	SendDueReminders(ctx context.Context, now time.Time) (*ReminderSummary, error)
}

type reminderService struct {
	repo    *repository.Repository
	mailer  mailer.Mailer
	markers ReminderMarker
	loc     *time.Location
	logger  *zap.Logger
}

// NewReminderService 创建 ReminderService 实例
func NewReminderService(
	repo *repository.Repository,
	m mailer.Mailer,
	markers ReminderMarker,
	loc *time.Location,
	logger *zap.Logger,
) ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &reminderService{repo: repo, mailer: m, markers: markers, loc: loc, logger: logger}
}

// ────────────────────── SendDueReminders ──────────────────────

func (s *reminderService) SendDueReminders(ctx context.Context, now time.Time) (*ReminderSummary, error) {
	start, end := nextDayWindow(now, s.loc)
	summary := &ReminderSummary{WindowStart: start, WindowEnd: end}

	assignments, err := s.repo.Assignment.ListDueBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		s.logger.Error("查询即将截止的作业失败", zap.Error(err))
		return nil, err
	}
	summary.Assignments = len(assignments)

	day := start.Format("2006-01-02")
	for i := range assignments {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.remindOne(ctx, &assignments[i], day, summary)
	}

	s.logger.Info("截止提醒扫描完成",
		zap.Time("window_start", start),
		zap.Int("assignments", summary.Assignments),
		zap.Int("notified", summary.Notified),
		zap.Int("recipients", summary.Recipients),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// remindOne 单个作业的失败只计数，不中断整次扫描
func (s *reminderService) remindOne(ctx context.Context, assignment *model.Assignment, day string, summary *ReminderSummary) {
	log := s.logger.With(zap.String("assignment_id", assignment.AssignmentID))

	recipients, classroom, err := s.pendingRecipients(ctx, assignment)
	if err != nil {
		log.Error("查询提醒收件人失败", zap.Error(err))
		summary.Failed++
		return
	}
	if len(recipients) == 0 {
		summary.Skipped++
		return
	}

	key := "reminder:" + assignment.AssignmentID + ":" + day
	if s.markers != nil {
		first, err := s.markers.MarkOnce(ctx, key, reminderMarkerTTL)
		if err != nil {
			// 标记不可用时照常发送
			log.Warn("提醒去重标记失败", zap.Error(err))
		} else if !first {
			summary.Skipped++
			return
		}
	}

	msg := noticeMessage("Assignment due tomorrow", `Reminder: "`+assignment.Title+`" due tomorrow`, classroom, assignment)
	msg.To = recipients

	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error("截止提醒发送失败", zap.Int("recipients", len(recipients)), zap.Error(err))
		summary.Failed++
		if s.markers != nil {
			// 允许下次扫描重试
			if err := s.markers.Unmark(ctx, key); err != nil {
				log.Warn("清除提醒标记失败", zap.Error(err))
			}
		}
		return
	}

	summary.Notified++
	summary.Recipients += len(recipients)
}

// pendingRecipients 班级内尚未提交且有邮箱的学生
func (s *reminderService) pendingRecipients(ctx context.Context, assignment *model.Assignment) ([]string, *model.Classroom, error) {
	classroom, err := s.repo.Classroom.GetByID(ctx, assignment.ClassroomID)
	if err != nil {
		return nil, nil, err
	}

	students, err := s.repo.Classroom.ListStudents(ctx, assignment.ClassroomID)
	if err != nil {
		return nil, nil, err
	}

	submissions, err := s.repo.Submission.ListByAssignment(ctx, assignment.AssignmentID)
	if err != nil {
		return nil, nil, err
	}
	submitted := make(map[string]bool, len(submissions))
	for _, sub := range submissions {
		submitted[sub.StudentID] = true
	}

	return studentEmails(students, submitted), classroom, nil
}

// nextDayWindow 返回 now 所在时区的下一个自然日 [00:00, 次日 00:00)
func nextDayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
