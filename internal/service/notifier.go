package service

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"

	"classhub/internal/model"
	"classhub/pkg/mailer"
)

// Notifier 站外通知（邮件）；调用方不等待结果，也不关心成败
type Notifier interface {
	AssignmentPosted(ctx context.Context, classroom *model.Classroom, assignment *model.Assignment, recipients []string)
}

const notifyTimeout = 30 * time.Second

// MailNotifier 基于 Mailer 的异步通知实现
type MailNotifier struct {
	mailer mailer.Mailer
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewMailNotifier 创建邮件通知器
func NewMailNotifier(m mailer.Mailer, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{mailer: m, logger: logger}
}

// AssignmentPosted 向班级学生发送新作业通知，后台发送
func (n *MailNotifier) AssignmentPosted(ctx context.Context, classroom *model.Classroom, assignment *model.Assignment, recipients []string) {
	if len(recipients) == 0 {
		return
	}
	msg := noticeMessage("New assignment posted", `New assignment posted: "`+assignment.Title+`"`, classroom, assignment)
	msg.To = recipients

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		// 请求结束后仍需完成发送
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := n.mailer.Send(sendCtx, msg); err != nil {
			n.logger.Error("新作业通知发送失败",
				zap.String("assignment_id", assignment.AssignmentID),
				zap.Int("recipients", len(recipients)),
				zap.Error(err))
			return
		}
		n.logger.Info("新作业通知已发送",
			zap.String("assignment_id", assignment.AssignmentID),
			zap.Int("recipients", len(recipients)))
	}()
}

// Wait 等待所有后台发送结束（优雅停机时调用）
func (n *MailNotifier) Wait() {
	n.wg.Wait()
}

// ── 邮件模板 ──

var noticeHTML = template.Must(template.New("notice").Parse(`<div style="font-family:Arial,Helvetica,sans-serif;line-height:1.5">
<h2 style="margin:0 0 8px">{{.Heading}}</h2>
<p style="margin:0 0 8px"><strong>Class:</strong> {{.Class}}</p>
<p style="margin:0 0 8px"><strong>Assignment:</strong> {{.Title}}</p>
{{if .Description}}<p style="margin:0 0 8px">{{.Description}}</p>{{end}}
<p style="margin:0 0 8px"><strong>Due:</strong> {{.Due}}</p>
<p style="margin:16px 0 0">ClassHub</p>
</div>`))

type noticeData struct {
	Heading     string
	Class       string
	Title       string
	Description string
	Due         string
}

func noticeMessage(heading, subject string, classroom *model.Classroom, assignment *model.Assignment) *mailer.Message {
	data := noticeData{
		Heading:     heading,
		Class:       "your class",
		Title:       assignment.Title,
		Description: assignment.Description,
		Due:         "No due date",
	}
	if classroom != nil && classroom.Name != "" {
		data.Class = classroom.Name
	}
	if assignment.DueDate != nil {
		data.Due = assignment.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	}

	var html bytes.Buffer
	_ = noticeHTML.Execute(&html, data)

	text := heading + "\nClass: " + data.Class + "\nAssignment: " + data.Title + "\nDue: " + data.Due + "\n\nClassHub"

	return &mailer.Message{Subject: subject, Text: text, HTML: html.String()}
}
