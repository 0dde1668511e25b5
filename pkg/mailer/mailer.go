// Package mailer 邮件发送：SendGrid 实现与仅写日志的降级实现
package mailer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"classhub/config"
)

var ErrNoRecipients = errors.New("message has no recipients")

// Message 一封待发送的邮件
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer 邮件发送器
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// New 根据配置选择实现：未配置 API Key 时退化为日志输出
func New(cfg *config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SendgridAPIKey == "" {
		logger.Warn("未配置 SendGrid API Key，邮件仅写入日志")
		return NewLogMailer(logger)
	}
	return NewSendgridMailer(cfg)
}

// LogMailer 仅记录日志的邮件发送器
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.logger.Info("邮件（未实际发送）",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
