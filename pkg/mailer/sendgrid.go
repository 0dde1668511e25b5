package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"classhub/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer 通过 SendGrid v3 API 发送邮件
type SendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridMailer(cfg *config.MailConfig) *SendgridMailer {
	return &SendgridMailer{
		key:        cfg.SendgridAPIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: "[" + cfg.AppName + "] ",
	}
}

func (m *SendgridMailer) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.build(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// build 组装 v3 邮件；多个收件人时收件人互相不可见，发件地址放在 To，其余走 BCC
func (m *SendgridMailer) build(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject

	if len(msg.To) == 1 {
		p.AddTos(sgmail.NewEmail("", msg.To[0]))
	} else {
		p.AddTos(m.from)
		for _, addr := range msg.To {
			p.AddBCCs(sgmail.NewEmail("", addr))
		}
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)

	if msg.Text != "" {
		v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}
