package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/notification"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

type SendgridSender struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     *logrus.Entry
}

var _ notification.EmailSender = (*SendgridSender)(nil)

func NewSendgridSender(key, appName, fromName, fromAddr string, logger *logrus.Entry) *SendgridSender {
	return &SendgridSender{
		key:        key,
		host:       defaultHost,
		from:       sgmail.NewEmail(fromName, fromAddr),
		subjPrefix: subjectPrefix(appName),
		logger:     logger,
	}
}

func (svc *SendgridSender) SendEmail(ctx context.Context, to, cc []string, subject, bodyHTML string) error {
	if len(to) == 0 {
		return fmt.Errorf("sendgrid: no recipients")
	}
	req := sendgrid.GetRequest(svc.key, endpoint, svc.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(to, cc, subject, bodyHTML))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	svc.logger.WithField("status", res.StatusCode).Debug("Email accepted by SendGrid")
	return nil
}

func (svc *SendgridSender) prepare(to, cc []string, subject, bodyHTML string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + subject
	for _, addr := range to {
		p.AddTos(sgmail.NewEmail("", addr))
	}
	for _, addr := range cc {
		p.AddCCs(sgmail.NewEmail("", addr))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", htmlToText(bodyHTML)),
		sgmail.NewContent("text/html", bodyHTML),
	)
	return m
}

func subjectPrefix(appName string) string {
	if appName == "" {
		return ""
	}
	return "[" + appName + "] "
}
