package email

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/notification"
)

// ConsoleSender logs emails instead of sending them. Used in development.
type ConsoleSender struct {
	subjPrefix string
	logger     *logrus.Entry

	mu   sync.Mutex
	sent int
}

var _ notification.EmailSender = (*ConsoleSender)(nil)

func NewConsoleSender(appName string, logger *logrus.Entry) *ConsoleSender {
	return &ConsoleSender{subjPrefix: subjectPrefix(appName), logger: logger}
}

func (svc *ConsoleSender) SendEmail(_ context.Context, to, cc []string, subject, bodyHTML string) error {
	svc.mu.Lock()
	svc.sent++
	svc.mu.Unlock()

	svc.logger.WithFields(logrus.Fields{
		"to":      strings.Join(to, ", "),
		"cc":      strings.Join(cc, ", "),
		"subject": svc.subjPrefix + subject,
	}).Info(htmlToText(bodyHTML))
	return nil
}

// Sent returns the number of emails logged so far.
func (svc *ConsoleSender) Sent() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.sent
}

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	spacesRe = regexp.MustCompile(`[ \t]+`)
	blankRe  = regexp.MustCompile(`\n\s*\n+`)
)

// htmlToText is a crude plain-text fallback for the rendered reminder body.
func htmlToText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
