package app

import (
	"bytes"
	"fmt"
	"html/template"

	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/reminder"
)

const (
	reminderSubject   = "Target audit reminder"
	escalationSubject = "ESCALATION: target audit reminder"
)

var reminderEmailTmpl = template.Must(template.New("reminder").Parse(`<p>Hello {{.Name}},</p>
<p>This is your daily reminder about your audit target for <strong>{{.Start}}</strong> to <strong>{{.End}}</strong>.</p>
<table>
  <tr><td>Target</td><td>{{.Quota}}</td></tr>
  <tr><td>Completed</td><td>{{.Completed}}</td></tr>
  <tr><td>Pending</td><td>{{.Pending}}</td></tr>
</table>
<p>Reminders are sent daily at {{.ReminderTime}}.</p>
{{- if .Escalated}}
<p><strong>Escalation notice:</strong> no progress was recorded across the last {{.Streak}} reminders. Your supervisors have been copied on this message.</p>
{{- end}}
`))

type reminderEmailData struct {
	Name         string
	Start        string
	End          string
	ReminderTime string
	Quota        int
	Completed    int
	Pending      int
	Escalated    bool
	Streak       int
}

func renderReminderEmail(a *auditor.Auditor, d reminder.Decision) (string, string, error) {
	subject := reminderSubject
	if d.Escalated {
		subject = escalationSubject
	}

	data := reminderEmailData{
		Name:         a.Name,
		Start:        a.Target.StartDate.Format(reminder.DateLayout),
		End:          a.Target.EndDate.Format(reminder.DateLayout),
		ReminderTime: a.Target.ReminderTime,
		Quota:        d.Quota,
		Completed:    d.Completed,
		Pending:      d.Pending,
		Escalated:    d.Escalated,
		Streak:       d.NewState.StagnantStreak + 1,
	}
	var buf bytes.Buffer
	if err := reminderEmailTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("rendering reminder email: %w", err)
	}
	return subject, buf.String(), nil
}

func reminderMessage(a *auditor.Auditor, d reminder.Decision) string {
	return fmt.Sprintf("You have %d pending audit(s) out of %d for %s to %s.",
		d.Pending, d.Quota,
		a.Target.StartDate.Format(reminder.DateLayout),
		a.Target.EndDate.Format(reminder.DateLayout))
}
