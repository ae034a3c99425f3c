package app

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/notification"
	"target_audit_reminder/internal/domain/reminder"
	"target_audit_reminder/internal/domain/settings"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeAuditorRepo struct {
	mu         sync.Mutex
	auditors   map[int64]*auditor.Auditor
	listErr    error
	persistErr error
	persisted  map[int64][]reminder.ReminderState
	listCalls  int
}

func newFakeAuditorRepo(as ...*auditor.Auditor) *fakeAuditorRepo {
	r := &fakeAuditorRepo{
		auditors:  make(map[int64]*auditor.Auditor),
		persisted: make(map[int64][]reminder.ReminderState),
	}
	for _, a := range as {
		r.auditors[a.ID] = a
	}
	return r
}

func (r *fakeAuditorRepo) ListActiveReminderCandidates(_ context.Context, _ time.Time) ([]*auditor.Auditor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*auditor.Auditor, 0, len(r.auditors))
	for _, a := range r.auditors {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAuditorRepo) GetByID(_ context.Context, id int64) (*auditor.Auditor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auditors[id]
	if !ok {
		return nil, auditor.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// PersistReminderState mimics the conditional write of the Postgres store.
func (r *fakeAuditorRepo) PersistReminderState(_ context.Context, id int64, st reminder.ReminderState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistErr != nil {
		return r.persistErr
	}
	a, ok := r.auditors[id]
	if !ok {
		return auditor.ErrStateConflict
	}
	if a.State.SentOn(st.LastReminderDate.Time) {
		return auditor.ErrStateConflict
	}
	a.State = st
	r.persisted[id] = append(r.persisted[id], st)
	return nil
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[int64]int
	errs   map[int64]error
}

func (c *fakeCounter) CountCompletions(_ context.Context, id int64, _, _ time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.errs[id]; err != nil {
		return 0, err
	}
	return c.counts[id], nil
}

type fakeSettings struct {
	byDept map[int64]*settings.EscalationRecipients
	err    error
	calls  int
}

func (f *fakeSettings) GetEscalationRecipients(_ context.Context, dept int64) (*settings.EscalationRecipients, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byDept[dept]
	if !ok {
		return nil, settings.ErrNotFound
	}
	return r, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
	panics bool
}

func (p *fakePublisher) Publish(_ context.Context, evt notification.Event) error {
	if p.panics {
		panic("listener exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) Events() []notification.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notification.Event(nil), p.events...)
}

type sentEmail struct {
	To, Cc   []string
	Subject  string
	BodyHTML string
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (e *fakeEmailSender) SendEmail(_ context.Context, to, cc []string, subject, body string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, sentEmail{To: to, Cc: cc, Subject: subject, BodyHTML: body})
	return nil
}

func (e *fakeEmailSender) Sent() []sentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sentEmail(nil), e.sent...)
}

type countingRecorder struct {
	NopRecorder
	mu               sync.Mutex
	failures         map[string]int
	dispatchFailures map[string]int
	listFailures     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failures: map[string]int{}, dispatchFailures: map[string]int{}}
}

func (r *countingRecorder) AuditorFailed(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

func (r *countingRecorder) DispatchFailed(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchFailures[channel]++
}

func (r *countingRecorder) CandidateListFailures(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listFailures = n
}

type fakeAlerter struct {
	messages []string
}

func (a *fakeAlerter) Alert(_ context.Context, msg string) error {
	a.messages = append(a.messages, msg)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestAuditor(id int64, email string, dept int64) *auditor.Auditor {
	a := &auditor.Auditor{
		ID:    id,
		Name:  "Auditor",
		Email: email,
		Target: reminder.TargetWindow{
			Quota:        10,
			StartDate:    day(2024, time.January, 1),
			EndDate:      day(2024, time.January, 10),
			ReminderTime: "09:00",
		},
	}
	if dept != 0 {
		a.DepartmentID = sql.NullInt64{Int64: dept, Valid: true}
	}
	return a
}
