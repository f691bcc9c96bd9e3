package notify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"CheckinKiosk/config"
	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

type fakeSender struct {
	sent chan Job
	err  error
}

func (f *fakeSender) SendCheckin(ctx context.Context, name string, emails []string, action model.Action, ts time.Time) error {
	f.sent <- Job{Name: name, Emails: emails, Action: action, Timestamp: ts}
	return f.err
}

func TestQueueDeliversJobs(t *testing.T) {
	sender := &fakeSender{sent: make(chan Job, 8)}
	q := NewQueue(sender, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	ts := time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local)
	q.Notify("Maria Silva", []string{"mae@example.pt"}, model.ActionEntry, ts)

	select {
	case job := <-sender.sent:
		assert.Equal(t, "Maria Silva", job.Name)
		assert.Equal(t, []string{"mae@example.pt"}, job.Emails)
		assert.Equal(t, model.ActionEntry, job.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never delivered the job")
	}

	cancel()
	q.Wait()
}

func TestQueueDropsWhenSaturated(t *testing.T) {
	sender := &fakeSender{sent: make(chan Job, 8)}
	core, logs := observer.New(zapcore.WarnLevel)
	q := NewQueue(sender, 1, zap.New(core))

	// No worker running yet: only one job fits, the rest are dropped.
	ts := time.Now()
	q.Notify("A", []string{"a@example.pt"}, model.ActionEntry, ts)
	q.Notify("B", []string{"b@example.pt"}, model.ActionEntry, ts)
	q.Notify("C", []string{"c@example.pt"}, model.ActionEntry, ts)

	assert.Equal(t, 2, logs.FilterMessage(pkgerrors.QueueSaturated.Message).Len(),
		"both dropped jobs are reported under the saturation code")

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	job := <-sender.sent
	assert.Equal(t, "A", job.Name)

	select {
	case job := <-sender.sent:
		t.Fatalf("dropped job %q was delivered", job.Name)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	q.Wait()
}

func TestQueueSurvivesSenderFailure(t *testing.T) {
	sender := &fakeSender{sent: make(chan Job, 8), err: pkgerrors.MailDisabled}
	q := NewQueue(sender, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	ts := time.Now()
	q.Notify("A", []string{"a@example.pt"}, model.ActionEntry, ts)
	q.Notify("B", []string{"b@example.pt"}, model.ActionExit, ts)

	<-sender.sent
	job := <-sender.sent
	assert.Equal(t, "B", job.Name, "a failed delivery must not stop the worker")

	cancel()
	q.Wait()
}

func mailerConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SMTPServer:        "smtp.example.pt",
		SMTPPort:          465,
		SMTPUser:          "kiosk@example.pt",
		SMTPFromName:      "Kiosk",
		SMTPTimeoutSec:    5,
		NotifyMaxAttempts: 1,
		DataDir:           t.TempDir(),
	}
}

func TestMailerDisabledWithoutServer(t *testing.T) {
	cfg := mailerConfig(t)
	cfg.SMTPServer = ""
	m := NewMailer(cfg, zap.NewNop())

	assert.False(t, m.Enabled())
	err := m.SendCheckin(context.Background(), "Maria", []string{"mae@example.pt"}, model.ActionEntry, time.Now())
	assert.ErrorIs(t, err, pkgerrors.MailDisabled)
	assert.ErrorIs(t, m.SendAdmin(context.Background(), "s", "b"), pkgerrors.MailDisabled)
}

func TestMailerRejectsEmptyRecipients(t *testing.T) {
	m := NewMailer(mailerConfig(t), zap.NewNop())

	err := m.SendCheckin(context.Background(), "Maria", []string{"", "  "}, model.ActionEntry, time.Now())
	assert.ErrorIs(t, err, pkgerrors.NoRecipients)

	// No admin address configured either.
	assert.ErrorIs(t, m.SendAdmin(context.Background(), "s", "b"), pkgerrors.NoRecipients)
}

func TestLoadTemplatePrefersInstalledFile(t *testing.T) {
	dir := t.TempDir()
	custom := `<h1>{{.Nome}}: {{.Tipo}}</h1>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "email.html"), []byte(custom), 0o644))

	tmpl := loadTemplate(dir, zap.NewNop())
	var out bytes.Buffer
	require.NoError(t, tmpl.Execute(&out, map[string]string{"Nome": "Maria", "Tipo": "entrada"}))
	assert.Contains(t, out.String(), "<h1>Maria")
}

func TestLoadTemplateFallsBack(t *testing.T) {
	tmpl := loadTemplate(t.TempDir(), zap.NewNop())
	var out bytes.Buffer
	require.NoError(t, tmpl.Execute(&out, map[string]string{"Nome": "Maria", "Tipo": "entrada", "Hora": "09:15"}))
	assert.Equal(t, "<p>Maria: entrada às 09:15</p>", out.String())
}
