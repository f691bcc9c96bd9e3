package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"CheckinKiosk/config"
	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

// defaultTemplate is the fallback body when no email.html is installed.
const defaultTemplate = `<p>{{.Nome}}: {{.Tipo}} às {{.Hora}}</p>`

// Mailer delivers guardian and operator emails over SMTP-SSL with a
// bounded timeout and exponential-backoff retries, so a slow mail
// server can never hang the scan pipeline's worker.
type Mailer struct {
	host        string
	port        int
	user        string
	pass        string
	fromName    string
	adminEmail  string
	timeout     time.Duration
	maxAttempts int
	tmpl        *template.Template
	log         *zap.Logger
}

func NewMailer(cfg *config.Config, log *zap.Logger) *Mailer {
	m := &Mailer{
		host:        cfg.SMTPServer,
		port:        cfg.SMTPPort,
		user:        cfg.SMTPUser,
		pass:        cfg.SMTPPass,
		fromName:    cfg.SMTPFromName,
		adminEmail:  cfg.AdminEmail,
		timeout:     time.Duration(cfg.SMTPTimeoutSec) * time.Second,
		maxAttempts: cfg.NotifyMaxAttempts,
		log:         log,
	}
	if m.maxAttempts < 1 {
		m.maxAttempts = 1
	}
	m.tmpl = loadTemplate(cfg.DataDir, log)
	return m
}

func loadTemplate(dataDir string, log *zap.Logger) *template.Template {
	path := dataDir + string(os.PathSeparator) + "email.html"
	data, err := os.ReadFile(path)
	if err == nil {
		if t, err := template.New("email").Parse(string(data)); err == nil {
			return t
		}
		log.Error("Installed email template unparsable, using fallback", zap.String("path", path))
	}
	return template.Must(template.New("email").Parse(defaultTemplate))
}

func (m *Mailer) Enabled() bool {
	return m.host != ""
}

// SendCheckin mails the guardian(s) about one recorded action.
func (m *Mailer) SendCheckin(ctx context.Context, name string, emails []string, action model.Action, ts time.Time) error {
	if !m.Enabled() {
		return pkgerrors.MailDisabled
	}
	var recipients []string
	for _, e := range emails {
		if s := strings.TrimSpace(e); s != "" {
			recipients = append(recipients, s)
		}
	}
	if len(recipients) == 0 {
		return pkgerrors.NoRecipients
	}

	var html bytes.Buffer
	err := m.tmpl.Execute(&html, map[string]string{
		"Nome": name,
		"Tipo": strings.ToLower(string(action)),
		"Hora": ts.Format("15:04"),
	})
	if err != nil {
		return fmt.Errorf("failed to render email body: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.user); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Registo de %s de %s", action, name))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("%s: %s às %s", name, action, ts.Format(model.TimeLayout)))
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())

	return m.deliver(ctx, msg)
}

// SendAdmin mails the operator address (startup, shutdown, scanner
// trouble). A no-op when no admin address is configured.
func (m *Mailer) SendAdmin(ctx context.Context, subject, body string) error {
	if !m.Enabled() {
		return pkgerrors.MailDisabled
	}
	if m.adminEmail == "" {
		return pkgerrors.NoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.user); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.adminEmail); err != nil {
		return fmt.Errorf("invalid admin address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return m.deliver(ctx, msg)
}

func (m *Mailer) deliver(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithSSL(),
		mail.WithTimeout(m.timeout),
	}
	if m.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.user),
			mail.WithPassword(m.pass),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to build SMTP client: %w", err)
	}

	operation := func() error {
		return client.DialAndSendWithContext(ctx, msg)
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(m.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("SMTP delivery failed after %d attempts: %w", m.maxAttempts, err)
	}
	return nil
}
