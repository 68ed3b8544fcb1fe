package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/nikoksr/notify/service/mail"
)

// SMTPConfig holds the SMTP relay settings for MailSender.
type SMTPConfig struct {
	SenderAddress string
	Host          string
	Port          string
	Identity      string
	Username      string
	Password      string
}

// MailSender sends acceptance emails over SMTP.
type MailSender struct {
	cfg SMTPConfig
}

func NewMailSender(cfg SMTPConfig) *MailSender {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &MailSender{cfg: cfg}
}

func (m *MailSender) Send(ctx context.Context, msg AcceptanceEmail) error {
	subject, body, err := renderAcceptance(msg)
	if err != nil {
		return err
	}

	svc := mail.New(m.cfg.SenderAddress, m.cfg.Host+":"+m.cfg.Port)
	if m.cfg.Username != "" {
		svc.AuthenticateSMTP(m.cfg.Identity, m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	svc.AddReceivers(msg.To)

	if err := svc.Send(ctx, subject, body); err != nil {
		return fmt.Errorf("notify: sending email to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender only logs the email. It stands in when no SMTP host is set.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, msg AcceptanceEmail) error {
	subject, _, err := renderAcceptance(msg)
	if err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "email not sent: SMTP is not configured",
		"to", msg.To,
		"subject", subject,
	)
	return nil
}

func renderAcceptance(msg AcceptanceEmail) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := acceptanceTmpl.Execute(&buf, msg); err != nil {
		return "", "", fmt.Errorf("notify: executing template: %w", err)
	}
	return fmt.Sprintf("You're in! Welcome to %s", msg.ProjectTitle), buf.String(), nil
}

var acceptanceTmpl = template.Must(template.New("acceptance").Parse(acceptanceTemplate))

const acceptanceTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Open Collab Hub</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background-color: #f5f5f5;
            color: #333;
        }
        .container {
            max-width: 600px;
            margin: 0 auto;
            background-color: white;
            border-radius: 8px;
            padding: 30px;
        }
        .project {
            background-color: #e9ecef;
            padding: 8px 16px;
            border-radius: 20px;
            display: inline-block;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Congratulations, {{ .Username }}!</h1>
        <p>Your request to join the project below has been accepted.</p>
        <div class="project">{{ .ProjectTitle }}</div>
        <p>Get in touch with the owner and start collaborating.</p>
        <p>The Open Collab Hub team</p>
    </div>
</body>
</html>
`
