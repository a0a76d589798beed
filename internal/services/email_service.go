package services

import (
	"fmt"
	"html"
	"strconv"
	"time"

	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/models"
)

// Mailer sends a single HTML email.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type smtpMailer struct {
	from string
	send func(messages ...*mail.Msg) error
}

type logMailer struct {
	log *zap.Logger
}

// NewMailer returns an SMTP mailer, or one that only logs when no SMTP host is set.
func NewMailer(cfg *config.Config, log *zap.Logger) (Mailer, error) {
	if cfg.SMTPHost == "" {
		return &logMailer{log: log.Named("mail")}, nil
	}
	return newSMTPMailer(cfg)
}

// newSMTPMailer builds a go-mail client. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS, which production requires.
func newSMTPMailer(cfg *config.Config) (*smtpMailer, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", cfg.SMTPPort, err)
	}

	policy := mail.TLSOpportunistic
	if cfg.IsProduction() {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{mail.WithPort(port), mail.WithTLSPolicy(policy)}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &smtpMailer{from: cfg.SMTPFrom, send: client.DialAndSend}, nil
}

func (m *smtpMailer) message(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (m *smtpMailer) SendEmail(to, subject, body string) error {
	msg, err := m.message(to, subject, body)
	if err != nil {
		return err
	}
	if err := m.send(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (m *logMailer) SendEmail(to, subject, _ string) error {
	m.log.Info("smtp not configured, email not sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// EmailService composes the transactional emails.
type EmailService struct {
	mailer Mailer
	ttl    time.Duration
}

// NewEmailService builds an EmailService. ttl is quoted in OTP emails.
func NewEmailService(mailer Mailer, ttl time.Duration) *EmailService {
	return &EmailService{mailer: mailer, ttl: ttl}
}

// SendOTP emails a one-time code for the given purpose.
func (s *EmailService) SendOTP(to, name string, code string, purpose models.OTPPurpose) error {
	subject := "HairNova - verify your email"
	intro := "Thanks for signing up. Use the code below to verify your email address."
	if purpose == models.OTPForgotPassword {
		subject = "HairNova - password reset code"
		intro = "We received a request to reset your password. Use the code below to continue."
	}

	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + html.EscapeString(name)
	}

	body := fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:480px">
<p>%s,</p>
<p>%s</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:6px">%s</p>
<p>The code expires in %d minutes and can be used once. If you did not request it, ignore this email.</p>
</div>`, greeting, intro, code, int(s.ttl.Minutes()))

	return s.mailer.SendEmail(to, subject, body)
}
