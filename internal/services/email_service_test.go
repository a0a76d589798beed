package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/models"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

func TestEmailService_SendOTP(t *testing.T) {
	mailer := new(mockMailer)
	mailer.On("SendEmail", "ana@example.com", "HairNova - verify your email",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "123456") && strings.Contains(body, "10 minutes") &&
				strings.Contains(body, "Ana &lt;3")
		})).Return(nil).Once()
	mailer.On("SendEmail", "ana@example.com", "HairNova - password reset code", mock.Anything).
		Return(errors.New("smtp down")).Once()

	svc := NewEmailService(mailer, 10*time.Minute)
	require.NoError(t, svc.SendOTP("ana@example.com", "Ana <3", "123456", models.OTPRegistration))
	assert.EqualError(t, svc.SendOTP("ana@example.com", "", "654321", models.OTPForgotPassword), "smtp down")

	mailer.AssertExpectations(t)
}

func TestNewMailer_LogsWithoutHost(t *testing.T) {
	m, err := NewMailer(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	_, ok := m.(*logMailer)
	assert.True(t, ok)
	assert.NoError(t, m.SendEmail("a@b.co", "s", "b"))
}

func TestNewMailer_RejectsBadPort(t *testing.T) {
	_, err := NewMailer(&config.Config{SMTPHost: "mail.local", SMTPPort: "smtp"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSMTPMailer_BuildsMessage(t *testing.T) {
	cfg := &config.Config{SMTPHost: "mail.local", SMTPPort: "2525", SMTPFrom: "shop@hairnova.local", SMTPUsername: "u", SMTPPassword: "p"}
	m, err := newSMTPMailer(cfg)
	require.NoError(t, err)

	var sent []*mail.Msg
	m.send = func(messages ...*mail.Msg) error {
		sent = append(sent, messages...)
		return nil
	}

	require.NoError(t, m.SendEmail("ana@example.com", "Mã xác nhận", "<b>body</b>"))
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"<ana@example.com>"}, sent[0].GetToString())

	var raw bytes.Buffer
	_, err = sent[0].WriteTo(&raw)
	require.NoError(t, err)
	out := raw.String()
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "<b>body</b>")
	assert.Contains(t, out, "=?UTF-8?", "non-ASCII subject is encoded")
	assert.NotContains(t, out, "Mã xác nhận")

	assert.Error(t, m.SendEmail("not an address", "Hi", "body"))

	m.send = func(...*mail.Msg) error { return errors.New("connection refused") }
	assert.ErrorContains(t, m.SendEmail("ana@example.com", "Hi", "body"), "connection refused")
}
