package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/hairnova/internal/database"
	"github.com/example/hairnova/internal/models"
)

var codePattern = regexp.MustCompile(`letter-spacing:6px">(\d{6})<`)

func capturedCode(t *testing.T, m *mockMailer, call int) string {
	body := m.Calls[call].Arguments.String(2)
	match := codePattern.FindStringSubmatch(body)
	require.Len(t, match, 2, "code not found in email body")
	return match[1]
}

func newOTPService(t *testing.T) (*OTPService, *mockMailer) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	mailer := new(mockMailer)
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return NewOTPService(db, NewEmailService(mailer, 10*time.Minute), 10*time.Minute), mailer
}

func TestOTPService_IssueAndConsume(t *testing.T) {
	svc, mailer := newOTPService(t)

	require.NoError(t, svc.Issue(" Mai@Example.com", "Mai", models.OTPRegistration))
	code := capturedCode(t, mailer, 0)
	assert.Equal(t, "mai@example.com", mailer.Calls[0].Arguments.String(0))

	assert.ErrorIs(t, svc.Consume(svc.db, "mai@example.com", code, models.OTPForgotPassword), ErrOTPInvalid)
	require.NoError(t, svc.Consume(svc.db, "MAI@example.com", code, models.OTPRegistration))
	assert.ErrorIs(t, svc.Consume(svc.db, "mai@example.com", code, models.OTPRegistration), ErrOTPInvalid, "codes are single use")
}

func TestOTPService_ReissueExpiresOldCode(t *testing.T) {
	svc, mailer := newOTPService(t)

	require.NoError(t, svc.Issue("mai@example.com", "", models.OTPForgotPassword))
	require.NoError(t, svc.Issue("mai@example.com", "", models.OTPForgotPassword))
	first, second := capturedCode(t, mailer, 0), capturedCode(t, mailer, 1)

	if first != second {
		assert.ErrorIs(t, svc.Consume(svc.db, "mai@example.com", first, models.OTPForgotPassword), ErrOTPInvalid)
	}
	assert.NoError(t, svc.Consume(svc.db, "mai@example.com", second, models.OTPForgotPassword))
}

func TestOTPService_Expiry(t *testing.T) {
	svc, mailer := newOTPService(t)
	issued := time.Now()
	svc.now = func() time.Time { return issued }

	require.NoError(t, svc.Issue("mai@example.com", "", models.OTPRegistration))
	code := capturedCode(t, mailer, 0)

	svc.now = func() time.Time { return issued.Add(11 * time.Minute) }
	assert.ErrorIs(t, svc.Consume(svc.db, "mai@example.com", code, models.OTPRegistration), ErrOTPInvalid)
	assert.ErrorIs(t, svc.Consume(svc.db, "", "", models.OTPRegistration), ErrOTPInvalid)
}

func TestOTPService_WrongGuessesBurnCode(t *testing.T) {
	svc, mailer := newOTPService(t)

	require.NoError(t, svc.Issue("mai@example.com", "", models.OTPForgotPassword))
	code := capturedCode(t, mailer, 0)

	for i := 0; i < models.MaxOTPAttempts-1; i++ {
		require.NoError(t, svc.RecordFailure("MAI@example.com", models.OTPForgotPassword))
	}
	var otp models.OTP
	require.NoError(t, svc.db.Where("email = ?", "mai@example.com").First(&otp).Error)
	assert.Equal(t, models.MaxOTPAttempts-1, otp.Attempts)
	assert.True(t, otp.Usable(time.Now()))

	require.NoError(t, svc.RecordFailure("mai@example.com", models.OTPForgotPassword))
	assert.ErrorIs(t, svc.Consume(svc.db, "mai@example.com", code, models.OTPForgotPassword), ErrOTPInvalid)

	require.NoError(t, svc.RecordFailure("nobody@example.com", models.OTPForgotPassword), "no live code is a no-op")
	require.NoError(t, svc.RecordFailure("", models.OTPForgotPassword))
}
