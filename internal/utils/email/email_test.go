package email

import (
	"errors"
	"io"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cashflow-risk/internal/config"
	"github.com/Dan9191/cashflow-risk/internal/models"
)

func testSender(send func(e *email.Email, addr string, auth smtp.Auth) error) *Sender {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := NewSender(&config.Config{
		SMTPHost:        "smtp.example.com",
		SMTPPort:        "2525",
		SenderEmail:     "alerts@example.com",
		AlertRecipients: []string{"ops@example.com"},
	}, log)
	s.send = send
	return s
}

func TestSendRiskAlert(t *testing.T) {
	var sent *email.Email
	var gotAddr string
	s := testSender(func(e *email.Email, addr string, auth smtp.Auth) error {
		sent, gotAddr = e, addr
		assert.Nil(t, auth)
		return nil
	})

	row := models.ScoredRow{
		FeatureRow: models.FeatureRow{SMEID: "SME_007", Month: "2024-09", CashIn: 100, CashOut: 250, NetCashflow: -150},
		RiskScore:  83.4,
		RiskBucket: models.BucketHigh,
	}
	require.NoError(t, s.SendRiskAlert(row))

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"ops@example.com"}, sent.To)
	assert.Contains(t, sent.Subject, "SME_007")
	assert.Contains(t, string(sent.Text), "83.4 (High Risk)")
	assert.Contains(t, string(sent.Text), "-150.00")
}

func TestSendRiskAlert_Failure(t *testing.T) {
	s := testSender(func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") })
	err := s.SendRiskAlert(models.ScoredRow{})
	assert.ErrorContains(t, err, "connection refused")
}
