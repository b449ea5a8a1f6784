package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Dan9191/cashflow-risk/internal/config"
	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendRiskAlert notifies the configured recipients that an SME's latest month scored High Risk
func (s *Sender) SendRiskAlert(row models.ScoredRow) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = s.cfg.AlertRecipients
	e.Subject = fmt.Sprintf("Cash-flow risk alert: %s (%s)", row.SMEID, row.RiskBucket)
	e.Text = []byte(alertBody(row))

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send risk alert for %s: %v", row.SMEID, err)
		return fmt.Errorf("failed to send risk alert: %w", err)
	}

	s.logger.Infof("Risk alert sent for %s to %s", row.SMEID, strings.Join(e.To, ", "))
	return nil
}

func alertBody(row models.ScoredRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SME %s scored %.1f (%s) for %s.\n\n", row.SMEID, row.RiskScore, row.RiskBucket, row.Month)
	fmt.Fprintf(&b, "Cash in:            %.2f\n", row.CashIn)
	fmt.Fprintf(&b, "Cash out:           %.2f\n", row.CashOut)
	fmt.Fprintf(&b, "Net cash flow:      %.2f\n", row.NetCashflow)
	fmt.Fprintf(&b, "3-month avg sales:  %.2f\n", row.Sales3mAvg)
	fmt.Fprintf(&b, "3-month avg costs:  %.2f\n", row.Expense3mAvg)
	fmt.Fprintf(&b, "Sales volatility:   %.2f\n", row.SalesVolatility)
	fmt.Fprintf(&b, "\nModel version: %s\n", row.ModelVersion)
	b.WriteString("\nBest regards,\nCash-Flow Risk Service")
	return b.String()
}
