package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"campusloop/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendWelcome 发送注册成功的欢迎邮件。
//
// SMTP 未配置时静默跳过：欢迎邮件是锦上添花，不应阻塞注册流程。
func (n *EmailNotifier) SendWelcome(ctx context.Context, toEmail string, name string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		if n.logger != nil {
			n.logger.Debug("email config missing, skip welcome mail")
		}
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "[CampusLoop] Welcome aboard 🎉")

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome to CampusLoop, %s!</h2>
    <p>Your account is ready. Post your first listing, browse what other
    students are selling, or donate something you no longer need and earn
    reward points.</p>
    <p style="color:#6b7280;font-size:12px;">You received this mail because
    someone signed up on CampusLoop with this address.</p>
  </div>
</body>
</html>`, htmlEscape(name))
	m.SetBody("text/html", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if n.logger != nil {
		n.logger.Info("welcome email sent", slog.String("to", toEmail))
	}
	return nil
}

func htmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
