// internal/service/email/service.go
package email

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Config describes the SMTP relay. Secure selects implicit TLS (port 465);
// otherwise STARTTLS is negotiated by net/smtp.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	Secure   bool
}

// Enabled reports whether a relay host is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// EmailSender delivers one-time login codes via SMTP.
type EmailSender struct {
	cfg Config
}

func NewEmailSender(cfg Config) *EmailSender {
	if cfg.FromName == "" {
		cfg.FromName = "PipX"
	}
	return &EmailSender{cfg: cfg}
}

// SendOTP mails a login code valid for ttl.
func (e *EmailSender) SendOTP(to, code string, ttl time.Duration) error {
	body := fmt.Sprintf(
		"<p>Your PipX login code is</p><p class=\"code\">%s</p><p>It expires in %d minutes. If you did not ask for it you can ignore this email.</p>",
		code, int(ttl.Minutes()),
	)
	return e.Send(to, "Your PipX login code", body)
}

// Send sends an email with a subject and an HTML body.
func (e *EmailSender) Send(to, subject, bodyHTML string) error {
	msg := buildMessage(e.cfg.FromName, e.cfg.Username, to, subject, bodyHTML)
	serverAddr := e.cfg.Host + ":" + e.cfg.Port

	if !e.cfg.Secure {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
		if err := smtp.SendMail(serverAddr, auth, e.cfg.Username, []string{to}, msg); err != nil {
			return fmt.Errorf("send mail failed: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", serverAddr, &tls.Config{ServerName: e.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}
	return e.sendMail(client, to, msg)
}

func (e *EmailSender) sendMail(client *smtp.Client, to string, msg []byte) error {
	if err := client.Mail(e.cfg.Username); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

func buildMessage(fromName, fromAddr, to, subject, bodyHTML string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, fromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(buildHTMLTemplate(bodyHTML))
	return []byte(b.String())
}

// buildHTMLTemplate wraps a body into the PipX email layout.
func buildHTMLTemplate(content string) string {
	header := `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8" />
		<title>PipX</title>
		<style>
			body { font-family: Arial, sans-serif; background-color: #0f1419; padding: 30px; }
			.container { max-width: 560px; margin: auto; background: #fff; border-radius: 10px; overflow: hidden; }
			.header { background: #12b886; color: white; text-align: center; padding: 20px; font-size: 22px; font-weight: bold; }
			.body { padding: 25px; color: #333; line-height: 1.6; }
			.code { font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center; }
			.footer { background: #f1f1f1; color: #555; text-align: center; padding: 15px; font-size: 13px; }
		</style>
	</head>
	<body>
	<div class="container">
		<div class="header">PipX</div>
		<div class="body">
	`

	footer := `
		</div>
		<div class="footer">
			<p>PipX trading signals</p>
		</div>
	</div>
	</body>
	</html>
	`

	return header + strings.TrimSpace(content) + footer
}
