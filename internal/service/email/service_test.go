package email

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("PipX", "noreply@pipx.dev", "trader@pipx.dev", "Your PipX login code", "<p>123456</p>"))

	for _, want := range []string{
		"From: PipX <noreply@pipx.dev>\r\n",
		"To: trader@pipx.dev\r\n",
		"Subject: Your PipX login code\r\n",
		"Content-Type: text/html; charset=\"utf-8\"\r\n\r\n",
		"<p>123456</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(Config{Host: "smtp.example.com"}).Enabled() {
		t.Error("config with host should be enabled")
	}
}

func TestNewEmailSender_DefaultsFromName(t *testing.T) {
	if got := NewEmailSender(Config{}).cfg.FromName; got != "PipX" {
		t.Errorf("FromName = %q, want PipX", got)
	}
}
