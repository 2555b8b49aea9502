// Package notifications delivers operator-facing email about catalog
// activity. The only message today is the sync report: after a
// reconciliation run that changed the catalog, a plain-text summary is
// mailed to the configured recipients.
package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/templates-hub/templates-hub/internal/catalog"
	"github.com/templates-hub/templates-hub/internal/config"
)

// Mailer sends sync reports over SMTP. It implements catalog.Notifier.
type Mailer struct {
	cfg *config.NotificationsConfig
}

// NewMailer creates a mailer, or nil when notifications are disabled or the
// SMTP host is not configured. A nil *Mailer is safe to pass where a
// catalog.Notifier is optional.
func NewMailer(cfg *config.NotificationsConfig) *Mailer {
	if !cfg.Enabled || cfg.SMTP.Host == "" || len(cfg.Recipients) == 0 {
		return nil
	}
	return &Mailer{cfg: cfg}
}

// NotifySyncReport mails a plain-text summary of one reconciliation run.
func (m *Mailer) NotifySyncReport(_ context.Context, report *catalog.SyncReport) error {
	subject := fmt.Sprintf("Template catalog sync: %d created, %d updated, %d deleted",
		report.Created, report.Updated, report.Deleted)

	body := strings.Join([]string{
		fmt.Sprintf("Catalog sync started at %s finished in %s.", report.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"), report.Duration.Round(0)),
		"",
		fmt.Sprintf("  Templates created: %d", report.Created),
		fmt.Sprintf("  Templates updated: %d", report.Updated),
		fmt.Sprintf("  Templates deleted: %d", report.Deleted),
		fmt.Sprintf("  Orphan tags pruned: %d", report.TagsPruned),
		fmt.Sprintf("  Users without scores pruned: %d", report.UsersPruned),
		"",
		"— Templates Hub",
	}, "\r\n")

	return m.send(subject, body)
}

// send composes and delivers a plain-text email to all configured recipients.
func (m *Mailer) send(subject, body string) error {
	smtpCfg := &m.cfg.SMTP
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		smtpCfg.From, strings.Join(m.cfg.Recipients, ", "), subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)
	var auth smtp.Auth
	if smtpCfg.Username != "" {
		auth = smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)
	}

	if smtpCfg.UseTLS {
		return sendMailTLS(addr, smtpCfg.Host, auth, smtpCfg.From, m.cfg.Recipients, msg)
	}
	return smtp.SendMail(addr, auth, smtpCfg.From, m.cfg.Recipients, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a
// message. For the port 587 STARTTLS pattern the dial fails and we fall back
// to smtp.SendMail, which performs the upgrade itself, so UseTLS=true always
// means an encrypted connection.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return nil
}
