package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/white/crm-backend/config"
)

// Message is an outbound email handed to the mail provider.
type Message struct {
	To        []string
	CC        []string
	Subject   string
	BodyText  string
	MessageID string
	InReplyTo string
}

// SMTPClient represents an SMTP email client
type SMTPClient struct {
	host       string
	port       int
	username   string
	password   string
	fromEmail  string
	replyTo    string
	tlsEnabled bool
}

// NewSMTPClient creates a new SMTP client with explicit configuration
func NewSMTPClient(cfg config.SMTPConfig) *SMTPClient {
	from := cfg.FromEmail
	if from == "" {
		from = cfg.Username
	}
	replyTo := cfg.ReplyTo
	if replyTo == "" {
		replyTo = from
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	return &SMTPClient{
		host:       cfg.Host,
		port:       port,
		username:   cfg.Username,
		password:   cfg.Password,
		fromEmail:  from,
		replyTo:    replyTo,
		tlsEnabled: cfg.TLSEnabled,
	}
}

// FromAddress returns the envelope sender.
func (c *SMTPClient) FromAddress() string {
	return c.fromEmail
}

// Send delivers msg through the configured relay.
func (c *SMTPClient) Send(ctx context.Context, msg Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if c.tlsEnabled {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: c.host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if c.username != "" {
		if err := client.Auth(smtp.PlainAuth("", c.username, c.password, c.host)); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(c.fromEmail); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range append(append([]string{}, msg.To...), msg.CC...) {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(c.buildMessage(msg)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

func (c *SMTPClient) buildMessage(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", c.fromEmail)
	fmt.Fprintf(&buf, "Reply-To: %s\r\n", c.replyTo)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	if msg.MessageID != "" {
		fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", msg.MessageID)
	}
	if msg.InReplyTo != "" {
		fmt.Fprintf(&buf, "In-Reply-To: <%s>\r\n", msg.InReplyTo)
		fmt.Fprintf(&buf, "References: <%s>\r\n", msg.InReplyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(msg.BodyText, "\n", "\r\n"))
	return buf.Bytes()
}

// validateMessage validates message before sending
func validateMessage(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if msg.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if msg.BodyText == "" {
		return fmt.Errorf("message body is required")
	}
	return nil
}
