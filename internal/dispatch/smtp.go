// internal/dispatch/smtp.go
package dispatch

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"pizzahost-workers/internal/common/config"
)

// MailRelay performs a single complete send: dial, deliver, quit.
type MailRelay interface {
	SendOnce(to, subject, html string) (string, error)
}

// BatchMailRelay hands out a long-lived connection so a batch of messages can
// share one relay session.
type BatchMailRelay interface {
	Dial() (RelayConnection, error)
}

// RelayConnection is an established relay session.
type RelayConnection interface {
	Send(to, subject, html string) (string, error)
	Close() error
}

// Relay talks SMTP to the external mail relay. It is constructed explicitly
// and injected into the dispatcher and the queue processor; there is no
// process-wide shared transporter.
type Relay struct {
	cfg config.SMTPConfig
}

func NewRelay(cfg config.SMTPConfig) *Relay {
	return &Relay{cfg: cfg}
}

// Dial connects to the relay, negotiates STARTTLS when configured and
// authenticates. Dialing is bounded by the configured connect timeout.
func (r *Relay) Dial() (RelayConnection, error) {
	conn, err := net.DialTimeout("tcp", r.cfg.Addr(), r.cfg.DialTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	// Bound the greeting exchange as well; cleared once the session is up.
	_ = conn.SetDeadline(time.Now().Add(r.cfg.DialTimeout()))

	client, err := smtp.NewClient(conn, r.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP greeting failed: %w", err)
	}

	if r.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName:         r.cfg.Host,
			InsecureSkipVerify: false,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if r.cfg.Username != "" && r.cfg.Password != "" {
		auth := smtp.PlainAuth("", r.cfg.Username, r.cfg.Password, r.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	_ = conn.SetDeadline(time.Time{})

	return &relayConn{client: client, cfg: r.cfg}, nil
}

// SendOnce delivers a single message over a fresh connection.
func (r *Relay) SendOnce(to, subject, html string) (string, error) {
	conn, err := r.Dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return conn.Send(to, subject, html)
}

type relayConn struct {
	client *smtp.Client
	cfg    config.SMTPConfig
}

func (c *relayConn) Send(to, subject, html string) (string, error) {
	if err := c.client.Mail(c.cfg.From); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	if err := c.client.Rcpt(to); err != nil {
		c.abortTransaction()
		return "", fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := c.client.Data()
	if err != nil {
		c.abortTransaction()
		return "", fmt.Errorf("failed to open data writer: %w", err)
	}

	messageID := generateMessageID(to, c.cfg.Host)
	if _, err := w.Write([]byte(buildMessage(c.cfg.From, to, subject, messageID, html))); err != nil {
		w.Close()
		c.abortTransaction()
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		c.abortTransaction()
		return "", fmt.Errorf("failed to close data writer: %w", err)
	}

	return messageID, nil
}

// abortTransaction discards a half-open mail transaction so the next message
// on this connection does not draw a 503 nested MAIL response.
func (c *relayConn) abortTransaction() {
	_ = c.client.Reset()
}

func (c *relayConn) Close() error {
	return c.client.Quit()
}

func buildMessage(from, to, subject, messageID, html string) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("From: %s\r\n", from))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", to))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	builder.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(html)

	return builder.String()
}

func generateMessageID(to, host string) string {
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("<%d.%s@%s>", timestamp, sanitizeEmail(to), host)
}

func sanitizeEmail(email string) string {
	// Extract local part before @ for message ID
	parts := strings.Split(email, "@")
	if len(parts) > 0 {
		local := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, parts[0])

		if len(local) > 10 {
			local = local[:10]
		}
		return local
	}
	return "user"
}
