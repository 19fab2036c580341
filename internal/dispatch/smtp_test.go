package dispatch

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzahost-workers/internal/common/config"
)

// ==========================
// Fake Relay Server
// ==========================

// startFakeRelay runs a minimal SMTP server that enforces transaction state:
// a MAIL command while a transaction is open draws 503, recipients at
// reject.example.com draw 550, and RSET clears the transaction.
func startFakeRelay(t *testing.T) config.SMTPConfig {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 fake relay ready\r\n")

		inTransaction := false
		inData := false
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			if inData {
				if line == "." {
					inData = false
					inTransaction = false
					fmt.Fprintf(conn, "250 message accepted\r\n")
				}
				continue
			}

			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				fmt.Fprintf(conn, "250 fake\r\n")
			case strings.HasPrefix(cmd, "MAIL"):
				if inTransaction {
					fmt.Fprintf(conn, "503 nested MAIL command\r\n")
				} else {
					inTransaction = true
					fmt.Fprintf(conn, "250 sender ok\r\n")
				}
			case strings.HasPrefix(cmd, "RCPT"):
				if strings.Contains(line, "reject.example.com") {
					fmt.Fprintf(conn, "550 mailbox unavailable\r\n")
				} else {
					fmt.Fprintf(conn, "250 recipient ok\r\n")
				}
			case strings.HasPrefix(cmd, "DATA"):
				inData = true
				fmt.Fprintf(conn, "354 go ahead\r\n")
			case strings.HasPrefix(cmd, "RSET"):
				inTransaction = false
				fmt.Fprintf(conn, "250 flushed\r\n")
			case strings.HasPrefix(cmd, "QUIT"):
				fmt.Fprintf(conn, "221 bye\r\n")
				return
			default:
				fmt.Fprintf(conn, "250 ok\r\n")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return config.SMTPConfig{
		Host:           host,
		Port:           port,
		From:           "noreply@pizzahost.example",
		ConnectTimeout: 2000,
	}
}

// ==========================
// Relay Connection Tests
// ==========================

func TestRelayConn_SurvivesRejectedRecipient(t *testing.T) {
	relay := NewRelay(startFakeRelay(t))

	conn, err := relay.Dial()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Send("anyone@reject.example.com", "subject", "<div>a</div>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")

	// The rejection must not poison the shared connection.
	id, err := conn.Send("staff@example.com", "subject", "<div>b</div>")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRelayConn_MidBatchRejection(t *testing.T) {
	relay := NewRelay(startFakeRelay(t))

	conn, err := relay.Dial()
	require.NoError(t, err)
	defer conn.Close()

	recipients := []string{
		"first@example.com",
		"second@reject.example.com",
		"third@example.com",
	}

	var failed int
	for _, to := range recipients {
		if _, err := conn.Send(to, "subject", "<div>order</div>"); err != nil {
			failed++
			assert.Contains(t, err.Error(), "550", "only the rejected recipient may fail")
		}
	}

	assert.Equal(t, 1, failed)
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("noreply@pizzahost.example", "staff@example.com", "New Pizza Order #order-1", "<123.staff@smtp.example.com>", "<div>order</div>")

	assert.True(t, strings.HasPrefix(msg, "From: noreply@pizzahost.example\r\n"))
	assert.Contains(t, msg, "To: staff@example.com\r\n")
	assert.Contains(t, msg, "Subject: New Pizza Order #order-1\r\n")
	assert.Contains(t, msg, "Message-ID: <123.staff@smtp.example.com>\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n<div>order</div>"))
}

func TestGenerateMessageID(t *testing.T) {
	id := generateMessageID("staff@example.com", "smtp.example.com")

	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@smtp.example.com>"))
	assert.Contains(t, id, "staff")

	// Two ids generated back to back must not collide.
	assert.NotEqual(t, id, generateMessageID("staff@example.com", "smtp.example.com"))
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"plain local part", "staff@example.com", "staff"},
		{"special characters stripped", "first.last+tag@example.com", "firstlastt"},
		{"long local part truncated", "averylongmailboxname@example.com", "averylongm"},
		{"no at sign", "nodomain", "nodomain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeEmail(tt.email))
		})
	}
}
