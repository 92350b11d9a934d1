package mail

import (
	"fmt"
	"strings"
	"time"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

const passwordResetSubject = "Password Reset Request"

// PasswordResetMessage builds the email carrying a password reset link.
func PasswordResetMessage(from, to, resetURL string) Message {
	body := fmt.Sprintf(`Hello,

You requested a password reset. Please click the link below to reset your password:

%s

If you did not request this, please ignore this email.

Best regards,
FlashNotes Team
`, resetURL)

	return Message{
		From:    from,
		To:      to,
		Subject: passwordResetSubject,
		Body:    body,
	}
}

// Validate rejects messages that cannot be addressed, including header
// injection through CR/LF.
func (m Message) Validate() error {
	if m.From == "" || m.To == "" {
		return fmt.Errorf("mail: sender and recipient are required")
	}
	for _, v := range []string{m.From, m.To, m.Subject} {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("mail: header contains line break")
		}
	}
	return nil
}

// Bytes renders the RFC 5322 message with CRLF line endings.
func (m Message) Bytes(now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
