package channel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/postmark"
	"go.uber.org/zap"
)

var ErrFailedToSendEmail = errors.New("failed to send email")

// LogEmailSender writes emails to the log instead of sending them. Used in development.
type LogEmailSender struct {
	logger *zap.Logger
}

func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info("email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// PostmarkEmailSender sends plain text email through Postmark
type PostmarkEmailSender struct {
	client *postmark.Client
	from   string
	stream string
}

func NewPostmarkEmailSender(serverToken, accountToken, from, stream string) (*PostmarkEmailSender, error) {
	if serverToken == "" {
		return nil, errors.New("postmark server token is required")
	}
	if from == "" {
		return nil, errors.New("sender email is required")
	}
	return &PostmarkEmailSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
		stream: stream,
	}, nil
}

func (s *PostmarkEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:          s.from,
		To:            to,
		Subject:       subject,
		TextBody:      body,
		Tag:           "notification",
		MessageStream: s.stream,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// SMTPEmailSender sends plain text email over implicit TLS SMTP (port 465)
type SMTPEmailSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

func NewSMTPEmailSender(host string, port int, username, password, from string) *SMTPEmailSender {
	if from == "" {
		from = username
	}
	return &SMTPEmailSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		timeout:  15 * time.Second,
	}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := s.send(ctx, to, subject, body); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

func (s *SMTPEmailSender) send(ctx context.Context, to, subject, body string) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.timeout},
		Config:    &tls.Config{ServerName: s.host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(s.from, to, subject, body)); err != nil {
		return err
	}
	return w.Close()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", stripNewlines(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
