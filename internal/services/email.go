package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"mime"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/pkg/logger"
)

// InvitationNotice is what an invitee is told about a new invitation.
type InvitationNotice struct {
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	BoardTitle  string    `json:"board_title"`
	InviterName string    `json:"inviter_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// InvitationNotifier delivers invitation notices. Delivery failures never fail the invite.
type InvitationNotifier interface {
	SendInvitation(ctx context.Context, notice *InvitationNotice) error
}

const defaultMailTimeout = 15 * time.Second

var errHeaderInjection = errors.New("mail address contains a line break")

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService sends invitation notices over SMTP.
type EmailService struct {
	cfg      *config.MailConfig
	sendMail sendMailFunc
}

func NewEmailService(cfg *config.MailConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	s.sendMail = s.deliver
	return s
}

func (s *EmailService) enabled() bool {
	return s.cfg != nil && s.cfg.Enabled && s.cfg.Host != ""
}

func (s *EmailService) timeout() time.Duration {
	if s.cfg == nil || s.cfg.TimeoutSeconds <= 0 {
		return defaultMailTimeout
	}
	return time.Duration(s.cfg.TimeoutSeconds) * time.Second
}

func (s *EmailService) SendInvitation(ctx context.Context, notice *InvitationNotice) error {
	if !s.enabled() || notice == nil || notice.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("[Taskboard] %s invited you to %s", notice.InviterName, notice.BoardTitle)
	return s.sendEmail(ctx, []string{notice.Email}, subject, s.buildInvitationBody(notice))
}

func (s *EmailService) buildInvitationBody(n *InvitationNotice) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>You have been invited to %s</h2>", html.EscapeString(n.BoardTitle)))
	sb.WriteString(fmt.Sprintf("<p>%s invited you to join the board.</p>", html.EscapeString(n.InviterName)))

	if s.cfg.AcceptURL != "" {
		link := s.cfg.AcceptURL + n.Token
		sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Accept invitation</a></p>", html.EscapeString(link)))
	} else {
		sb.WriteString(fmt.Sprintf("<p>Invitation token: <code>%s</code></p>", html.EscapeString(n.Token)))
	}
	sb.WriteString(fmt.Sprintf("<p style=\"color: #888;\">This invitation expires on %s.</p>",
		n.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")))
	sb.WriteString("</body></html>")

	return sb.String()
}

// encodeHeader folds line breaks into spaces and RFC 2047 encodes anything
// that is not printable ASCII, so user text can never start a new header.
func encodeHeader(v string) string {
	v = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, v)
	return mime.QEncoding.Encode("utf-8", v)
}

func (s *EmailService) buildMessage(from string, to []string, subject, body string) string {
	headers := map[string]string{
		"From":         from,
		"To":           strings.Join(to, ","),
		"Subject":      encodeHeader(subject),
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var message strings.Builder
	for _, k := range keys {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}

func (s *EmailService) sendEmail(ctx context.Context, to []string, subject, body string) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}
	for _, addr := range append([]string{from}, to...) {
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("send email: %w", errHeaderInjection)
		}
	}
	message := s.buildMessage(from, to, subject, body)

	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(port))

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.sendMail(ctx, addr, auth, from, to, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info().Strs("to", to).Msg("invitation email sent")
	return nil
}

// deliver runs one SMTP exchange. The dial and every read and write after it
// are bounded by ctx and the configured timeout.
func (s *EmailService) deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if s.cfg.UseTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if !s.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
