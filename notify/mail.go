package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"domain-expiry/model"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

type Stage int

const (
	StageConnect Stage = iota
	StageAuth
	StageProtocol
	StageTransport
)

func (s Stage) String() string {
	switch s {
	case StageConnect:
		return "connect"
	case StageAuth:
		return "auth"
	case StageProtocol:
		return "protocol"
	case StageTransport:
		return "transport"
	}
	return "stage(" + strconv.Itoa(int(s)) + ")"
}

// Error tells at which stage of the SMTP session delivery failed.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mail %s failure: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == model.ErrMail }

type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers over implicit TLS, as on port 465.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	RootCAs  *x509.CertPool
	Timeout  time.Duration
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    &tls.Config{ServerName: m.Host, RootCAs: m.RootCAs},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &Error{StageConnect, errors.Wrapf(err, "dial %s", addr)}
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return &Error{StageConnect, errors.Wrap(err, "greeting")}
	}
	quit := false
	defer func() {
		if !quit {
			c.Close()
		}
	}()

	if err := c.Auth(smtp.PlainAuth("", m.Username, m.Password, m.Host)); err != nil {
		return &Error{StageAuth, err}
	}
	if err := c.Mail(msg.From); err != nil {
		return sessionError("MAIL FROM", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return sessionError("RCPT TO", err)
	}
	w, err := c.Data()
	if err != nil {
		return sessionError("DATA", err)
	}
	if _, err := compose(msg).WriteTo(w); err != nil {
		w.Close()
		return &Error{StageTransport, errors.Wrap(err, "write message")}
	}
	if err := w.Close(); err != nil {
		return sessionError("end of data", err)
	}

	quit = true
	if err := c.Quit(); err != nil {
		c.Close()
		return sessionError("QUIT", err)
	}
	return nil
}

// sessionError keeps server replies apart from broken connections.
func sessionError(step string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &Error{StageProtocol, errors.Wrap(err, step)}
	}
	return &Error{StageTransport, errors.Wrap(err, step)}
}

func compose(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}
