package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

const DefaultPort = 587

type SmtpConfig struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	// defaults to true
	StartTLS *bool `json:"starttls"`
}

func (c SmtpConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Server, strconv.Itoa(port))
}

func (c SmtpConfig) useStartTLS() bool {
	return c.StartTLS == nil || *c.StartTLS
}

// net/smtp only sends a password over an unencrypted connection to these
func isLocalhost(server string) bool {
	return server == "localhost" || server == "127.0.0.1" || server == "::1"
}

// checkLogin rejects a login that would send the password in the clear,
// net/smtp refuses it only after connecting and the refusal reads like a
// bad password.
func (c SmtpConfig) checkLogin() error {
	if c.Username == "" || c.useStartTLS() || isLocalhost(c.Server) {
		return nil
	}
	return fmt.Errorf("%w: logging into %s requires starttls", ErrConnect, c.Server)
}

// SmtpTransport opens a new session for every message:
// connect, STARTTLS (optional), AUTH PLAIN, MAIL/RCPT/DATA, QUIT.
// login is skipped when no username is configured.
type SmtpTransport struct {
	config  SmtpConfig
	timeout time.Duration
}

func NewSmtpTransport(cfg SmtpConfig) SmtpTransport {
	return SmtpTransport{
		config:  cfg,
		timeout: time.Second * 30,
	}
}

func (t SmtpTransport) Send(ctx context.Context, from string, to []string, msg []byte) error {
	ctx, span := tracer.Start(ctx, "SmtpTransport.Send")
	defer span.End()

	if t.config.Server == "" {
		return fmt.Errorf("%w: no smtp server configured", ErrConnect)
	}
	err := t.config.checkLogin()
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.config.addr())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(t.timeout))
	}

	client, err := smtp.NewClient(conn, t.config.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer client.Close()

	if t.config.useStartTLS() {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("%w: %s does not support STARTTLS", ErrConnect, t.config.Server)
		}
		err = client.StartTLS(&tls.Config{ServerName: t.config.Server})
		if err != nil {
			return fmt.Errorf("%w: starttls: %w", ErrConnect, err)
		}
	}

	if t.config.Username != "" {
		auth := smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Server)
		err = client.Auth(auth)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuth, err)
		}
	}

	err = client.Mail(from)
	if err != nil {
		return fmt.Errorf("mail from %s: %w", from, err)
	}
	for _, addr := range to {
		err = client.Rcpt(addr)
		if err != nil {
			return fmt.Errorf("rcpt to %s: %w", addr, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	_, err = w.Write(msg)
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	err = w.Close()
	if err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}
