package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"seatwatch/lib/telemetry"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("seatwatch.lib.mailer")

var (
	// ErrConnect covers dialing, greeting and STARTTLS failures.
	ErrConnect = errors.New("could not talk to smtp server")
	// ErrAuth means the server rejected the login.
	ErrAuth = errors.New("smtp login rejected")
)

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	// paths of files to attach, optional
	Attachments []string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("message has no sender")
	}
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	return nil
}

// Compose renders the message, `now` becomes its Date header and To is
// the recipients joined by ", ". The body is a single text/plain part,
// attachments turn it into multipart/mixed.
func Compose(msg Message, now time.Time) ([]byte, error) {
	err := msg.validate()
	if err != nil {
		return nil, err
	}

	mail := email.NewEmail()
	mail.From = msg.From
	mail.To = msg.To
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body)
	mail.Headers.Set("Date", now.Format(time.RFC1123Z))

	for _, path := range msg.Attachments {
		_, err := mail.AttachFile(path)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", path, err)
		}
	}

	rendered, err := mail.Bytes()
	if err != nil {
		return nil, err
	}
	return setAddressHeaders(rendered, msg.From, msg.To), nil
}

// setAddressHeaders replaces the From and To lines of a rendered message
// with the addresses as given, the renderer wraps each bare address in
// angle brackets.
func setAddressHeaders(rendered []byte, from string, to []string) []byte {
	end := bytes.Index(rendered, []byte("\r\n\r\n"))
	if end < 0 {
		return rendered
	}

	lines := strings.Split(string(rendered[:end]), "\r\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "From: "):
			lines[i] = "From: " + from
		case strings.HasPrefix(line, "To: "):
			lines[i] = "To: " + strings.Join(to, ", ")
		}
	}

	var out bytes.Buffer
	out.WriteString(strings.Join(lines, "\r\n"))
	out.Write(rendered[end:])
	return out.Bytes()
}

// Transport delivers one rendered message.
type Transport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Mailer composes and hands off messages, it keeps no state between
// calls and never retries, each call delivers at most once.
type Mailer struct {
	Transport Transport
	// defaults to time.Now
	Now func() time.Time
}

func (m Mailer) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "Send")
	defer span.End()

	span.SetAttributes(
		attribute.String("subject", msg.Subject),
		attribute.Int("recipients", len(msg.To)),
	)

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	body, err := Compose(msg, now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compose email")
		return err
	}

	err = m.Transport.Send(ctx, msg.From, msg.To, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// Send delivers `msg` through a single smtp session described by `cfg`.
func Send(ctx context.Context, msg Message, cfg SmtpConfig) error {
	return Mailer{Transport: NewSmtpTransport(cfg)}.Send(ctx, msg)
}
