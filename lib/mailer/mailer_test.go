package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	from string
	to   []string
	body []byte
}

type recordingTransport struct {
	sent []sentMessage
	err  error
}

func (r *recordingTransport) Send(ctx context.Context, from string, to []string, msg []byte) error {
	r.sent = append(r.sent, sentMessage{from: from, to: to, body: msg})
	return r.err
}

var fixedNow = time.Date(2019, time.September, 3, 9, 30, 0, 0, time.FixedZone("ADT", -3*60*60))

func readMessage(t testing.TB, raw []byte) *mail.Message {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestComposeHeaders(t *testing.T) {
	raw, err := Compose(Message{
		From:    "watcher@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "SEATS ARE AVAILABLE FOR CSCI3136",
		Body:    "Seats Available: 5",
	}, fixedNow)
	if err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, raw)
	require.Equal(t, "a@example.com, b@example.com", msg.Header.Get("To"))
	require.Equal(t, "watcher@example.com", msg.Header.Get("From"))
	require.Equal(t, "SEATS ARE AVAILABLE FOR CSCI3136", msg.Header.Get("Subject"))

	date, err := msg.Header.Date()
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, fixedNow.Equal(date))

	mediaType, _, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "text/plain", mediaType)

	body, err := io.ReadAll(quotedprintable.NewReader(msg.Body))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Seats Available: 5", strings.TrimSpace(string(body)))
}

func TestComposeWithAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.txt")
	err := os.WriteFile(path, []byte("CSCI3136 timetable"), 0600)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := Compose(Message{
		From:        "watcher@example.com",
		To:          []string{"a@example.com"},
		Subject:     "subject",
		Body:        "body",
		Attachments: []string{path},
	}, fixedNow)
	if err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, raw)
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "multipart/mixed", mediaType)

	textParts := 0
	parts := 0
	reader := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		parts++
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if partType == "text/plain" && part.FileName() == "" {
			textParts++
		}
	}
	require.Equal(t, 2, parts)
	require.Equal(t, 1, textParts)
}

func TestComposeRejectsIncomplete(t *testing.T) {
	_, err := Compose(Message{To: []string{"a@example.com"}}, fixedNow)
	require.Error(t, err)
	_, err = Compose(Message{From: "a@example.com"}, fixedNow)
	require.Error(t, err)
}

func TestMailerSendsOnce(t *testing.T) {
	transport := &recordingTransport{}
	m := Mailer{Transport: transport, Now: func() time.Time { return fixedNow }}

	err := m.Send(context.Background(), Message{
		From:    "watcher@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "hello",
		Body:    "Seats Available: 3",
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, transport.sent, 1)
	require.Equal(t, "watcher@example.com", transport.sent[0].from)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, transport.sent[0].to)
	require.Equal(t, "a@example.com, b@example.com", readMessage(t, transport.sent[0].body).Header.Get("To"))
}

func TestMailerDoesNotRetry(t *testing.T) {
	transport := &recordingTransport{err: ErrConnect}
	m := Mailer{Transport: transport}

	err := m.Send(context.Background(), Message{
		From: "watcher@example.com",
		To:   []string{"a@example.com"},
		Body: "x",
	})
	require.ErrorIs(t, err, ErrConnect)
	require.Len(t, transport.sent, 1)
}

func TestComposeKeepsAddressesAsGiven(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	err := os.WriteFile(path, []byte("x"), 0600)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := Compose(Message{
		From:        "watcher@example.com",
		To:          []string{"a@example.com", "b@example.com", "c@example.com"},
		Subject:     "subject",
		Body:        "To: someone@example.com\nFrom: nobody",
		Attachments: []string{path},
	}, fixedNow)
	if err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, raw)
	require.Equal(t, "a@example.com, b@example.com, c@example.com", msg.Header.Get("To"))
	require.Equal(t, "watcher@example.com", msg.Header.Get("From"))
	require.Len(t, msg.Header["To"], 1)

	// only the header block is rewritten
	require.Contains(t, string(raw), "To: someone@example.com")
}
