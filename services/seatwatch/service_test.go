package seatwatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"seatwatch/lib/mailer"
	"seatwatch/lib/registrar"
	"seatwatch/lib/scrapers/dalonline"
	"seatwatch/lib/testutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []mailer.Message
	err      error
}

func (n *recordingNotifier) Send(ctx context.Context, msg mailer.Message) error {
	n.messages = append(n.messages, msg)
	return n.err
}

type timetableServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []url.Values
}

func startTimetable(t testing.TB, seats ...string) *timetableServer {
	s := &timetableServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		i := len(s.queries) - 1
		s.mu.Unlock()

		if r.URL.Path != "/PROD/fysktime.P_DisplaySchedule" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if i >= len(seats) {
			i = len(seats) - 1
		}
		w.Write([]byte(schedulePage(seats[i])))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *timetableServer) requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func watchAgainst(t testing.TB, server *timetableServer) WatchOptions {
	q, err := dalonline.NewCourseQuery(server.URL, "3136", "202010")
	if err != nil {
		t.Fatal(err)
	}
	return WatchOptions{
		Query:   q,
		Fetcher: dalonline.NewClient(dalonline.ClientOptions{Timeout: time.Second * 5}),
		Sleep:   noSleep,
	}
}

func TestRunNotifyMode(t *testing.T) {
	testutil.SetupTelemetry(t)

	server := startTimetable(t, "0", "5")
	notifier := &recordingNotifier{}
	launched := false

	summary, err := Run(context.Background(), Options{
		Watch:    watchAgainst(t, server),
		Mode:     ModeNotify,
		Notifier: notifier,
		From:     "watcher@example.com",
		To:       []string{"a@example.com", "b@example.com"},
		Launch: func(ctx context.Context) (registrar.Driver, error) {
			launched = true
			return nil, errors.New("should not be called")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 5, summary.Seats)
	require.Nil(t, summary.Registration)
	require.Len(t, summary.RunId, 8)
	require.False(t, launched)

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	require.Equal(t, "SEATS ARE AVAILABLE FOR CSCI3136", msg.Subject)
	require.Equal(t, "Seats Available: 5", msg.Body)
	require.Equal(t, "watcher@example.com", msg.From)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, msg.To)

	requests := server.requests()
	require.Len(t, requests, 2)
	for _, query := range requests {
		require.Equal(t, "202010", query.Get("s_term"))
		require.Equal(t, "CSCI", query.Get("s_subj"))
		require.Equal(t, "3136", query.Get("s_numb"))
		require.Equal(t, "100", query.Get("s_district"))
	}
}

type scriptedDriver struct {
	actions int
	closed  bool
}

func (d *scriptedDriver) Goto(ctx context.Context, url string) error { d.actions++; return nil }
func (d *scriptedDriver) Fill(ctx context.Context, selector, value string) error {
	d.actions++
	return nil
}
func (d *scriptedDriver) SelectValue(ctx context.Context, selector, value string) error {
	d.actions++
	return nil
}
func (d *scriptedDriver) Click(ctx context.Context, selector string) error { d.actions++; return nil }
func (d *scriptedDriver) Close() error {
	d.closed = true
	return nil
}

func bookOptions() registrar.Options {
	return registrar.Options{
		Portal:   registrar.DefaultPortal(),
		Locators: registrar.DefaultLocators(),
		Term:     "202010",
		Credentials: registrar.Credentials{
			NetID:    "ab123456",
			Password: "hunter2",
		},
		Intent: registrar.Intent{
			Add:  true,
			CRNs: []string{"11111"},
		},
	}
}

func TestRunBookMode(t *testing.T) {
	testutil.SetupTelemetry(t)

	server := startTimetable(t, "2")
	notifier := &recordingNotifier{}
	driver := &scriptedDriver{}

	summary, err := Run(context.Background(), Options{
		Watch:    watchAgainst(t, server),
		Mode:     ModeBook,
		Notifier: notifier,
		From:     "watcher@example.com",
		To:       []string{"a@example.com"},
		Launch: func(ctx context.Context) (registrar.Driver, error) {
			// the email goes out before the browser starts
			require.Len(t, notifier.messages, 1)
			return driver, nil
		},
		Registration: bookOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}

	require.NotNil(t, summary.Registration)
	require.Equal(t, registrar.AddSubmitted, summary.Registration.Reached)
	require.Equal(t, 1, summary.Registration.Added)
	require.True(t, driver.closed)
}

func TestRunNotificationFailureSkipsBooking(t *testing.T) {
	testutil.SetupTelemetry(t)

	server := startTimetable(t, "1")
	notifier := &recordingNotifier{err: fmt.Errorf("%w: dial tcp: refused", mailer.ErrConnect)}
	launched := false

	_, err := Run(context.Background(), Options{
		Watch:    watchAgainst(t, server),
		Mode:     ModeBook,
		Notifier: notifier,
		From:     "watcher@example.com",
		To:       []string{"a@example.com"},
		Launch: func(ctx context.Context) (registrar.Driver, error) {
			launched = true
			return &scriptedDriver{}, nil
		},
		Registration: bookOptions(),
	})
	require.ErrorIs(t, err, mailer.ErrConnect)
	require.Equal(t, CategoryTransient, Classify(err))
	require.False(t, launched)
}

func TestRunServerErrorIsTransient(t *testing.T) {
	testutil.SetupTelemetry(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	q, err := dalonline.NewCourseQuery(server.URL, "3136", "202010")
	if err != nil {
		t.Fatal(err)
	}
	notifier := &recordingNotifier{}
	_, err = Run(context.Background(), Options{
		Watch: WatchOptions{
			Query:   q,
			Fetcher: dalonline.NewClient(dalonline.ClientOptions{}),
			Sleep:   noSleep,
		},
		Notifier: notifier,
		From:     "watcher@example.com",
		To:       []string{"a@example.com"},
	})
	require.ErrorIs(t, err, dalonline.ErrFetch)
	require.Equal(t, CategoryTransient, Classify(err))
	require.Empty(t, notifier.messages)
}

func TestRunValidatesOptions(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Mode:     ModeBook,
		Notifier: &recordingNotifier{},
		From:     "watcher@example.com",
		To:       []string{"a@example.com"},
	})
	require.Error(t, err)

	_, err = Run(context.Background(), Options{
		Notifier: &recordingNotifier{},
		From:     "watcher@example.com",
	})
	require.Error(t, err)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeNotify, mode)

	mode, err = ParseMode("book")
	require.NoError(t, err)
	require.Equal(t, ModeBook, mode)

	_, err = ParseMode("1")
	require.Error(t, err)
}
