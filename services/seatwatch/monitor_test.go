package seatwatch

import (
	"context"
	"errors"
	"fmt"
	"seatwatch/lib/scrapers/dalonline"
	"seatwatch/lib/testutil"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// schedulePage renders a timetable row whose seat cell holds `seats`.
func schedulePage(seats string) string {
	var out strings.Builder
	out.WriteString("<html><body><table><tr>")
	for i := 0; i < dalonline.SeatCellIndex; i++ {
		out.WriteString(`<td class="dettl"><p>x</p></td>`)
	}
	out.WriteString(fmt.Sprintf(`<td class="dettl"><p>%s</p></td>`, seats))
	out.WriteString("</tr></table></body></html>")
	return out.String()
}

type sequenceFetcher struct {
	pages []string
	calls int
	// returned instead of a page once calls reaches failAt, 0 never fails
	failAt int
	err    error
}

func (f *sequenceFetcher) FetchSchedule(ctx context.Context, q dalonline.CourseQuery) (*goquery.Document, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, f.err
	}
	page := f.pages[len(f.pages)-1]
	if f.calls <= len(f.pages) {
		page = f.pages[f.calls-1]
	}
	return goquery.NewDocumentFromReader(strings.NewReader(schedulePage(page)))
}

type recordingSleep struct {
	durations []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.durations = append(s.durations, d)
	return ctx.Err()
}

func testQuery(t testing.TB) dalonline.CourseQuery {
	q, err := dalonline.NewCourseQuery(dalonline.DefaultBaseUrl, "3136", "202010")
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestWatchStopsAtFirstNonzeroCount(t *testing.T) {
	testutil.SetupTelemetry(t)

	fetcher := &sequenceFetcher{pages: []string{"0", "0", "0", "3"}}
	sleep := &recordingSleep{}
	var reported []int

	seats, err := Watch(context.Background(), WatchOptions{
		Query:   testQuery(t),
		Fetcher: fetcher,
		Sleep:   sleep.sleep,
		Report: func(seats int) {
			reported = append(reported, seats)
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 3, seats)
	require.Equal(t, 4, fetcher.calls)
	require.Equal(t, []int{0, 0, 0, 3}, reported)
	// the wait comes before every fetch
	require.Equal(t, []time.Duration{
		DefaultInterval, DefaultInterval, DefaultInterval, DefaultInterval,
	}, sleep.durations)
}

func TestWatchTreatsOverEnrolledAsFull(t *testing.T) {
	testutil.SetupTelemetry(t)

	fetcher := &sequenceFetcher{pages: []string{"-2", "1"}}
	sleep := &recordingSleep{}

	seats, err := Watch(context.Background(), WatchOptions{
		Query:    testQuery(t),
		Fetcher:  fetcher,
		Interval: time.Second * 5,
		Sleep:    sleep.sleep,
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, seats)
	require.Equal(t, 2, fetcher.calls)
	require.Equal(t, time.Second*5, sleep.durations[0])
}

func TestWatchEndsOnFetchError(t *testing.T) {
	testutil.SetupTelemetry(t)

	fetchErr := fmt.Errorf("%w: connection reset", dalonline.ErrFetch)
	fetcher := &sequenceFetcher{pages: []string{"0"}, failAt: 2, err: fetchErr}
	sleep := &recordingSleep{}

	_, err := Watch(context.Background(), WatchOptions{
		Query:   testQuery(t),
		Fetcher: fetcher,
		Sleep:   sleep.sleep,
	})
	require.ErrorIs(t, err, dalonline.ErrFetch)
	require.Equal(t, 2, fetcher.calls)
	require.Len(t, sleep.durations, 2)
}

func TestWatchEndsOnSchemaMismatch(t *testing.T) {
	testutil.SetupTelemetry(t)

	fetcher := &sequenceFetcher{pages: []string{"0", "Full"}}
	sleep := &recordingSleep{}

	_, err := Watch(context.Background(), WatchOptions{
		Query:   testQuery(t),
		Fetcher: fetcher,
		Sleep:   sleep.sleep,
	})
	require.ErrorIs(t, err, dalonline.ErrSchemaMismatch)
	require.Equal(t, 2, fetcher.calls)
}

func TestWatchCancelledDuringSleep(t *testing.T) {
	testutil.SetupTelemetry(t)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &sequenceFetcher{pages: []string{"0"}}

	go func() {
		time.Sleep(time.Millisecond * 20)
		cancel()
	}()

	start := time.Now()
	_, err := Watch(ctx, WatchOptions{
		Query:    testQuery(t),
		Fetcher:  fetcher,
		Interval: time.Hour,
	})
	require.True(t, errors.Is(err, context.Canceled))
	require.Less(t, time.Since(start), time.Minute)
	require.Equal(t, 0, fetcher.calls)
}

func TestWatchRequiresFetcher(t *testing.T) {
	_, err := Watch(context.Background(), WatchOptions{Query: testQuery(t)})
	require.Error(t, err)
}
