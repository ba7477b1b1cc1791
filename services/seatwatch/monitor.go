package seatwatch

import (
	"context"
	"fmt"
	"log/slog"
	"seatwatch/lib/scrapers/dalonline"
	"seatwatch/lib/telemetry"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = telemetry.Tracer("seatwatch.services.seatwatch")

var meter = telemetry.Meter("seatwatch.services.seatwatch")
var seatCountGauge, _ = meter.Int64Gauge(
	"seat_count",
	metric.WithDescription("seats remaining in the watched course at the last poll"),
)

const DefaultInterval = time.Minute

// Fetcher is implemented by *dalonline.Client.
type Fetcher interface {
	FetchSchedule(ctx context.Context, q dalonline.CourseQuery) (*goquery.Document, error)
}

// Extractor is implemented by dalonline.SeatExtractor.
type Extractor interface {
	Extract(doc *goquery.Document) (int, error)
}

type WatchOptions struct {
	Query   dalonline.CourseQuery
	Fetcher Fetcher
	// defaults to dalonline.NewSeatExtractor(nil)
	Extractor Extractor
	// time waited before every poll, defaults to DefaultInterval
	Interval time.Duration
	// called with the count of every poll, including zeroes
	Report func(seats int)
	// defaults to a timer that stops early when ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func poll(ctx context.Context, opts WatchOptions) (int, error) {
	ctx, span := tracer.Start(ctx, "poll")
	defer span.End()

	doc, err := opts.Fetcher.FetchSchedule(ctx, opts.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch timetable")
		return 0, err
	}
	seats, err := opts.Extractor.Extract(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract seats")
		return 0, err
	}
	span.SetAttributes(attribute.Int("seats", seats))
	return seats, nil
}

// Watch waits opts.Interval, polls the timetable and repeats until the
// course reports a nonzero seat count, which it returns.
//
// Every error ends the watch, it is up to the caller to start over.
// When ctx is cancelled the error is ctx.Err().
func Watch(ctx context.Context, opts WatchOptions) (int, error) {
	ctx, span := tracer.Start(ctx, "Watch")
	defer span.End()

	if opts.Fetcher == nil {
		return 0, fmt.Errorf("no fetcher given")
	}
	if opts.Extractor == nil {
		opts.Extractor = dalonline.NewSeatExtractor(nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	span.SetAttributes(
		attribute.String("course", opts.Query.Code()),
		attribute.String("term", opts.Query.Term()),
		attribute.String("interval", opts.Interval.String()),
	)
	courseAttr := metric.WithAttributes(attribute.String("course", opts.Query.Code()))

	for cycle := 1; ; cycle++ {
		err := opts.Sleep(ctx, opts.Interval)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "watch interrupted")
			return 0, err
		}

		seats, err := poll(ctx, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "poll failed")
			return 0, err
		}

		seatCountGauge.Record(ctx, int64(seats), courseAttr)
		slog.DebugContext(ctx, "polled timetable", "course", opts.Query.Code(), "cycle", cycle, "seats", seats)
		if opts.Report != nil {
			opts.Report(seats)
		}

		if seats != 0 {
			span.SetAttributes(attribute.Int("cycles", cycle))
			return seats, nil
		}
	}
}
