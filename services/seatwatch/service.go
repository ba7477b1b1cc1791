package seatwatch

import (
	"context"
	"fmt"
	"log/slog"
	"seatwatch/lib/mailer"
	"seatwatch/lib/registrar"
	"seatwatch/lib/scrapers/dalonline"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Mode string

const (
	// only send the email
	ModeNotify Mode = "notify"
	// send the email, then submit the registration changes
	ModeBook Mode = "book"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNotify:
		return ModeNotify, nil
	case ModeBook:
		return ModeBook, nil
	}
	return "", fmt.Errorf("unknown mode %q, expected %q or %q", s, ModeNotify, ModeBook)
}

// Notifier is implemented by mailer.Mailer.
type Notifier interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type Options struct {
	Watch WatchOptions
	Mode  Mode

	Notifier    Notifier
	From        string
	To          []string
	Attachments []string

	// only used in ModeBook
	Launch       registrar.Launcher
	Registration registrar.Options
}

type Summary struct {
	RunId string
	Seats int
	// nil unless the registration was attempted
	Registration *registrar.Result
}

func Subject(q dalonline.CourseQuery) string {
	return "SEATS ARE AVAILABLE FOR " + q.Code()
}

func Body(seats int) string {
	return fmt.Sprintf("Seats Available: %d", seats)
}

func (o Options) validate() error {
	if o.Notifier == nil {
		return fmt.Errorf("no notifier given")
	}
	if o.From == "" || len(o.To) == 0 {
		return fmt.Errorf("email sender and at least one recipient are required")
	}
	if o.Mode == ModeBook && o.Launch == nil {
		return fmt.Errorf("mode %q requires a browser launcher", ModeBook)
	}
	return nil
}

// Run watches the course until seats open up, sends one email about it
// and in ModeBook then drives the registration portal.
func Run(ctx context.Context, opts Options) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	if opts.Mode == "" {
		opts.Mode = ModeNotify
	}
	err := opts.validate()
	if err != nil {
		span.SetStatus(codes.Error, "invalid options")
		return Summary{}, err
	}

	runId, err := random.String(8)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{RunId: runId}
	span.SetAttributes(
		attribute.String("run_id", runId),
		attribute.String("mode", string(opts.Mode)),
	)
	log := slog.With("run_id", runId, "course", opts.Watch.Query.Code())

	log.InfoContext(ctx, "watching course", "term", opts.Watch.Query.Term(), "mode", opts.Mode)
	seats, err := Watch(ctx, opts.Watch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "watch failed")
		return summary, err
	}
	summary.Seats = seats
	log.InfoContext(ctx, "seats available", "seats", seats)

	err = opts.Notifier.Send(ctx, mailer.Message{
		From:        opts.From,
		To:          opts.To,
		Subject:     Subject(opts.Watch.Query),
		Body:        Body(seats),
		Attachments: opts.Attachments,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send notification")
		return summary, err
	}
	log.InfoContext(ctx, "sent notification", "to", opts.To)

	if opts.Mode != ModeBook {
		return summary, nil
	}

	result, err := registrar.Register(ctx, opts.Launch, opts.Registration)
	summary.Registration = &result
	if err != nil {
		log.ErrorContext(ctx, "registration failed", "reached", result.Reached.String(), "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		return summary, err
	}
	log.InfoContext(ctx, "registration submitted", "dropped", result.Dropped, "added", result.Added)
	return summary, nil
}
