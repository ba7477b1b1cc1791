package dalonline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"seatwatch/lib/restyutil"
	"time"
	"unicode"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ErrFetch marks failures to retrieve a page: network errors, timeouts
// and non-2xx responses. They say nothing about the page layout.
var ErrFetch = errors.New("failed to fetch timetable page")

type Client struct {
	http *resty.Client
}

type ClientOptions struct {
	// defaults to 30 seconds
	Timeout time.Duration
	// optional, receives a copy of every http exchange
	Output restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(opts.Timeout)
	restyutil.InstrumentClient(client, tracer, opts.Output)

	return &Client{http: client}
}

var dropNonASCII = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
}))

// ParseASCII parses html after dropping every byte outside of ASCII,
// invalid utf-8 included.
func ParseASCII(body []byte) (*goquery.Document, error) {
	reader := transform.NewReader(bytes.NewReader(body), dropNonASCII)
	return goquery.NewDocumentFromReader(reader)
}

// FetchSchedule downloads and parses the timetable page for `q`.
func (c *Client) FetchSchedule(ctx context.Context, q CourseQuery) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "FetchSchedule")
	defer span.End()

	span.SetAttributes(
		attribute.String("course", q.Code()),
		attribute.String("term", q.Term()),
	)

	res, err := c.http.R().
		SetContext(ctx).
		Get(q.URL())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make request")
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, q.URL(), res.Status())
	}

	doc, err := ParseASCII(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}
	return doc, nil
}
