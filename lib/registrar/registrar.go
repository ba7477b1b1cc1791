package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"seatwatch/lib/telemetry"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("seatwatch.lib.registrar")

var (
	// ErrLaunch means no browser session could be started.
	ErrLaunch = errors.New("failed to start browser session")
	// ErrNavigate means a portal page could not be loaded.
	ErrNavigate = errors.New("failed to load registration portal page")
	// ErrLocator means an element of the portal could not be found or used,
	// either the markup changed or the login did not go through.
	ErrLocator = errors.New("registration portal element not found")
)

// Driver is a single browser tab. Selectors are playwright selectors.
type Driver interface {
	Goto(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	SelectValue(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// Launcher opens a new browser session, the caller owns it and must
// Close it.
type Launcher func(ctx context.Context) (Driver, error)

const (
	DefaultHomeUrl   = "https://dalonline.dal.ca"
	DefaultTermUrl   = "https://dalonline.dal.ca/PROD/bwskfreg.P_AltPin"
	DefaultDropValue = "DW"
)

type Portal struct {
	HomeUrl string `json:"home_url"`
	TermUrl string `json:"term_url"`
	// value of the "drop-web" option in each row's action dropdown
	DropValue string `json:"drop_value"`
}

func DefaultPortal() Portal {
	return Portal{
		HomeUrl:   DefaultHomeUrl,
		TermUrl:   DefaultTermUrl,
		DropValue: DefaultDropValue,
	}
}

// Credentials are only kept in memory for the duration of a run.
type Credentials struct {
	NetID    string
	Password string
}

// Intent lists the changes to submit. CRNs[i] goes into the add field at
// position i+1, DropRows are 1-based rows of the current schedule table.
// Both must line up with the page as it is at submission time.
type Intent struct {
	Add      bool
	Drop     bool
	CRNs     []string
	DropRows []int
}

// ErrNothingToDo is returned for an Intent asking for neither adds nor drops.
var ErrNothingToDo = errors.New("neither add nor drop was requested")

func (i Intent) validate() error {
	if !i.Add && !i.Drop {
		return ErrNothingToDo
	}
	if i.Add {
		if len(i.CRNs) == 0 {
			return fmt.Errorf("add requested without any crns")
		}
		for _, crn := range i.CRNs {
			if strings.TrimSpace(crn) == "" {
				return fmt.Errorf("empty crn in %v", i.CRNs)
			}
		}
	}
	if i.Drop {
		if len(i.DropRows) == 0 {
			return fmt.Errorf("drop requested without any rows")
		}
		for _, row := range i.DropRows {
			if row < 1 {
				return fmt.Errorf("drop row %d is not a 1-based row index", row)
			}
		}
	}
	return nil
}

type Options struct {
	Portal      Portal
	Locators    Locators
	Term        string
	Credentials Credentials
	Intent      Intent
}

// Validate checks everything Register needs before a browser is
// started, so a bad configuration can be reported up front.
func (o Options) Validate() error {
	if o.Term == "" {
		return fmt.Errorf("no term to register in")
	}
	if o.Credentials.NetID == "" || o.Credentials.Password == "" {
		return fmt.Errorf("netid and password are required")
	}
	err := o.Locators.Validate()
	if err != nil {
		return err
	}
	return o.Intent.validate()
}

type State int

const (
	Unauthenticated State = iota
	TermSelected
	DropSubmitted
	AddSubmitted
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case TermSelected:
		return "term_selected"
	case DropSubmitted:
		return "drop_submitted"
	case AddSubmitted:
		return "add_submitted"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result describes how far a run got. Reached is the last state before
// the session was closed, a failed run tells how much was already
// submitted and therefore must not be replayed.
type Result struct {
	Reached State
	Dropped int
	Added   int
}

type session struct {
	driver Driver
	opts   Options
	result Result
}

func (s *session) transition(ctx context.Context, to State) {
	slog.InfoContext(ctx, "registration state", "from", s.result.Reached.String(), "to", to.String())
	s.result.Reached = to
}

func (s *session) navigate(ctx context.Context, url string) error {
	err := s.driver.Goto(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigate, url, err)
	}
	return nil
}

func (s *session) locatorErr(role Role, selector string, err error) error {
	return fmt.Errorf("%w: %s (%s): %w", ErrLocator, role, selector, err)
}

func (s *session) fill(ctx context.Context, role Role, selector, value string) error {
	err := s.driver.Fill(ctx, selector, value)
	if err != nil {
		return s.locatorErr(role, selector, err)
	}
	return nil
}

func (s *session) selectValue(ctx context.Context, role Role, selector, value string) error {
	err := s.driver.SelectValue(ctx, selector, value)
	if err != nil {
		return s.locatorErr(role, selector, err)
	}
	return nil
}

func (s *session) click(ctx context.Context, role Role, selector string) error {
	err := s.driver.Click(ctx, selector)
	if err != nil {
		return s.locatorErr(role, selector, err)
	}
	return nil
}

func (s *session) login(ctx context.Context) error {
	l := s.opts.Locators
	err := s.navigate(ctx, s.opts.Portal.HomeUrl)
	if err != nil {
		return err
	}
	err = s.fill(ctx, RoleLoginUsername, l.Selector(RoleLoginUsername), s.opts.Credentials.NetID)
	if err != nil {
		return err
	}
	err = s.fill(ctx, RoleLoginPassword, l.Selector(RoleLoginPassword), s.opts.Credentials.Password)
	if err != nil {
		return err
	}
	return s.click(ctx, RoleLoginSubmit, l.Selector(RoleLoginSubmit))
}

func (s *session) selectTerm(ctx context.Context) error {
	l := s.opts.Locators
	err := s.navigate(ctx, s.opts.Portal.TermUrl)
	if err != nil {
		return err
	}
	err = s.selectValue(ctx, RoleTermSelect, l.Selector(RoleTermSelect), s.opts.Term)
	if err != nil {
		return err
	}
	err = s.click(ctx, RoleTermSubmit, l.Selector(RoleTermSubmit))
	if err != nil {
		return err
	}
	s.transition(ctx, TermSelected)
	return nil
}

func (s *session) drop(ctx context.Context) error {
	l := s.opts.Locators
	for _, row := range s.opts.Intent.DropRows {
		err := s.selectValue(ctx, RoleDropRowSelect, l.Indexed(RoleDropRowSelect, row), s.opts.Portal.DropValue)
		if err != nil {
			return err
		}
	}
	err := s.click(ctx, RoleRegistrationSubmit, l.Selector(RoleRegistrationSubmit))
	if err != nil {
		return err
	}
	s.result.Dropped = len(s.opts.Intent.DropRows)
	s.transition(ctx, DropSubmitted)
	return nil
}

func (s *session) add(ctx context.Context) error {
	l := s.opts.Locators
	for i, crn := range s.opts.Intent.CRNs {
		err := s.fill(ctx, RoleAddCrnField, l.Indexed(RoleAddCrnField, i+1), strings.TrimSpace(crn))
		if err != nil {
			return err
		}
	}
	err := s.click(ctx, RoleRegistrationSubmit, l.Selector(RoleRegistrationSubmit))
	if err != nil {
		return err
	}
	s.result.Added = len(s.opts.Intent.CRNs)
	s.transition(ctx, AddSubmitted)
	return nil
}

// Register logs into the portal, selects the term and submits the drops
// and then the adds described by opts.Intent, each as one submission.
//
// The first failure aborts the run, nothing is retried since earlier
// submissions may already have gone through. The browser session is
// closed on every path.
func Register(ctx context.Context, launch Launcher, opts Options) (result Result, err error) {
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	span.SetAttributes(
		attribute.String("term", opts.Term),
		attribute.Bool("add", opts.Intent.Add),
		attribute.Bool("drop", opts.Intent.Drop),
	)

	err = opts.Validate()
	if err != nil {
		span.SetStatus(codes.Error, "invalid options")
		return Result{}, err
	}

	driver, err := launch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return Result{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	s := &session{driver: driver, opts: opts}
	defer func() {
		closeErr := driver.Close()
		if closeErr != nil {
			slog.WarnContext(ctx, "failed to close browser session", "err", closeErr)
			err = errors.Join(err, fmt.Errorf("close browser session: %w", closeErr))
		}
		result = s.result
		slog.InfoContext(ctx, "registration state", "from", s.result.Reached.String(), "to", Closed.String())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "registration failed")
		}
	}()

	err = s.login(ctx)
	if err != nil {
		return s.result, err
	}
	err = s.selectTerm(ctx)
	if err != nil {
		return s.result, err
	}
	if opts.Intent.Drop {
		err = s.drop(ctx)
		if err != nil {
			return s.result, err
		}
	}
	if opts.Intent.Add {
		err = s.add(ctx)
		if err != nil {
			return s.result, err
		}
	}

	return s.result, nil
}
