package seatwatch

import (
	"context"
	"errors"
	"seatwatch/lib/mailer"
	"seatwatch/lib/registrar"
	"seatwatch/lib/scrapers/dalonline"
)

// Category groups failures by what the user should do about them.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryTransient
	CategorySchema
	CategoryLocator
	CategoryAuth
	CategoryCancelled
)

func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategorySchema:
		return "schema"
	case CategoryLocator:
		return "locator"
	case CategoryAuth:
		return "auth"
	case CategoryCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Advice is the one line shown to the user when a run fails.
func (c Category) Advice() string {
	switch c {
	case CategoryTransient:
		return "Could not reach the server, check your network connection and try again later."
	case CategorySchema:
		return "The timetable page layout changed, the seat extractor needs to be updated."
	case CategoryLocator:
		return "The registration portal markup changed or the login failed, check the portal manually before running again."
	case CategoryAuth:
		return "The SMTP server rejected the login, check the email username and password."
	case CategoryCancelled:
		return "Stopped before seats were found."
	}
	return "Unexpected error, see the log above."
}

// Classify maps an error returned by this module to its category.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, context.Canceled):
		return CategoryCancelled
	case errors.Is(err, dalonline.ErrSchemaMismatch):
		return CategorySchema
	case errors.Is(err, registrar.ErrLocator):
		return CategoryLocator
	case errors.Is(err, mailer.ErrAuth):
		return CategoryAuth
	case errors.Is(err, dalonline.ErrFetch),
		errors.Is(err, mailer.ErrConnect),
		errors.Is(err, registrar.ErrNavigate):
		return CategoryTransient
	}
	return CategoryUnknown
}
