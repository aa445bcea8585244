package cronlite

import (
	"errors"

	"cronlite/internal/cronexpr"
)

var (
	// ErrConfig wraps every registration failure caused by a bad expression or body.
	ErrConfig = cronexpr.ErrConfig
	// ErrAlreadyRunning is returned by Start while a previous run has not finished.
	ErrAlreadyRunning = errors.New("cronlite: already running")
	// ErrUnknownTimeZone is returned by SetTimeZone for names the system cannot resolve.
	ErrUnknownTimeZone = errors.New("cronlite: unknown time zone")
)
