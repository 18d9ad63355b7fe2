package types

import "github.com/pkg/errors"

var (
	// ErrValidation marks bad input to alert creation
	ErrValidation = errors.New("validation failed")

	// ErrAlertNotFound is returned when an owner refers to an alert that is not among their active alerts
	ErrAlertNotFound = errors.New("alert not found")
)
