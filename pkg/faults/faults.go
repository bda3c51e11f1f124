// Package faults defines the error taxonomy shared by every silverline stage.
//
// Each kind is a sentinel error. Stages wrap it with context using the
// constructors below, and callers classify failures with errors.Is:
//
//	if errors.Is(err, faults.ErrOrderingViolation) {
//		// upstream data must be re-sorted and rerun
//	}
//
// Every fault aborts the whole run. Missing values caused by boundary
// conditions are not faults.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation reports a missing, extra or mistyped column, or a
	// table that does not match its contract.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrOrderingViolation reports timestamps that are not strictly
	// increasing, duplicate keys, or a broken bin cadence.
	ErrOrderingViolation = errors.New("ordering violation")

	// ErrConfiguration reports an invalid feature or resampling configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrDomainViolation reports a categorical value outside its label set.
	ErrDomainViolation = errors.New("domain violation")
)

// Schema returns an error wrapping ErrSchemaViolation.
func Schema(format string, args ...any) error {
	return wrap(ErrSchemaViolation, format, args...)
}

// Ordering returns an error wrapping ErrOrderingViolation.
func Ordering(format string, args ...any) error {
	return wrap(ErrOrderingViolation, format, args...)
}

// Configuration returns an error wrapping ErrConfiguration.
func Configuration(format string, args ...any) error {
	return wrap(ErrConfiguration, format, args...)
}

// Domain returns an error wrapping ErrDomainViolation.
func Domain(format string, args ...any) error {
	return wrap(ErrDomainViolation, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns a short label for the fault kind carried by err, suitable
// for metric labels. Errors outside the taxonomy are reported as "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchemaViolation):
		return "schema"
	case errors.Is(err, ErrOrderingViolation):
		return "ordering"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDomainViolation):
		return "domain"
	default:
		return "internal"
	}
}
