// Package validation provides common validation utilities for configuration
// parameters across the prioflow packages.
//
// Every validator returns a *errors.ValidationError so callers can test for
// errors.ErrInvalidConfiguration with errors.Is.
package validation
