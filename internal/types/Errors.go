/*

This file contains the error taxonomy of the analytics core.

Failures only originate where data is fetched from the pool. They are reported
per unit of work (per position, per referral node) and never abort siblings.

*/

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means a fetch returned nothing resolvable.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrFetchFailure is a transient failure of an external collaborator.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrInconsistentEligibility marks a tier whose local breakdown contradicts the pool's flag.
	ErrInconsistentEligibility = errors.New("inconsistent eligibility")

	ErrInvalidIdentity  = errors.New("invalid identity")
	ErrInvalidTierTable = errors.New("invalid eligibility tier table")
)

// FetchError wraps a collaborator failure with what was being fetched.
type FetchError struct {
	Op      string // e.g. "referral_children"
	Subject string // identity or position id
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Op, e.Subject, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailure, e.Err}
}

// NewFetchError builds a FetchError.
func NewFetchError(op, subject string, err error) *FetchError {
	return &FetchError{Op: op, Subject: subject, Err: err}
}

// EligibilityAnomaly is reported when the pool says a tier is eligible while both
// local checks fail, or says it is not eligible while both local checks pass.
type EligibilityAnomaly struct {
	Level        int  `json:"level"`
	IsEligible   bool `json:"is_eligible"`
	MeetsDirects bool `json:"meets_directs"`
	MeetsValue   bool `json:"meets_value"`
}

func (a *EligibilityAnomaly) Error() string {
	return fmt.Sprintf("tier %d: pool reports eligible=%t but directs=%t value=%t",
		a.Level, a.IsEligible, a.MeetsDirects, a.MeetsValue)
}

func (a *EligibilityAnomaly) Unwrap() error {
	return ErrInconsistentEligibility
}
