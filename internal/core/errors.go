package core

import "errors"

// ErrValidation indicates malformed or missing request fields, or a reference
// to an unknown account, category, or budget.
var ErrValidation = errors.New("validation error")

// ErrNotFound indicates an unknown transaction or subscription id.
var ErrNotFound = errors.New("not found")

// ErrInvalidConversion indicates a conversion of a subscription-linked group
// or a conversion to the type the group already has.
var ErrInvalidConversion = errors.New("invalid conversion")

// ErrConstraintViolation indicates a mutation that would orphan existing
// rows, such as deleting a subscription with committed transactions.
var ErrConstraintViolation = errors.New("constraint violation")

// ErrState indicates a budget month that should have an allocation row but
// has none. Rollover was never run for that period; running it is a caller
// precondition, never auto-healed here.
var ErrState = errors.New("inconsistent ledger state")
