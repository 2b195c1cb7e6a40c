package domain

import (
	"fmt"
	"strings"
)

// ValidationError malformed order intent. It names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order %s: %s", e.Field, e.Reason)
}

// ResolutionError target positions that could not be bound to a priced instrument.
type ResolutionError struct {
	Symbols []string
	Reason  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve positions [%s]: %s", strings.Join(e.Symbols, ", "), e.Reason)
}

// DivisionError total target weight is zero.
type DivisionError struct {
	What string
}

func (e *DivisionError) Error() string {
	return fmt.Sprintf("division by zero: %s", e.What)
}

// BrokerCallError failure of a single broker call.
type BrokerCallError struct {
	Op  string
	Err error
}

func (e *BrokerCallError) Error() string {
	return fmt.Sprintf("broker call %s failed: %v", e.Op, e.Err)
}

func (e *BrokerCallError) Unwrap() error {
	return e.Err
}
