package repository

import (
	"context"
	"errors"
	"fmt"
)

// Error kind labels used in reports, logs and metrics.
const (
	KindElementNotFound = "element_not_found"
	KindParse           = "parse_error"
	KindSession         = "session_error"
	KindBlocked         = "blocked"
	KindValidation      = "validation_error"
	KindDelivery        = "delivery_error"
	KindStore           = "store_error"
	KindPanic           = "panic"
	KindCanceled        = "canceled"
	KindUnknown         = "unknown"
)

// ElementNotFoundError indicates the locator never became visible in time.
type ElementNotFoundError struct {
	Locator string
	Err     error
}

func (e ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s: %v", e.Locator, e.Err)
}

func (e ElementNotFoundError) Unwrap() error {
	return e.Err
}

// ParseError indicates the element text is not a usable price.
type ParseError struct {
	Text string
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse price %q: %v", e.Text, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// SessionError indicates the browser session failed to start or navigate.
type SessionError struct {
	Op  string
	Err error
}

func (e SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e SessionError) Unwrap() error {
	return e.Err
}

// BlockedError indicates the page served a bot wall instead of the product.
type BlockedError struct {
	Reason string
	Err    error
}

func (e BlockedError) Error() string {
	return fmt.Sprintf("blocked (%s): %v", e.Reason, e.Err)
}

func (e BlockedError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a dataset row that cannot be checked at all.
type ValidationError struct {
	Field string
	Err   error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError indicates the notification transport failed.
type DeliveryError struct {
	Err error
}

func (e DeliveryError) Error() string {
	return fmt.Errorf("delivery: %w", e.Err).Error()
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}

// StoreError indicates the dataset could not be read or written.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered inside a task.
type PanicError struct {
	Value any
	Stack string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Kind classifies err into one of the Kind* labels.
func Kind(err error) string {
	if err == nil {
		return KindUnknown
	}
	var blocked BlockedError
	if errors.As(err, &blocked) {
		return KindBlocked
	}
	var notFound ElementNotFoundError
	if errors.As(err, &notFound) {
		return KindElementNotFound
	}
	var parse ParseError
	if errors.As(err, &parse) {
		return KindParse
	}
	var session SessionError
	if errors.As(err, &session) {
		return KindSession
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		return KindValidation
	}
	var delivery DeliveryError
	if errors.As(err, &delivery) {
		return KindDelivery
	}
	var store StoreError
	if errors.As(err, &store) {
		return KindStore
	}
	var p PanicError
	if errors.As(err, &p) {
		return KindPanic
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}
