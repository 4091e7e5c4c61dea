package model

import (
	"errors"
	"fmt"
)

// Code classifies a fatal validation failure.
type Code string

const (
	CodeInvalidDimensions    Code = "InvalidDimensions"
	CodeInvalidGrain         Code = "InvalidGrain"
	CodeInvalidPrice         Code = "InvalidPrice"
	CodeDuplicateID          Code = "DuplicateID"
	CodeInvalidKerf          Code = "InvalidKerf"
	CodeStrategyNotSupported Code = "StrategyNotSupported"
)

// Error is a structured validation error naming the offending record and field.
type Error struct {
	Code    Code   `json:"code"`
	Record  string `json:"record,omitempty"` // e.g. "piece[3]" or "panel P-18"
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Record != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Record, e.Field, msg)
	case e.Record != "":
		return fmt.Sprintf("%s: %s", e.Record, msg)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, msg)
	}
	return msg
}

// Is matches any *Error with the same code, so callers can test against the
// sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidDimensions    = &Error{Code: CodeInvalidDimensions, Message: "invalid dimensions"}
	ErrInvalidGrain         = &Error{Code: CodeInvalidGrain, Message: "invalid grain direction"}
	ErrInvalidPrice         = &Error{Code: CodeInvalidPrice, Message: "invalid price"}
	ErrDuplicateID          = &Error{Code: CodeDuplicateID, Message: "duplicate id"}
	ErrInvalidKerf          = &Error{Code: CodeInvalidKerf, Message: "invalid kerf width"}
	ErrStrategyNotSupported = &Error{Code: CodeStrategyNotSupported, Message: "strategy not supported"}
)

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
