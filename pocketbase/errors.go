package pocketbase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// FieldError is one entry of the store's per-field validation payload.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is a failed store response. Status is the HTTP status code, Data the
// per-field validation errors the store attaches to 400 responses.
type Error struct {
	Status  int                   `json:"status"`
	Message string                `json:"message"`
	Data    map[string]FieldError `json:"data"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("store: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("store: status %d", e.Status)
}

// IsConflict reports whether the failure is a uniqueness-constraint
// violation. The store marks the offending field with a *_not_unique
// validation code; a bare 409 counts as well so the check does not depend on
// one exact code name.
func (e *Error) IsConflict() bool {
	if e.Status == 409 {
		return true
	}
	if e.Status != 400 {
		return false
	}
	for _, field := range e.Data {
		if strings.Contains(field.Code, "unique") {
			return true
		}
	}
	return false
}

// IsNotFound reports whether the request targeted a missing record.
func (e *Error) IsNotFound() bool {
	return e.Status == 404
}

// IsNotFound reports whether err is a store not-found error.
func IsNotFound(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.IsNotFound()
}

// IsConflict reports whether err is a store uniqueness conflict.
func IsConflict(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.IsConflict()
}

// apiError decodes an error response body into *Error. Bodies that fail to
// decode still yield an *Error carrying the status code.
func apiError(resp *resty.Response) error {
	storeErr := &Error{Status: resp.StatusCode()}
	var body struct {
		Message string                `json:"message"`
		Data    map[string]FieldError `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		storeErr.Message = body.Message
		storeErr.Data = body.Data
	}
	return storeErr
}
