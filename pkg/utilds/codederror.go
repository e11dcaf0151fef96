// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"errors"
	"fmt"
)

// CodedError tags an error with a category code that survives wrapping
type CodedError struct {
	Code string
	Err  error
}

func (e CodedError) Error() string {
	return e.Err.Error()
}

func (e CodedError) Unwrap() error {
	return e.Err
}

func MakeCodedError(code string, err error) CodedError {
	return CodedError{Code: code, Err: err}
}

// GetErrorCode returns the code of the first CodedError in the chain, or ""
func GetErrorCode(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

func Errorf(code string, format string, args ...any) error {
	return MakeCodedError(code, fmt.Errorf(format, args...))
}
