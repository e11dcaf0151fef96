// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package panichandler

import (
	"fmt"
	"log"
	"runtime/debug"
)

// PanicHandler logs a recovered panic and converts it into an error.
// safe to call with a nil recover() value:
//
//	defer func() {
//	    panichandler.PanicHandler("update task", recover())
//	}()
func PanicHandler(debugStr string, recoverVal any) error {
	if recoverVal == nil {
		return nil
	}
	log.Printf("[panic] in %s: %v\n", debugStr, recoverVal)
	debug.PrintStack()
	if err, ok := recoverVal.(error); ok {
		return fmt.Errorf("panic in %s: %w", debugStr, err)
	}
	return fmt.Errorf("panic in %s: %v", debugStr, recoverVal)
}

// SafeRun runs fn, returning its panic (if any) as an error
func SafeRun(debugStr string, fn func()) (rtnErr error) {
	defer func() {
		rtnErr = PanicHandler(debugStr, recover())
	}()
	fn()
	return nil
}
