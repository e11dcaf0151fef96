// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logutil

import (
	"log"
	"sync/atomic"
)

var debugEnabled atomic.Bool

func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func IsDebug() bool {
	return debugEnabled.Load()
}

// DevPrintf logs using log.Printf only when debug logging is on
func DevPrintf(format string, v ...any) {
	if debugEnabled.Load() {
		log.Printf(format, v...)
	}
}
