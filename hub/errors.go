// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"errors"
	"fmt"
)

// Error is the only error shape a failed hub operation surfaces. It
// carries the operation name and HTTP status code, nothing else: the
// hub's error bodies can embed request echoes, tokens, and
// authorization material, so the body is discarded before the error
// becomes visible to any caller or log sink.
//
// Callers needing the status use errors.As:
//
//	var hubErr *hub.Error
//	if errors.As(err, &hubErr) && hubErr.StatusCode == http.StatusTooManyRequests { ... }
type Error struct {
	// Operation is the logical name of the failed call, e.g.
	// "sessionSignals" or "markNotificationRead".
	Operation string
	// StatusCode is the HTTP status code of the response.
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed with status %d.", e.Operation, e.StatusCode)
}

// IsStatus checks whether err is a *Error with the given status code.
func IsStatus(err error, statusCode int) bool {
	var hubErr *Error
	if errors.As(err, &hubErr) {
		return hubErr.StatusCode == statusCode
	}
	return false
}
