// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package apiclient

import (
	"errors"
	"fmt"
)

// StatusError is a non-2xx response from the collector. 4xx responses are
// permanent; retrying them cannot succeed.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector returned %d: %s", e.Code, e.Body)
}

// Permanent reports whether retrying is pointless.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

// ConnectionError is a transport-level failure; always worth a retry.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return "collector unreachable: " + e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// IsPermanent reports whether err is a submit failure that will not
// succeed on retry.
func IsPermanent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Permanent()
}

// IsRetryable reports whether err is worth retrying on a later tick.
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}
