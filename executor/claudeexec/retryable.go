/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
)

// isRetryableModelError reports whether a Claude API error is transient:
// rate limits, overload, and gateway timeouts.
func isRetryableModelError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
