/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is the scheme GitHub prepends to the hex digest in the
// X-Hub-Signature-256 header.
const signaturePrefix = "sha256="

// VerifySignature checks the X-Hub-Signature-256 header against the
// HMAC-SHA256 of the raw, unparsed request body. It fails closed: a missing
// prefix, a malformed digest, an empty secret, or a mismatch all return
// false. The comparison is constant time.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil || len(want) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// SignBody computes the signature header value for the given body and
// secret. Used by tests and by tools that replay deliveries.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
