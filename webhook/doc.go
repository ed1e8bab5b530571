/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package webhook implements the inbound GitHub webhook surface: HMAC
// signature verification over the raw request body, classification of the
// delivery into a typed event, and the HTTP handler that ties them together
// and hands accepted events to the execution router.
//
// Verification fails closed: any irregularity in the signature header, the
// secret lookup, or the digest comparison yields a 401 with no further
// processing. Classification never panics on malformed payloads; missing
// fields surface as a ClassificationError naming the field.
package webhook
