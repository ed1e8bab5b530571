/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package credstore holds per-installation secrets: webhook secrets and
// Anthropic API keys. Values rest encrypted with age (X25519) on disk and
// stay plaintext only in memory. Nothing in this package ever logs a
// credential value.
package credstore
