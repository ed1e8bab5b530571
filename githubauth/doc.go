/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package githubauth mints installation-scoped GitHub clients and tokens
// from a GitHub App's private key.
package githubauth
