/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package repoconfig loads per-repository agent settings from
// .github/issuepilot.yml on the default branch. A missing or unreadable
// file yields the defaults; a present file overrides only the fields it
// sets.
package repoconfig
