/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package commentmanager renders agent status into GitHub comment markdown
// and writes it through the issues API. Rendering is pure and deterministic;
// all I/O lives behind the Gateway interface.
package commentmanager
