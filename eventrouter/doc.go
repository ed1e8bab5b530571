/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package eventrouter decides which webhook events start an agent run and
// performs the trigger hand-off: admit the execution context, post the
// acknowledgment comment, and launch the executor. The decision itself is a
// pure function; everything stateful lives in the Router.
package eventrouter
