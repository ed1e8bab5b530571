/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package coordinator tracks execution contexts: one per active agent run,
// owning exactly one progress comment. It folds executor progress and
// completion reports into per-context state, reflects them onto GitHub, and
// sweeps contexts that stop reporting. The one-active-context-per-entity
// invariant lives in the Store.
//
// The sweep timeout is a stall detector, measured from the last report
// (LastUpdatedAt), not from admission: a run that keeps reporting is never
// timed out here. The absolute run deadline is the executor's job, via
// Task.MaxDuration; both are configured from the same setting.
package coordinator
