/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexec runs agent tasks in-process: it clones the repository,
// drives a Claude conversation with file tools over the working tree, pushes
// the resulting branch, opens a pull request, and reports staged progress
// through the task's callbacks.
//
// It is the single-binary alternative to sandboxexec; deployments that need
// isolation between tasks should prefer the sandbox.
package claudeexec
