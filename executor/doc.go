/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package executor defines the contract between the coordinator and the
// isolated execution units that run the coding agent. A Task is the complete,
// self-contained description of one unit of agent work; an Executor launches
// it fire-and-forget; a Reporter is the channel an execution unit uses to
// send progress and completion back to the coordinator.
//
// Two implementations ship with the daemon: sandboxexec hands the task to a
// remote sandbox over HTTP, and claudeexec runs the agent in-process against
// the Anthropic API (intended for development and single-node deployments).
package executor
