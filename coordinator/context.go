/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package coordinator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/issuepilot-dev/issuepilot/executor"
)

// Key is the entity an execution context is bound to. At most one active
// context exists per key.
type Key struct {
	Owner  string
	Repo   string
	Number int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s#%d", k.Owner, k.Repo, k.Number)
}

// Context is one active agent run. It is a value snapshot: the Store owns
// the canonical copy, and callers mutate through Store.Update.
type Context struct {
	ID string

	Key            Key
	FullName       string
	IsPullRequest  bool
	InstallationID int64

	// CommentID is the progress comment this context owns and updates
	// exclusively.
	CommentID int64

	// CallbackToken authenticates executor callbacks for this context.
	// Never logged.
	CallbackToken string

	Stage   executor.Stage
	Percent int
	Message string

	StartedAt     time.Time
	LastUpdatedAt time.Time
}

// NewContextID derives a context id from the entity and creation time, so
// repeated triggers on the same issue never collide.
func NewContextID(fullName string, number int, createdAt time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", fullName, number, createdAt.UnixNano()))
	return "ctx-" + hex.EncodeToString(sum[:8])
}

var contextIDPattern = regexp.MustCompile(`^ctx-[0-9a-f]{16}$`)

// ValidContextID reports whether id is syntactically a context id. Callback
// endpoints reject malformed ids outright but accept well-formed unknown
// ones.
func ValidContextID(id string) bool {
	return contextIDPattern.MatchString(id)
}
