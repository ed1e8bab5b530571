/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package commentmanager

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/issuepilot-dev/issuepilot/executor"
)

// footer closes every comment the agent writes so readers can tell bot
// comments from human ones at a glance.
const footer = "🤖 Automated by [Issuepilot](https://github.com/issuepilot-dev/issuepilot)"

const barSegments = 20

// stageBadges maps each stage to the icon and label shown in the comment
// heading.
var stageBadges = map[executor.Stage]struct {
	icon  string
	label string
}{
	executor.StageQueued:       {"⏳", "Queued"},
	executor.StageAnalyzing:    {"🔍", "Analyzing"},
	executor.StagePlanning:     {"📋", "Planning"},
	executor.StageImplementing: {"🛠️", "Implementing"},
	executor.StageTesting:      {"🧪", "Testing"},
	executor.StageFinalizing:   {"📦", "Finalizing"},
	executor.StageCompleted:    {"✅", "Completed"},
	executor.StageFailed:       {"❌", "Failed"},
}

// Details carries the optional structured progress shown under the status
// line. Zero TotalFiles suppresses the file counter and progress bar.
type Details struct {
	PercentComplete int
	FilesProcessed  int
	TotalFiles      int
	UpdatedAt       time.Time
}

// ParseDetails folds a progress event's loose metadata into Details.
// Unparseable counts are treated as absent rather than failing the update.
func ParseDetails(percent int, metadata map[string]string, updatedAt time.Time) Details {
	d := Details{PercentComplete: percent, UpdatedAt: updatedAt}
	if v, err := strconv.Atoi(metadata["files_processed"]); err == nil && v >= 0 {
		d.FilesProcessed = v
	}
	if v, err := strconv.Atoi(metadata["total_files"]); err == nil && v >= 0 {
		d.TotalFiles = v
	}
	return d
}

// Render produces the progress comment body for a stage and message. It is
// pure: identical inputs always produce identical markdown.
func Render(stage executor.Stage, message string, d Details) string {
	badge, ok := stageBadges[stage]
	if !ok {
		badge = stageBadges[executor.StageQueued]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s %s\n\n", badge.icon, badge.label)
	if message != "" {
		fmt.Fprintf(&b, "%s\n\n", message)
	}
	if d.TotalFiles > 0 {
		fmt.Fprintf(&b, "`%s` %d%%\n\n", progressBar(d.FilesProcessed, d.TotalFiles), d.PercentComplete)
		fmt.Fprintf(&b, "**Files:** %d/%d\n\n", d.FilesProcessed, d.TotalFiles)
	} else if d.PercentComplete > 0 {
		fmt.Fprintf(&b, "**Progress:** %d%%\n\n", d.PercentComplete)
	}
	if !d.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "_Last updated: %s_\n\n", d.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	b.WriteString("---\n")
	b.WriteString(footer)
	b.WriteString("\n")
	return b.String()
}

// progressBar fills floor(processed/total*barSegments) of barSegments cells.
func progressBar(processed, total int) string {
	filled := processed * barSegments / total
	if filled < 0 {
		filled = 0
	}
	if filled > barSegments {
		filled = barSegments
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barSegments-filled)
}

// Outcome is the terminal result rendered into the final comment.
type Outcome struct {
	Success        bool
	Summary        string
	PullRequestURL string
	FilesModified  []string
	Error          string
	Elapsed        time.Duration
}

// RenderFinal produces the terminal comment body. Success lists the pull
// request and modified files; failure fences the error detail so the raw
// text cannot break the surrounding markdown.
func RenderFinal(o Outcome) string {
	var b strings.Builder
	if o.Success {
		b.WriteString("## ✅ Completed\n\n")
	} else {
		b.WriteString("## ❌ Failed\n\n")
	}
	if o.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", o.Summary)
	}
	if o.Success {
		if o.PullRequestURL != "" {
			fmt.Fprintf(&b, "**Pull request:** %s\n\n", o.PullRequestURL)
		}
		if len(o.FilesModified) > 0 {
			b.WriteString("**Files modified:**\n")
			for _, f := range o.FilesModified {
				fmt.Fprintf(&b, "- `%s`\n", f)
			}
			b.WriteString("\n")
		}
	} else if o.Error != "" {
		b.WriteString("<details>\n<summary>Error detail</summary>\n\n```\n")
		b.WriteString(strings.TrimRight(o.Error, "\n"))
		b.WriteString("\n```\n</details>\n\n")
	}
	if o.Elapsed > 0 {
		fmt.Fprintf(&b, "_Elapsed: %s_\n\n", o.Elapsed.Round(time.Second))
	}
	b.WriteString("---\n")
	b.WriteString(footer)
	b.WriteString("\n")
	return b.String()
}
