/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"

	"github.com/issuepilot-dev/issuepilot/executor"
	"github.com/issuepilot-dev/issuepilot/executor/retry"
)

const systemPrompt = `You are Issuepilot, a software engineering agent working on a GitHub repository.
You are given an issue or pull request and a checkout of the repository.
Investigate with list_files and read_file, make the smallest change that
resolves the request with write_file, and call finish exactly once with a
short summary of what you did. If no change is needed, call finish and say
why.`

// maxFileListing caps how many paths the opening prompt includes.
const maxFileListing = 200

// toolNames in the order they are offered to the model.
var toolNames = []string{"list_files", "read_file", "write_file", "finish"}

type readFileArgs struct {
	Path string `json:"path"`
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type finishArgs struct {
	Summary string `json:"summary"`
}

// converse drives the agent conversation until the model calls finish, the
// turn cap is reached, or ctx expires. It returns the model's summary.
func (r *Runner) converse(ctx context.Context, task *executor.Task, ws *workspace, reporter executor.Reporter) (string, error) {
	log := clog.FromContext(ctx)
	client := anthropic.NewClient(option.WithAPIKey(task.AnthropicAPIKey))

	prompt, err := buildPrompt(task, ws)
	if err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Tools:     toolDefs(task.AllowedTools, task.DeniedTools),
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
	}

	var summary string
	filesWritten := 0

	for turn := 0; turn < r.maxTurns; turn++ {
		message, err := retry.Do(ctx, r.retryCfg, "stream_message", isRetryableModelError, func() (anthropic.Message, error) {
			stream := client.Messages.NewStreaming(ctx, params)
			var msg anthropic.Message
			for stream.Next() {
				if err := msg.Accumulate(stream.Current()); err != nil {
					return msg, fmt.Errorf("accumulating event: %w", err)
				}
			}
			if err := stream.Err(); err != nil {
				return msg, err
			}
			return msg, nil
		})
		if err != nil {
			return "", fmt.Errorf("streaming model response: %w", err)
		}

		if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
			r.genai.recordTokens(ctx, r.model, task.FullName, message.Usage.InputTokens, message.Usage.OutputTokens)
		}

		var toolUses []anthropic.ToolUseBlock
		var text string
		for _, content := range message.Content {
			switch content.Type {
			case "text":
				text = content.Text
			case "tool_use":
				toolUses = append(toolUses, anthropic.ToolUseBlock{
					ID:    content.ID,
					Name:  content.Name,
					Input: content.Input,
				})
			}
		}

		if len(toolUses) == 0 {
			// The model stopped calling tools; treat its text as the summary.
			if text == "" {
				return "", fmt.Errorf("model returned no content")
			}
			return text, nil
		}

		params.Messages = append(params.Messages, message.ToParam())

		var results []anthropic.ContentBlockParamUnion
		done := false
		for _, toolUse := range toolUses {
			r.genai.recordToolCall(ctx, r.model, task.FullName, toolUse.Name)
			log.With("tool", toolUse.Name).Info("Executing tool call")

			result, finished := r.executeTool(ctx, task, ws, reporter, toolUse, &summary, &filesWritten)
			results = append(results, result)
			done = done || finished
		}
		if done {
			return summary, nil
		}

		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: results,
		})
	}

	return "", fmt.Errorf("conversation exceeded %d turns", r.maxTurns)
}

// executeTool runs one tool call and returns its result block. finished is
// true once the model has called finish.
func (r *Runner) executeTool(ctx context.Context, task *executor.Task, ws *workspace, reporter executor.Reporter, toolUse anthropic.ToolUseBlock, summary *string, filesWritten *int) (anthropic.ContentBlockParamUnion, bool) {
	var out string
	var finished bool

	switch toolUse.Name {
	case "list_files":
		files, err := ws.listFiles()
		if err != nil {
			out = "error: " + err.Error()
		} else {
			out = strings.Join(files, "\n")
		}

	case "read_file":
		var args readFileArgs
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			out = "error: " + err.Error()
			break
		}
		content, err := ws.readFile(args.Path)
		if err != nil {
			out = "error: " + err.Error()
		} else {
			out = content
		}

	case "write_file":
		var args writeFileArgs
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			out = "error: " + err.Error()
			break
		}
		if err := ws.writeFile(args.Path, args.Content); err != nil {
			out = "error: " + err.Error()
			break
		}
		*filesWritten++
		out = "wrote " + args.Path
		r.progress(ctx, reporter, executor.StageImplementing,
			fmt.Sprintf("Updated %s.", args.Path),
			min(20+10*(*filesWritten), 75),
			map[string]string{"files_processed": strconv.Itoa(*filesWritten)})

	case "finish":
		var args finishArgs
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			out = "error: " + err.Error()
			break
		}
		*summary = args.Summary
		if *summary == "" {
			*summary = "Done."
		}
		out = "ok"
		finished = true

	default:
		out = fmt.Sprintf("error: unknown tool %q", toolUse.Name)
	}

	return anthropic.ContentBlockParamUnion{
		OfToolResult: &anthropic.ToolResultBlockParam{
			ToolUseID: toolUse.ID,
			Content: []anthropic.ToolResultBlockParamContentUnion{{
				OfText: &anthropic.TextBlockParam{Text: out},
			}},
		},
	}, finished
}

// toolDefs builds the offered tool set, honoring the repository's tool
// policy. Denials win; an empty allow list permits everything. finish is
// always offered so the conversation can end.
func toolDefs(allowed, denied []string) []anthropic.ToolUnionParam {
	permitted := func(name string) bool {
		if name == "finish" {
			return true
		}
		if slices.Contains(denied, name) {
			return false
		}
		return len(allowed) == 0 || slices.Contains(allowed, name)
	}

	defs := make([]anthropic.ToolUnionParam, 0, len(toolNames))
	for _, name := range toolNames {
		if !permitted(name) {
			continue
		}
		defs = append(defs, anthropic.ToolUnionParam{OfTool: toolParam(name)})
	}
	return defs
}

func toolParam(name string) *anthropic.ToolParam {
	switch name {
	case "list_files":
		return &anthropic.ToolParam{
			Name:        "list_files",
			Description: anthropic.String("List every file path in the repository."),
			InputSchema: anthropic.ToolInputSchemaParam{Type: "object", Properties: map[string]any{}},
		}
	case "read_file":
		return &anthropic.ToolParam{
			Name:        "read_file",
			Description: anthropic.String("Read a file from the repository."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"path": map[string]any{"type": "string", "description": "Repository-relative file path."},
				},
				Required: []string{"path"},
			},
		}
	case "write_file":
		return &anthropic.ToolParam{
			Name:        "write_file",
			Description: anthropic.String("Create or replace a file in the repository."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"path":    map[string]any{"type": "string", "description": "Repository-relative file path."},
					"content": map[string]any{"type": "string", "description": "The complete new file content."},
				},
				Required: []string{"path", "content"},
			},
		}
	case "finish":
		return &anthropic.ToolParam{
			Name:        "finish",
			Description: anthropic.String("End the run with a short summary of what was done."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"summary": map[string]any{"type": "string", "description": "One or two sentences describing the change."},
				},
				Required: []string{"summary"},
			},
		}
	}
	return nil
}

// buildPrompt writes the opening user message: the entity, its text, and a
// bounded listing of the tree.
func buildPrompt(task *executor.Task, ws *workspace) (string, error) {
	files, err := ws.listFiles()
	if err != nil {
		return "", err
	}
	listing := files
	truncated := false
	if len(listing) > maxFileListing {
		listing = listing[:maxFileListing]
		truncated = true
	}

	kind := "Issue"
	if task.IsPullRequest {
		kind = "Pull request"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", task.FullName)
	fmt.Fprintf(&b, "%s #%d: %s\n\n", kind, task.Number, task.Title)
	if task.Body != "" {
		fmt.Fprintf(&b, "%s\n\n", task.Body)
	}
	fmt.Fprintf(&b, "Repository files (%d total):\n%s\n", len(files), strings.Join(listing, "\n"))
	if truncated {
		b.WriteString("(listing truncated; use list_files for the rest)\n")
	}
	return b.String(), nil
}
