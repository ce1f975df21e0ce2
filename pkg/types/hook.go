package types

import (
	"encoding/json"
	"fmt"
)

// HookEvent identifies the lifecycle point the hook payload describes.
type HookEvent string

const (
	PreToolUse       HookEvent = "PreToolUse"
	PostToolUse      HookEvent = "PostToolUse"
	UserPromptSubmit HookEvent = "UserPromptSubmit"
)

// ToolName identifies the tool a hook event refers to.
type ToolName string

const (
	ToolRead      ToolName = "Read"
	ToolWrite     ToolName = "Write"
	ToolEdit      ToolName = "Edit"
	ToolMultiEdit ToolName = "MultiEdit"
	ToolBash      ToolName = "Bash"
)

// FileInput is the input payload shared by the file-oriented tools.
type FileInput struct {
	FilePath  string     `json:"file_path"`
	Content   string     `json:"content,omitempty"`
	OldString string     `json:"old_string,omitempty"`
	NewString string     `json:"new_string,omitempty"`
	Edits     []EditSpec `json:"edits,omitempty"` // MultiEdit only
}

// EditSpec is a single replacement within a MultiEdit call.
type EditSpec struct {
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// BashInput is the input payload of the Bash tool.
type BashInput struct {
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
}

// ToolCall is a tagged union over the tool payloads, discriminated by Name.
// Exactly one of File or Bash is set for the known tools; unknown tool names
// keep only Raw so new tools pass through without breaking decode.
type ToolCall struct {
	Name ToolName
	File *FileInput
	Bash *BashInput
	Raw  json.RawMessage
}

// IsModification reports whether this tool call writes to a file on disk.
func (t ToolCall) IsModification() bool {
	switch t.Name {
	case ToolWrite, ToolEdit, ToolMultiEdit:
		return true
	default:
		return false
	}
}

// TargetPaths returns the file paths this call will modify.
func (t ToolCall) TargetPaths() []string {
	if !t.IsModification() || t.File == nil || t.File.FilePath == "" {
		return nil
	}
	return []string{t.File.FilePath}
}

// Hook is the payload delivered on stdin for a single hook invocation.
type Hook struct {
	SessionID      string    `json:"session_id"`
	TranscriptPath string    `json:"transcript_path"`
	Cwd            string    `json:"cwd"`
	Event          HookEvent `json:"hook_event_name"`
	Tool           ToolCall  `json:"-"`
	Prompt         string    `json:"prompt,omitempty"`
}

type hookEnvelope struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	Cwd            string          `json:"cwd"`
	Event          HookEvent       `json:"hook_event_name"`
	ToolName       ToolName        `json:"tool_name"`
	ToolInput      json.RawMessage `json:"tool_input"`
	Prompt         string          `json:"prompt"`
}

// ParseHook decodes a hook payload. A malformed top-level object is the only
// error; unknown tool names decode into a passthrough ToolCall.
func ParseHook(data []byte) (*Hook, error) {
	var env hookEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid hook payload: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("invalid hook payload: missing hook_event_name")
	}

	h := &Hook{
		SessionID:      env.SessionID,
		TranscriptPath: env.TranscriptPath,
		Cwd:            env.Cwd,
		Event:          env.Event,
		Prompt:         env.Prompt,
		Tool:           ToolCall{Name: env.ToolName, Raw: env.ToolInput},
	}
	if len(env.ToolInput) == 0 {
		return h, nil
	}

	switch env.ToolName {
	case ToolRead, ToolWrite, ToolEdit, ToolMultiEdit:
		var in FileInput
		if err := json.Unmarshal(env.ToolInput, &in); err != nil {
			return nil, fmt.Errorf("invalid %s input: %w", env.ToolName, err)
		}
		h.Tool.File = &in
	case ToolBash:
		var in BashInput
		if err := json.Unmarshal(env.ToolInput, &in); err != nil {
			return nil, fmt.Errorf("invalid Bash input: %w", err)
		}
		h.Tool.Bash = &in
	}
	return h, nil
}

// PermissionDecision is the verdict attached to a PreToolUse response.
type PermissionDecision string

const (
	DecisionAllow PermissionDecision = "allow"
	DecisionDeny  PermissionDecision = "deny"
	DecisionAsk   PermissionDecision = "ask"
)

// HookSpecificOutput carries the event-specific part of a hook response.
type HookSpecificOutput struct {
	HookEventName            string             `json:"hookEventName"`
	PermissionDecision       PermissionDecision `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string             `json:"permissionDecisionReason,omitempty"`
	AdditionalContext        string             `json:"additionalContext,omitempty"`
}

// HookOutput is the JSON object written to stdout. The zero value serializes
// as "{}", which the caller treats as an unconditional allow.
type HookOutput struct {
	Continue           *bool               `json:"continue,omitempty"`
	StopReason         string              `json:"stopReason,omitempty"`
	SuppressOutput     *bool               `json:"suppressOutput,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// WithPermissionDecision attaches a PreToolUse permission verdict.
func (o HookOutput) WithPermissionDecision(d PermissionDecision, reason string) HookOutput {
	o.HookSpecificOutput = &HookSpecificOutput{
		HookEventName:            string(PreToolUse),
		PermissionDecision:       d,
		PermissionDecisionReason: reason,
	}
	return o
}

// WithAdditionalContext attaches injected context for UserPromptSubmit.
func (o HookOutput) WithAdditionalContext(ctx string) HookOutput {
	o.HookSpecificOutput = &HookSpecificOutput{
		HookEventName:     string(UserPromptSubmit),
		AdditionalContext: ctx,
	}
	return o
}

// WithSystemMessage attaches a user-visible warning.
func (o HookOutput) WithSystemMessage(msg string) HookOutput {
	o.SystemMessage = msg
	return o
}

// Encode renders the output as a single JSON object.
func (o HookOutput) Encode() ([]byte, error) {
	return json.Marshal(o)
}
