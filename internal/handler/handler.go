// Package handler processes hook events: it classifies the incoming tool
// call, queries live editor instances, and renders the permission decision.
package handler

import (
	"context"
	"fmt"
	"os"

	"github.com/sidekick-ai/sidekick/internal/config"
	"github.com/sidekick-ai/sidekick/internal/discovery"
	"github.com/sidekick-ai/sidekick/internal/event"
	"github.com/sidekick-ai/sidekick/internal/fanout"
	"github.com/sidekick-ai/sidekick/internal/logging"
	"github.com/sidekick-ai/sidekick/pkg/types"
)

// Decision is published on the event bus after each pre-modification check.
type Decision struct {
	Path         string                   `json:"path"`
	Allowed      bool                     `json:"allowed"`
	BlockingKind discovery.Kind           `json:"blocking_kind,omitempty"`
	Decision     types.PermissionDecision `json:"decision"`
}

// Handler processes one hook invocation. It holds no cross-call state:
// instances are rediscovered on every call so correctness survives editors
// starting and stopping between invocations.
type Handler struct {
	cfg  *config.Config
	opts []fanout.Option
}

// New creates a Handler. Extra fanout options are applied to every
// aggregator the handler builds; tests use this to inject fake adapters.
func New(cfg *config.Config, opts ...fanout.Option) *Handler {
	return &Handler{cfg: cfg, opts: opts}
}

// Handle decodes the hook payload and produces the response. The only error
// it can return is a malformed top-level payload; every per-instance failure
// below this boundary degrades to an allow or a silent no-op.
func (h *Handler) Handle(ctx context.Context, input []byte) (types.HookOutput, error) {
	hook, err := types.ParseHook(input)
	if err != nil {
		return types.HookOutput{}, err
	}

	logging.Debug().
		Str("event", string(hook.Event)).
		Str("tool", string(hook.Tool.Name)).
		Str("cwd", hook.Cwd).
		Msg("hook received")

	switch hook.Event {
	case types.PreToolUse:
		return h.preToolUse(ctx, hook), nil
	case types.PostToolUse:
		return h.postToolUse(ctx, hook), nil
	case types.UserPromptSubmit:
		return h.userPromptSubmit(ctx, hook), nil
	default:
		// Unknown events pass through; blocking them would couple this
		// binary to one agent version.
		return types.HookOutput{}, nil
	}
}

// preToolUse gates file modifications. Non-modification tools are allowed
// without any instance contact.
func (h *Handler) preToolUse(ctx context.Context, hook *types.Hook) types.HookOutput {
	if !hook.Tool.IsModification() {
		return types.HookOutput{}
	}
	paths := hook.Tool.TargetPaths()
	if len(paths) == 0 {
		return types.HookOutput{}
	}

	agg := h.aggregator(hook)
	if len(agg.Instances()) == 0 {
		return types.HookOutput{}
	}

	for _, path := range paths {
		res := agg.BufferStatus(ctx, path)
		decision := Decision{Path: path, Allowed: !res.Blocked, Decision: types.DecisionAllow}
		if res.Blocked {
			decision.Decision = types.DecisionDeny
			decision.BlockingKind = res.BlockingKind
		}
		event.Publish(event.DecisionMade, decision)

		if !res.Blocked {
			continue
		}

		logging.Info().
			Str("path", path).
			Str("kind", string(res.BlockingKind)).
			Int("answered", res.Answered).
			Msg("modification denied")

		if h.cfg.ShouldNotifyOnDeny() {
			sent := agg.SendMessage(ctx, fmt.Sprintf("The agent tried to edit %s", path))
			event.Publish(event.MessageSent, sent)
		}

		reason := fmt.Sprintf(
			"%s is open in %s with unsaved changes; the user is editing it, try again later",
			path, res.BlockingKind.DisplayName(),
		)
		return types.HookOutput{}.WithPermissionDecision(types.DecisionDeny, reason)
	}
	return types.HookOutput{}
}

// postToolUse refreshes buffers after a modification so editors pick up the
// new on-disk content. Runs regardless of what the earlier decision was.
func (h *Handler) postToolUse(ctx context.Context, hook *types.Hook) types.HookOutput {
	if !hook.Tool.IsModification() {
		return types.HookOutput{}
	}

	agg := h.aggregator(hook)
	for _, path := range hook.Tool.TargetPaths() {
		refreshed := agg.RefreshBuffer(ctx, path)
		logging.Debug().Str("path", path).Int("refreshed", refreshed).Msg("buffer refresh fan-out")
		event.Publish(event.BufferRefreshed, path)
	}
	return types.HookOutput{}
}

// userPromptSubmit injects the active visual selection, when one exists, as
// additional context. No selection is a silent no-op.
func (h *Handler) userPromptSubmit(ctx context.Context, hook *types.Hook) types.HookOutput {
	agg := h.aggregator(hook)
	sel := agg.VisualSelection(ctx)
	if sel == nil {
		return types.HookOutput{}
	}

	event.Publish(event.SelectionFound, sel)
	injected := fmt.Sprintf(
		"[Selected from %s:%d-%d]\n```\n%s\n```",
		sel.FilePath, sel.StartLine, sel.EndLine, sel.Content,
	)
	return types.HookOutput{}.WithAdditionalContext(injected)
}

// aggregator discovers instances scoped to the hook's working directory and
// wraps them in a fan-out aggregator with the configured timeout.
func (h *Handler) aggregator(hook *types.Hook) *fanout.Aggregator {
	cwd := hook.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	instances := discovery.Discover(h.cfg.ResolvedSocketDir(), cwd)
	logging.Debug().Int("instances", len(instances)).Str("cwd", cwd).Msg("discovered instances")

	opts := append([]fanout.Option{fanout.WithTimeout(h.cfg.RPCTimeout())}, h.opts...)
	return fanout.New(instances, opts...)
}
