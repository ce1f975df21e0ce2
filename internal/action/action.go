// Package action provides a uniform capability contract over editor backends.
//
// Every operation opens one connection to one instance socket, performs a
// single request/response round trip, and closes. Callers bound each call
// with a context deadline; adapters honor it on connect and on the round
// trip. Adapter failures are returned as errors and mapped to neutral
// defaults by the fan-out layer, never surfaced to the hook caller.
package action

import (
	"context"
	"path/filepath"

	"github.com/sidekick-ai/sidekick/internal/discovery"
)

// BufferStatus describes one instance's view of one file.
type BufferStatus struct {
	IsCurrent         bool `json:"is_current"`
	HasUnsavedChanges bool `json:"has_unsaved_changes"`
}

// Selection is a visual selection reported by an instance.
type Selection struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// Action is the operation contract every backend adapter implements.
type Action interface {
	// BufferStatus reports whether the canonicalized path is open, current,
	// and modified in the instance. A file that is not open yields the zero
	// status, not an error.
	BufferStatus(ctx context.Context, path string) (BufferStatus, error)

	// RefreshBuffer reloads the file from disk in every view showing it,
	// preserving cursor and viewport state. No-op success if not open.
	RefreshBuffer(ctx context.Context, path string) error

	// SendMessage surfaces a user-visible notification in the instance.
	SendMessage(ctx context.Context, text string) error

	// VisualSelection returns the active non-empty selection, or nil.
	VisualSelection(ctx context.Context) (*Selection, error)
}

// New returns the adapter for an instance, selected by its kind marker.
// Unknown kinds get the VSCode-style JSON adapter, which is the protocol
// third-party extensions are expected to speak.
func New(inst discovery.Instance) Action {
	switch inst.Kind {
	case discovery.KindNeovim:
		return &NvimAction{Socket: inst.Socket}
	default:
		return &VSCodeAction{Socket: inst.Socket}
	}
}

// CanonicalPath resolves symlinks so a hook target and an open buffer agree
// on identity. A path that does not resolve (for example a file about to be
// created) falls back to its cleaned absolute form.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
