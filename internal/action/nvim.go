package action

import (
	"context"

	"github.com/neovim/go-client/nvim"
)

// NvimAction talks to one Neovim instance over its msgpack-RPC socket.
type NvimAction struct {
	Socket string
}

type nvimBufferStatus struct {
	Found     bool `msgpack:"found"`
	IsCurrent bool `msgpack:"is_current"`
	Modified  bool `msgpack:"modified"`
}

type nvimSelection struct {
	FilePath  string `msgpack:"file_path"`
	StartLine int    `msgpack:"start_line"`
	EndLine   int    `msgpack:"end_line"`
	Content   string `msgpack:"content"`
}

// BufferStatus implements Action.
func (a *NvimAction) BufferStatus(ctx context.Context, path string) (BufferStatus, error) {
	var out nvimBufferStatus
	if err := a.execLua(ctx, bufferStatusLua, &out, CanonicalPath(path)); err != nil {
		return BufferStatus{}, err
	}
	if !out.Found {
		return BufferStatus{}, nil
	}
	return BufferStatus{IsCurrent: out.IsCurrent, HasUnsavedChanges: out.Modified}, nil
}

// RefreshBuffer implements Action.
func (a *NvimAction) RefreshBuffer(ctx context.Context, path string) error {
	var ok bool
	return a.execLua(ctx, refreshBufferLua, &ok, CanonicalPath(path))
}

// SendMessage implements Action.
func (a *NvimAction) SendMessage(ctx context.Context, text string) error {
	var ok bool
	return a.execLua(ctx, sendMessageLua, &ok, text)
}

// VisualSelection implements Action.
func (a *NvimAction) VisualSelection(ctx context.Context) (*Selection, error) {
	var out nvimSelection
	if err := a.execLua(ctx, visualSelectionLua, &out); err != nil {
		return nil, err
	}
	if out.FilePath == "" {
		return nil, nil
	}
	return &Selection{
		FilePath:  out.FilePath,
		StartLine: out.StartLine,
		EndLine:   out.EndLine,
		Content:   out.Content,
	}, nil
}

// execLua dials the socket, runs one nvim_exec_lua call, and closes. The
// whole exchange races against the context; on timeout the connection is
// abandoned to its own cleanup and the caller moves on without it.
func (a *NvimAction) execLua(ctx context.Context, code string, result any, args ...any) error {
	done := make(chan error, 1)
	go func() {
		v, err := nvim.Dial(a.Socket)
		if err != nil {
			done <- err
			return
		}
		defer v.Close()
		done <- v.ExecLua(code, result, args...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
