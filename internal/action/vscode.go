package action

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// JSON-RPC error codes used by the extension protocol.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPCError is a protocol-level failure reported by an extension host.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// requestID numbers requests process-wide so log lines from concurrent
// workers stay distinguishable.
var requestID atomic.Uint64

type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// VSCodeAction talks to one VSCode extension host over its unix socket,
// exchanging newline-delimited JSON. One request per connection.
type VSCodeAction struct {
	Socket string
}

type filePathParams struct {
	FilePath string `json:"file_path"`
}

type messageParams struct {
	Message string `json:"message"`
}

type successResult struct {
	Success bool `json:"success"`
}

// BufferStatus implements Action.
func (a *VSCodeAction) BufferStatus(ctx context.Context, path string) (BufferStatus, error) {
	var out BufferStatus
	err := a.call(ctx, "buffer_status", filePathParams{FilePath: CanonicalPath(path)}, &out)
	if err != nil {
		return BufferStatus{}, err
	}
	return out, nil
}

// RefreshBuffer implements Action.
func (a *VSCodeAction) RefreshBuffer(ctx context.Context, path string) error {
	var out successResult
	return a.call(ctx, "refresh_buffer", filePathParams{FilePath: CanonicalPath(path)}, &out)
}

// SendMessage implements Action.
func (a *VSCodeAction) SendMessage(ctx context.Context, text string) error {
	var out successResult
	return a.call(ctx, "send_message", messageParams{Message: text}, &out)
}

// VisualSelection implements Action.
func (a *VSCodeAction) VisualSelection(ctx context.Context) (*Selection, error) {
	var out *Selection
	if err := a.call(ctx, "get_visual_selection", nil, &out); err != nil {
		return nil, err
	}
	if out == nil || out.FilePath == "" {
		return nil, nil
	}
	return out, nil
}

// call performs one connect/request/response/close exchange. The context
// deadline bounds the dial and both I/O directions.
func (a *VSCodeAction) call(ctx context.Context, method string, params, result any) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(2 * time.Second)
	}

	conn, err := net.DialTimeout("unix", a.Socket, time.Until(deadline))
	if err != nil {
		return fmt.Errorf("connect %s: %w", a.Socket, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	req := rpcRequest{ID: requestID.Add(1), Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("read %s response: %w", method, err)
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("malformed %s response: %w", method, err)
		}
		if resp.ID != req.ID {
			// Stray notification or stale response; keep reading until the
			// deadline trips.
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("malformed %s result: %w", method, err)
			}
		}
		return nil
	}
}
