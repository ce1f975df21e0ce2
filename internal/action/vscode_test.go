package action

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtensionHost speaks the newline-delimited JSON protocol over a unix
// socket. The respond callback returns the raw response line for a request.
func fakeExtensionHost(t *testing.T, respond func(req map[string]any) string) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "ext.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					var req map[string]any
					if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
						return
					}
					resp := respond(req)
					if resp == "" {
						return
					}
					fmt.Fprintln(conn, resp)
				}
			}(conn)
		}
	}()
	return socket
}

func reqID(req map[string]any) int {
	id, _ := req["id"].(float64)
	return int(id)
}

func shortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestVSCodeAction_BufferStatus(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		assert.Equal(t, "buffer_status", req["method"])
		params := req["params"].(map[string]any)
		assert.NotEmpty(t, params["file_path"])
		return fmt.Sprintf(`{"id":%d,"result":{"is_current":true,"has_unsaved_changes":true}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	status, err := act.BufferStatus(shortCtx(t), "/tmp/somefile.go")
	require.NoError(t, err)
	assert.True(t, status.IsCurrent)
	assert.True(t, status.HasUnsavedChanges)
}

func TestVSCodeAction_BufferStatus_NotOpen(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		return fmt.Sprintf(`{"id":%d,"result":{"is_current":false,"has_unsaved_changes":false}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	status, err := act.BufferStatus(shortCtx(t), "/tmp/other.go")
	require.NoError(t, err)
	assert.Equal(t, BufferStatus{}, status)
}

func TestVSCodeAction_RefreshBuffer(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		assert.Equal(t, "refresh_buffer", req["method"])
		return fmt.Sprintf(`{"id":%d,"result":{"success":true}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	assert.NoError(t, act.RefreshBuffer(shortCtx(t), "/tmp/somefile.go"))
}

func TestVSCodeAction_SendMessage(t *testing.T) {
	var gotMessage string
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		params := req["params"].(map[string]any)
		gotMessage, _ = params["message"].(string)
		return fmt.Sprintf(`{"id":%d,"result":{"success":true}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	require.NoError(t, act.SendMessage(shortCtx(t), "hello there"))
	assert.Equal(t, "hello there", gotMessage)
}

func TestVSCodeAction_VisualSelection(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		assert.Equal(t, "get_visual_selection", req["method"])
		return fmt.Sprintf(`{"id":%d,"result":{"file_path":"/src/main.go","start_line":3,"end_line":5,"content":"func main() {}"}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	sel, err := act.VisualSelection(shortCtx(t))
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "/src/main.go", sel.FilePath)
	assert.Equal(t, 3, sel.StartLine)
	assert.Equal(t, 5, sel.EndLine)
}

func TestVSCodeAction_VisualSelection_None(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		return fmt.Sprintf(`{"id":%d,"result":null}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	sel, err := act.VisualSelection(shortCtx(t))
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestVSCodeAction_RPCError(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		return fmt.Sprintf(`{"id":%d,"error":{"code":-32601,"message":"method not found"}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	_, err := act.BufferStatus(shortCtx(t), "/tmp/x.go")
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestVSCodeAction_MalformedResponse(t *testing.T) {
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		return "this is not json"
	})

	act := &VSCodeAction{Socket: socket}
	_, err := act.BufferStatus(shortCtx(t), "/tmp/x.go")
	assert.Error(t, err)
}

func TestVSCodeAction_SkipsMismatchedIDs(t *testing.T) {
	first := true
	socket := fakeExtensionHost(t, func(req map[string]any) string {
		if first {
			first = false
			// A stale line before the real response.
			return fmt.Sprintf(`{"id":999999,"result":{}}`+"\n"+`{"id":%d,"result":{"is_current":true,"has_unsaved_changes":true}}`, reqID(req))
		}
		return fmt.Sprintf(`{"id":%d,"result":{}}`, reqID(req))
	})

	act := &VSCodeAction{Socket: socket}
	status, err := act.BufferStatus(shortCtx(t), "/tmp/x.go")
	require.NoError(t, err)
	assert.True(t, status.HasUnsavedChanges)
}

func TestVSCodeAction_ConnectionRefused(t *testing.T) {
	act := &VSCodeAction{Socket: filepath.Join(t.TempDir(), "nobody.sock")}
	_, err := act.BufferStatus(shortCtx(t), "/tmp/x.go")
	assert.Error(t, err)
}

func TestVSCodeAction_Timeout(t *testing.T) {
	// A host that accepts but never answers must not hold the caller past
	// its deadline.
	socket := filepath.Join(t.TempDir(), "slow.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			// Swallow the request, say nothing.
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	act := &VSCodeAction{Socket: socket}
	start := time.Now()
	_, err = act.BufferStatus(ctx, "/tmp/x.go")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
