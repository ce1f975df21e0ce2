package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-ai/sidekick/internal/discovery"
	"github.com/sidekick-ai/sidekick/internal/event"
)

func TestWatcher_ReportsAppearAndRemove(t *testing.T) {
	socketDir := t.TempDir()
	workDir := t.TempDir()

	var mu sync.Mutex
	var appeared []discovery.Instance
	var removed []discovery.Instance

	unsubA := event.Subscribe(event.InstanceAppeared, func(ev event.Event) {
		if inst, ok := ev.Data.(discovery.Instance); ok {
			mu.Lock()
			appeared = append(appeared, inst)
			mu.Unlock()
		}
	})
	defer unsubA()
	unsubR := event.Subscribe(event.InstanceRemoved, func(ev event.Event) {
		if inst, ok := ev.Data.(discovery.Instance); ok {
			mu.Lock()
			removed = append(removed, inst)
			mu.Unlock()
		}
	})
	defer unsubR()

	w, err := NewWatcher(socketDir, workDir)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	socket := discovery.SocketPath(socketDir, workDir, discovery.KindNeovim, 777)
	require.NoError(t, os.WriteFile(socket, nil, 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(appeared) == 1
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, discovery.KindNeovim, appeared[0].Kind)
	assert.Equal(t, 777, appeared[0].PID)
	assert.Equal(t, socket, appeared[0].Socket)
	mu.Unlock()

	require.NoError(t, os.Remove(socket))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(removed) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherDirectories(t *testing.T) {
	socketDir := t.TempDir()
	workDir := t.TempDir()

	var mu sync.Mutex
	var count int
	unsub := event.Subscribe(event.InstanceAppeared, func(ev event.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unsub()

	w, err := NewWatcher(socketDir, workDir)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	// A socket scoped to a different working directory.
	other := discovery.SocketPath(socketDir, t.TempDir(), discovery.KindNeovim, 1)
	require.NoError(t, os.WriteFile(other, nil, 0o644))
	// And a file that is not a socket at all.
	require.NoError(t, os.WriteFile(filepath.Join(socketDir, "noise.txt"), nil, 0o644))

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, count)
	mu.Unlock()
}

func TestWatcher_MissingDirErrors(t *testing.T) {
	_, err := NewWatcher("/nonexistent/socket/dir", t.TempDir())
	assert.Error(t, err)
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	w.Stop()
}
