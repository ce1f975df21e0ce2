// Package discovery enumerates live editor instances for a working directory.
//
// Editors announce themselves by listening on a unix socket named after a
// deterministic hash of their working directory:
//
//	<sha256(canonical cwd)>-<kind>-<pid>.sock
//
// Kinds are "nvim" and "code". Legacy sockets without a kind marker
// (<hash>-<pid>.sock) are accepted and treated as Neovim. Discovery matches on
// the hash prefix only, so instances of kinds it has never heard of still show
// up with their marker preserved.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind identifies an editor backend.
type Kind string

const (
	KindNeovim Kind = "nvim"
	KindVSCode Kind = "code"
)

// DisplayName returns a human-readable backend name.
func (k Kind) DisplayName() string {
	switch k {
	case KindNeovim:
		return "Neovim"
	case KindVSCode:
		return "VSCode"
	default:
		return string(k)
	}
}

// Instance is one discovered editor process. Identity is the socket path;
// instances are rediscovered fresh on every invocation and never persisted.
type Instance struct {
	Kind   Kind
	Socket string
	PID    int
}

// DirHash returns the hex digest identifying a working directory. Symlinks
// are resolved first so every process that cd'd into the same real directory
// agrees on the hash.
func DirHash(dir string) string {
	canonical := canonicalDir(dir)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// SocketPath returns the socket path an instance of the given kind and pid
// should listen on for the given working directory.
func SocketPath(socketDir, workDir string, kind Kind, pid int) string {
	return filepath.Join(socketDir, fmt.Sprintf("%s-%s-%d.sock", DirHash(workDir), kind, pid))
}

// Discover lists the instances scoped to workDir, sorted by socket path so
// downstream reductions see a deterministic order. Filesystem problems
// (missing socket dir, permission errors) degrade to an empty result; the
// caller always gets a usable, possibly empty, list.
func Discover(socketDir, workDir string) []Instance {
	return DiscoverByHash(socketDir, DirHash(workDir))
}

// DiscoverByHash lists instances whose socket name carries the given
// directory hash.
func DiscoverByHash(socketDir, hash string) []Instance {
	pattern := hash + "-*.sock"

	entries, err := os.ReadDir(socketDir)
	if err != nil {
		return nil
	}

	var instances []Instance
	for _, entry := range entries {
		name := entry.Name()
		if ok, err := doublestar.Match(pattern, name); err != nil || !ok {
			continue
		}
		inst, ok := parseSocketName(name)
		if !ok {
			continue
		}
		inst.Socket = filepath.Join(socketDir, name)
		instances = append(instances, inst)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Socket < instances[j].Socket
	})
	return instances
}

// parseSocketName extracts the kind marker and owning pid from a socket file
// name that already matched the directory hash prefix. The pid is best-effort;
// a name without a parseable pid still yields an instance with PID 0.
func parseSocketName(name string) (Instance, bool) {
	base := strings.TrimSuffix(name, ".sock")
	parts := strings.Split(base, "-")
	if len(parts) < 2 {
		return Instance{}, false
	}

	// <hash>-<kind>-<pid> or legacy <hash>-<pid>
	last := parts[len(parts)-1]
	pid, pidErr := strconv.Atoi(last)

	switch {
	case len(parts) >= 3 && pidErr == nil:
		return Instance{Kind: Kind(parts[len(parts)-2]), PID: pid}, true
	case len(parts) == 2 && pidErr == nil:
		return Instance{Kind: KindNeovim, PID: pid}, true
	case len(parts) >= 2 && pidErr != nil:
		// Marker present but no pid suffix.
		return Instance{Kind: Kind(last)}, true
	default:
		return Instance{}, false
	}
}

// canonicalDir resolves symlinks and relative segments. On failure the
// cleaned absolute path is used as-is; hashing must never error out.
func canonicalDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
