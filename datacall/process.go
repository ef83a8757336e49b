package datacall

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	DefaultPppdPath = "/usr/sbin/pppd"
	DefaultProcRoot = "/proc"
)

// Launcher starts the packet session process for a peer.
type Launcher interface {
	Launch(ctx context.Context, peer string) error
}

// ProcessFinder locates a running process by its command name.
type ProcessFinder interface {
	FindByName(name string) (pid int, found bool, err error)
}

// Signaller asks a process to terminate.
type Signaller interface {
	Terminate(pid int) error
}

// PppdLauncher runs "pppd call <peer>". pppd detaches by itself, so Launch
// returns once the daemon has forked.
type PppdLauncher struct {
	Path string
	// Args are inserted before "call", e.g. "debug"
	Args []string
}

func (l PppdLauncher) Launch(ctx context.Context, peer string) error {
	if peer == "" {
		return ErrNoPeer
	}
	path := l.Path
	if path == "" {
		path = DefaultPppdPath
	}
	args := append(append([]string{}, l.Args...), "call", peer)
	cmd := exec.CommandContext(ctx, path, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", path, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (l PppdLauncher) String() string {
	if l.Path == "" {
		return DefaultPppdPath
	}
	return l.Path
}

// ProcFinder scans the process status files under Root.
type ProcFinder struct {
	Root string
}

func (f ProcFinder) FindByName(name string) (int, bool, error) {
	root := f.Root
	if root == "" {
		root = DefaultProcRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		if statusName(filepath.Join(root, e.Name(), "status")) == name {
			return pid, true, nil
		}
	}
	return 0, false, nil
}

// statusName returns the command name from the first "Name:" line of a
// status file, or "" when it cannot be read.
func statusName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return ""
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 || fields[0] != "Name:" {
		return ""
	}
	return fields[1]
}

// SignalTerm delivers SIGTERM.
type SignalTerm struct{}

func (SignalTerm) Terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
