package session

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultControlPath = "/opt/fusion/fwril-control.txt"
	DefaultStatusPath  = "/opt/fusion/fwril-status.txt"
)

// Control holds the persisted preferences. A nil field was not present in
// the file and leaves the current value alone.
type Control struct {
	DataCallIsAutomatic *bool
	AutoActivate        *bool
}

// ReadControl parses the preference file. Each line that names a key is a
// flag that is set when the line contains "Yes" or "yes". A missing file is
// reported as an error wrapping os.ErrNotExist.
func ReadControl(path string) (Control, error) {
	f, err := os.Open(path)
	if err != nil {
		return Control{}, err
	}
	defer f.Close()

	var c Control
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		yes := strings.Contains(line, "Yes") || strings.Contains(line, "yes")
		if strings.Contains(line, "DataCallIsAutomatic") {
			c.DataCallIsAutomatic = &yes
		}
		if strings.Contains(line, "AutoActivate") {
			c.AutoActivate = &yes
		}
	}
	if err := scanner.Err(); err != nil {
		return Control{}, fmt.Errorf("read %s: %w", path, err)
	}
	return c, nil
}

// FormatStatus renders the status file body.
func FormatStatus(snap Snapshot) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "MEID=%s\n", snap.MEID)
	fmt.Fprintf(&b, "MDN=%s\n", snap.MDN)
	fmt.Fprintf(&b, "Carrier=%s\n", snap.Carrier)
	fmt.Fprintf(&b, "ModuleIsActivated=%s\n", snap.Activation)
	fmt.Fprintf(&b, "DataCallIsAutomatic=%s\n", yesNo(snap.AutoDataCall))
	fmt.Fprintf(&b, "InDataCall=%s\n", yesNo(snap.InDataCall))
	if snap.InDataCall {
		fmt.Fprintf(&b, "LocalIP=%s\n", snap.LocalIP)
	}
	return b.Bytes()
}

// WriteStatus rewrites the status file and makes it world readable.
func WriteStatus(path string, snap Snapshot) error {
	if err := os.WriteFile(path, FormatStatus(snap), 0o666); err != nil {
		return err
	}
	// WriteFile is subject to the umask
	return os.Chmod(path, 0o666)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// StatusWriter rewrites the status file of a Session after each externally
// meaningful change.
type StatusWriter struct {
	Session *Session
	Path    string
}

// Persist writes the current snapshot. A writer without a path does nothing.
func (w *StatusWriter) Persist() error {
	if w == nil || w.Path == "" {
		return nil
	}
	return WriteStatus(w.Path, w.Session.Snapshot())
}
