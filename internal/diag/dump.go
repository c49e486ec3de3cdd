package diag

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"

	"github.com/losvmkernel/vmcore"
)

// Dumper takes a memory dump and writes it to dir, naming the file with
// the pid, a timestamp, and an xid for uniqueness across dumps taken in
// the same second — the teacher names dumps "<pid>-<timestamp>.dmp";
// this core's dumps are taken from a live HTTP request and can
// plausibly collide on timestamp alone under load.
type Dumper struct {
	sys *vmcore.System
	dir string
	log *slog.Logger
}

// NewDumper builds a Dumper writing into dir.
func NewDumper(sys *vmcore.System, dir string, log *slog.Logger) *Dumper {
	if log == nil {
		log = slog.Default()
	}
	return &Dumper{sys: sys, dir: dir, log: log}
}

// Dump writes pid's resident memory to a new file under the dump
// directory and returns its path.
func (d *Dumper) Dump(pid vmcore.PID) (string, error) {
	content, err := d.sys.DumpResident(pid)
	if err != nil {
		return "", fmt.Errorf("diag: dumping pid %d: %w", pid, err)
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("diag: creating dump dir %q: %w", d.dir, err)
	}

	name := fmt.Sprintf("%d-%s-%s.dmp", pid, time.Now().Format("20060102-150405"), xid.New().String())
	path := filepath.Join(d.dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("diag: writing dump %q: %w", path, err)
	}

	d.log.Info("diag: memory dump written", "pid", pid, "path", path, "bytes", len(content))
	return path, nil
}
