// Package workdir provides scoped acquisition of the directory a pipeline
// run writes its artifacts to.
//
// The external tools expect conventional file names, so two runs sharing
// one directory would overwrite each other's files. Isolated mode (default)
// gives each run its own subdirectory runs/<run_id> under the root. Shared
// mode uses the root itself and holds an exclusive lock file for the run's
// duration; a second acquirer fails with ErrBusy instead of corrupting the
// first run.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/gridops-tools/ctgrun/iox"
)

// Mode selects how runs share the root directory.
type Mode string

const (
	// Isolated allocates runs/<run_id> per run.
	Isolated Mode = "isolated"
	// Shared uses the root directly under an exclusive lock file.
	Shared Mode = "shared"
)

// ParseMode parses a mode string. Empty selects Isolated.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", Isolated:
		return Isolated, nil
	case Shared:
		return Shared, nil
	default:
		return "", fmt.Errorf("invalid workdir mode %q (must be isolated or shared)", s)
	}
}

// LockFile is the lock file name used in shared mode.
const LockFile = ".ctgrun.lock"

// Conventional artifact names expected by the external tools.
const (
	SnapshotFile         = "snapshot.sav"
	ContingencyFile      = "n1.otg"
	ContingencyScript    = "n1ctg.p"
	CriteriaFile         = "criteria.cntl"
	RunDescriptorFile    = "run.ctg"
	ResultsFile          = "results.rslt"
	ReportDescriptorFile = "report.desc"
	LauncherFile         = "launch_report.sh"
	SpreadsheetFile      = "violations.xlsx"
)

// ErrBusy is returned when a shared working directory is held by another run.
var ErrBusy = errors.New("working directory is in use by another run")

// Workdir is an acquired working directory.
type Workdir struct {
	root    billy.Filesystem
	fs      billy.Filesystem
	rel     string
	dir     string
	mode    Mode
	runID   string
	release bool
}

// Acquire prepares the working directory for runID under root.
func Acquire(root, runID string, mode Mode) (*Workdir, error) {
	if runID == "" {
		return nil, errors.New("run id must be non-empty")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("run id %q is not a valid directory name", runID)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir root %q: %w", root, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir root %q: %w", absRoot, err)
	}
	rootFS := osfs.New(absRoot)

	w := &Workdir{
		root:  rootFS,
		mode:  mode,
		runID: runID,
	}

	switch mode {
	case Isolated, "":
		w.mode = Isolated
		w.rel = filepath.Join("runs", runID)
		if _, err := rootFS.Stat(w.rel); err == nil {
			return nil, fmt.Errorf("run directory %q already exists", w.rel)
		}
		if err := rootFS.MkdirAll(w.rel, 0o755); err != nil {
			return nil, fmt.Errorf("create run directory: %w", err)
		}
		w.fs, err = rootFS.Chroot(w.rel)
		if err != nil {
			return nil, fmt.Errorf("chroot run directory: %w", err)
		}
		w.dir = filepath.Join(absRoot, w.rel)

	case Shared:
		f, err := rootFS.OpenFile(LockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				holder := readLockHolder(rootFS)
				return nil, fmt.Errorf("%w (held by %s)", ErrBusy, holder)
			}
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		_, werr := f.Write([]byte(runID + "\n"))
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = rootFS.Remove(LockFile)
			return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
		}
		w.fs = rootFS
		w.dir = absRoot

	default:
		return nil, fmt.Errorf("invalid workdir mode %q", mode)
	}

	return w, nil
}

func readLockHolder(fs billy.Filesystem) string {
	data, err := util.ReadFile(fs, LockFile)
	if err != nil {
		return "unknown run"
	}
	holder := strings.TrimSpace(string(data))
	if holder == "" {
		return "unknown run"
	}
	return holder
}

// FS returns the filesystem rooted at the working directory.
func (w *Workdir) FS() billy.Filesystem {
	return w.fs
}

// Dir returns the absolute path of the working directory.
func (w *Workdir) Dir() string {
	return w.dir
}

// Mode returns the acquisition mode.
func (w *Workdir) Mode() Mode {
	return w.mode
}

// Path returns the absolute path of an artifact inside the working directory.
func (w *Workdir) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Release gives up the working directory. In shared mode the lock file is
// removed. In isolated mode the run directory is removed when purge is set;
// shared directories are never purged.
func (w *Workdir) Release(purge bool) error {
	if w.release {
		return nil
	}
	w.release = true

	switch w.mode {
	case Shared:
		return iox.RemoveIfExists(w.root, LockFile)
	default:
		if purge {
			return util.RemoveAll(w.root, w.rel)
		}
		return nil
	}
}
