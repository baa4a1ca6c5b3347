package wizard

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"imgcrunch/internal/config"
	"imgcrunch/internal/tui"
)

func noFormats(config.Format) bool { return false }

func jpegOnly(f config.Format) bool { return f == config.FormatJPEG }

func runWizard(t *testing.T, input string, supports Caps) (*config.Config, error) {
	t.Helper()
	return Run(strings.NewReader(input), io.Discard, tui.NewStyles(false), t.TempDir(), supports)
}

func TestRunDefaults(t *testing.T) {
	// mode 1, detected format, default size, no rename, confirm
	cfg, err := runWizard(t, "1\n\n\n\ny\n", jpegOnly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if cfg.Replace {
		t.Error("replace should be off")
	}
	if !cfg.MoveOriginals {
		t.Error("move originals should be on")
	}
	if cfg.Format != config.FormatJPEG {
		t.Errorf("format %s", cfg.Format)
	}
	if cfg.MaxSize != config.DefaultMaxSize {
		t.Errorf("max size %d", cfg.MaxSize)
	}
	if cfg.RenameBase != "" {
		t.Errorf("rename base %q", cfg.RenameBase)
	}
}

func TestRunReplaceMode(t *testing.T) {
	// mode 2, detected format, convert only, confirm (replace skips rename)
	cfg, err := runWizard(t, "2\n\n0\ny\n", jpegOnly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !cfg.Replace {
		t.Error("replace should be on")
	}
	if cfg.MoveOriginals {
		t.Error("move originals must be off in replace mode")
	}
	if cfg.MaxSize != 0 {
		t.Errorf("max size %d, want 0", cfg.MaxSize)
	}
}

func TestRunSanitizesRename(t *testing.T) {
	cfg, err := runWizard(t, "1\n\n\nsummer trip!\ny\n", jpegOnly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if cfg.RenameBase != "summer_trip" {
		t.Errorf("rename base %q, want summer_trip", cfg.RenameBase)
	}
}

func TestRunAbort(t *testing.T) {
	if _, err := runWizard(t, "1\n\n\n\nn\n", jpegOnly); !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
}

func TestRunAbortOnEOF(t *testing.T) {
	if _, err := runWizard(t, "1\n", jpegOnly); !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
}

func TestSummaryOmitsRenameInReplaceMode(t *testing.T) {
	// The folder path is echoed in the output, so avoid t.TempDir(): its
	// path contains the test name, which itself contains "Rename".
	dir, err := os.MkdirTemp("", "wizard")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	var out bytes.Buffer
	_, err = Run(strings.NewReader("2\n\n\ny\n"), &out, tui.NewStyles(false), dir, jpegOnly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.String(), "Rename") {
		t.Error("replace-mode summary should not mention renaming")
	}

	out.Reset()
	if _, err := Run(strings.NewReader("1\n\n\n\ny\n"), &out, tui.NewStyles(false), dir, jpegOnly); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Rename") {
		t.Error("keep-mode summary should show the rename setting")
	}
}

func TestRunRejectsUnsupportedFormat(t *testing.T) {
	// mode 1, pick HEIC on a build with no format support
	_, err := runWizard(t, "1\n2\n", noFormats)
	if err == nil || !strings.Contains(err.Error(), "HEIC") {
		t.Fatalf("err = %v, want HEIC capability error", err)
	}
}
