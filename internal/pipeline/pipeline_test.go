package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"imgcrunch/internal/codec"
	"imgcrunch/internal/config"
	"imgcrunch/internal/planner"
)

// fakeBackend renders by prefixing the source bytes, pretending every image
// is 4000x3000. Sources whose base name is in fail return an error.
type fakeBackend struct {
	fail map[string]bool
}

func (b *fakeBackend) Name() string                  { return "fake" }
func (b *fakeBackend) Supports(f config.Format) bool { return f == config.FormatJPEG }
func (b *fakeBackend) Render(req codec.Request) (*codec.Rendered, error) {
	if b.fail[filepath.Base(req.SourcePath)] {
		return nil, errors.New("simulated codec failure")
	}
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return nil, err
	}

	const w, h = 4000, 3000
	rendered := &codec.Rendered{
		Data:           append([]byte("converted:"), data...),
		OriginalWidth:  w,
		OriginalHeight: h,
		Width:          w,
		Height:         h,
	}
	if codec.NeedsResize(w, h, req.MaxSize) {
		rendered.Width, rendered.Height = codec.FitDimensions(w, h, req.MaxSize)
		rendered.Resized = true
	}
	return rendered, nil
}

type panicBackend struct{}

func (panicBackend) Name() string                { return "panic" }
func (panicBackend) Supports(config.Format) bool { return true }
func (panicBackend) Render(codec.Request) (*codec.Rendered, error) {
	panic("decoder blew up")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestTransformWritesOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	dest := filepath.Join(dir, "out", "photo.jpg")
	writeFile(t, src, "pixels")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}

	tr := &Transformer{
		Backend: &fakeBackend{},
		Format:  config.FormatJPEG,
		Quality: 85,
		MaxSize: 3000,
	}
	res := tr.Transform(planner.Task{Source: src, Dest: dest})
	if res.Err != nil {
		t.Fatalf("transform: %v", res.Err)
	}

	if got := readFile(t, dest); got != "converted:pixels" {
		t.Fatalf("dest content %q", got)
	}
	if !res.Resized || res.Width != 3000 || res.Height != 2250 {
		t.Fatalf("resize record: resized=%v %dx%d", res.Resized, res.Width, res.Height)
	}
	if res.InputBytes != int64(len("pixels")) {
		t.Fatalf("input bytes %d", res.InputBytes)
	}
	if res.OutputBytes != int64(len("converted:pixels")) {
		t.Fatalf("output bytes %d", res.OutputBytes)
	}
}

func TestTransformFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	dest := filepath.Join(dir, "broken-out.jpg")
	writeFile(t, src, "pixels")

	tr := &Transformer{
		Backend: &fakeBackend{fail: map[string]bool{"broken.jpg": true}},
		Format:  config.FormatJPEG,
		Quality: 85,
	}
	res := tr.Transform(planner.Task{Source: src, Dest: dest})
	if res.Err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("failed transform must not leave an output file")
	}
	if got := readFile(t, src); got != "pixels" {
		t.Fatalf("source modified: %q", got)
	}
}

func TestTransformRecoversPanic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeFile(t, src, "pixels")

	tr := &Transformer{Backend: panicBackend{}, Format: config.FormatJPEG, Quality: 85}
	res := tr.Transform(planner.Task{Source: src, Dest: filepath.Join(dir, "a-out.jpg")})
	if res.Err == nil || !strings.Contains(res.Err.Error(), "codec panic") {
		t.Fatalf("panic not captured: %v", res.Err)
	}
}

func TestDispatchDrainsEverything(t *testing.T) {
	tasks := make([]planner.Task, 40)
	for i := range tasks {
		tasks[i] = planner.Task{Source: "src", Dest: "dst"}
	}

	var transformed atomic.Int64
	collected := 0
	Dispatch(context.Background(), tasks, 4,
		func(task planner.Task) Result {
			transformed.Add(1)
			if transformed.Load()%3 == 0 {
				return Result{Err: errors.New("boom")}
			}
			return Result{}
		},
		func(res Result) {
			// single collector goroutine, no locking
			collected++
		})

	if got := transformed.Load(); got != 40 {
		t.Fatalf("transformed %d of 40", got)
	}
	if collected != 40 {
		t.Fatalf("collected %d of 40", collected)
	}
}

func TestDispatchHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := make([]planner.Task, 100)
	collected := 0
	Dispatch(ctx, tasks, 2,
		func(planner.Task) Result { return Result{} },
		func(Result) { collected++ })

	if collected >= len(tasks) {
		t.Fatalf("cancelled dispatch still ran all %d tasks", collected)
	}
}

func TestMoveAsideMirrorsRelativePath(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "trips", "alps.jpg")
	writeFile(t, src, "alps")

	o := &Originals{
		InputRoot:  root,
		HoldingDir: filepath.Join(root, config.OriginalsDirName),
		Format:     config.FormatJPEG,
	}
	if err := o.MoveAside(src); err != nil {
		t.Fatalf("move aside: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source still present after move")
	}
	moved := filepath.Join(root, config.OriginalsDirName, "trips", "alps.jpg")
	if got := readFile(t, moved); got != "alps" {
		t.Fatalf("moved content %q", got)
	}
}

func TestReplaceSwapsExtension(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "photo.png")
	staged := filepath.Join(root, "staging", "photo.jpg")
	writeFile(t, src, "original")
	writeFile(t, staged, "replacement")

	o := &Originals{InputRoot: root, Format: config.FormatJPEG}
	final, err := o.Replace(src, staged)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if want := filepath.Join(root, "photo.jpg"); final != want {
		t.Fatalf("final path %s, want %s", final, want)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("original .png still present")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Fatal("staged file still present")
	}
	if got := readFile(t, final); got != "replacement" {
		t.Fatalf("final content %q", got)
	}
}

func TestRunMovesOriginals(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "aaa")
	writeFile(t, filepath.Join(root, "sub", "b.png"), "bbb")

	cfg := config.Default()
	cfg.InputDir = root
	cfg.MaxSize = 0

	registry := codec.NewRegistry(&fakeBackend{})
	outcome, err := Run(context.Background(), &cfg, registry, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.Stats.Total != 2 || outcome.Stats.Processed != 2 || outcome.Stats.Errors != 0 {
		t.Fatalf("stats: %+v", outcome.Stats)
	}
	if outcome.Stats.Moved != 2 {
		t.Fatalf("moved %d originals, want 2", outcome.Stats.Moved)
	}
	if want := filepath.Join(root, config.OutputFolderName); outcome.OutputDir != want {
		t.Fatalf("output dir %s, want %s", outcome.OutputDir, want)
	}

	if got := readFile(t, filepath.Join(root, config.OutputFolderName, "a.jpg")); got != "converted:aaa" {
		t.Fatalf("converted a.jpg: %q", got)
	}
	if got := readFile(t, filepath.Join(root, config.OutputFolderName, "sub", "b.jpg")); got != "converted:bbb" {
		t.Fatalf("converted sub/b.jpg: %q", got)
	}
	if got := readFile(t, filepath.Join(root, config.OriginalsDirName, "sub", "b.png")); got != "bbb" {
		t.Fatalf("original sub/b.png: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "a.jpg")); !os.IsNotExist(err) {
		t.Fatal("a.jpg not moved out of the input root")
	}
}

func TestRunSkipsOriginalsFolderWithoutMoving(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "aaa")
	writeFile(t, filepath.Join(root, config.OriginalsDirName, "old.jpg"), "old")

	cfg := config.Default()
	cfg.InputDir = root
	cfg.MoveOriginals = false
	cfg.MaxSize = 0

	registry := codec.NewRegistry(&fakeBackend{})
	outcome, err := Run(context.Background(), &cfg, registry, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.Stats.Total != 1 || outcome.Stats.Processed != 1 {
		t.Fatalf("stats: %+v", outcome.Stats)
	}
	if outcome.Stats.Moved != 0 {
		t.Fatalf("moved %d originals with moving disabled", outcome.Stats.Moved)
	}

	// Previously set-aside files stay put and are never re-converted.
	if got := readFile(t, filepath.Join(root, config.OriginalsDirName, "old.jpg")); got != "old" {
		t.Fatalf("set-aside file modified: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, config.OutputFolderName, config.OriginalsDirName, "old.jpg")); !os.IsNotExist(err) {
		t.Fatal("set-aside file was re-converted")
	}
	if got := readFile(t, filepath.Join(root, "a.jpg")); got != "aaa" {
		t.Fatalf("a.jpg should stay in place: %q", got)
	}
}

func TestRunReplaceModePartialFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "aaa")
	writeFile(t, filepath.Join(root, "b.jpg"), "bbb")
	writeFile(t, filepath.Join(root, "c.png"), "ccc")

	cfg := config.Default()
	cfg.InputDir = root
	cfg.Replace = true
	cfg.MoveOriginals = false
	cfg.MaxSize = 0

	registry := codec.NewRegistry(&fakeBackend{fail: map[string]bool{"b.jpg": true}})
	outcome, err := Run(context.Background(), &cfg, registry, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.Stats.Total != 3 || outcome.Stats.Processed != 2 || outcome.Stats.Errors != 1 {
		t.Fatalf("stats: %+v", outcome.Stats)
	}
	if outcome.Stats.Replaced != 2 {
		t.Fatalf("replaced %d, want 2", outcome.Stats.Replaced)
	}

	// The failed file is untouched; the rest are replaced in place.
	if got := readFile(t, filepath.Join(root, "b.jpg")); got != "bbb" {
		t.Fatalf("failed file was modified: %q", got)
	}
	if got := readFile(t, filepath.Join(root, "a.jpg")); got != "converted:aaa" {
		t.Fatalf("a.jpg: %q", got)
	}
	if got := readFile(t, filepath.Join(root, "c.jpg")); got != "converted:ccc" {
		t.Fatalf("c.jpg: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "c.png")); !os.IsNotExist(err) {
		t.Fatal("c.png should be gone after replacement")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), config.StagingDirPattern) {
			t.Fatalf("staging directory %s left behind", e.Name())
		}
	}
}

func TestRunNoImages(t *testing.T) {
	cfg := config.Default()
	cfg.InputDir = t.TempDir()

	registry := codec.NewRegistry(&fakeBackend{})
	if _, err := Run(context.Background(), &cfg, registry, nil); !errors.Is(err, ErrNoImages) {
		t.Fatalf("err = %v, want ErrNoImages", err)
	}
}

func TestRunUnsupportedFormat(t *testing.T) {
	cfg := config.Default()
	cfg.InputDir = t.TempDir()
	cfg.Format = config.FormatHEIC

	registry := codec.NewRegistry(&fakeBackend{}) // jpeg only
	_, err := Run(context.Background(), &cfg, registry, nil)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("err = %v", err)
	}
}

func TestSavingsPercent(t *testing.T) {
	s := RunStats{TotalInputBytes: 1000, TotalOutputBytes: 600}
	pct, ok := s.SavingsPercent()
	if !ok || pct != 40.0 {
		t.Fatalf("savings = %v (%v), want 40.0", pct, ok)
	}

	if _, ok := (&RunStats{TotalInputBytes: 1000}).SavingsPercent(); ok {
		t.Fatal("savings defined with zero output bytes")
	}
	if _, ok := (&RunStats{TotalOutputBytes: 600}).SavingsPercent(); ok {
		t.Fatal("savings defined with zero input bytes")
	}

	grew := RunStats{TotalInputBytes: 500, TotalOutputBytes: 700}
	if grew.SpaceSaved() != -200 {
		t.Fatalf("space saved %d, want -200", grew.SpaceSaved())
	}
}

func TestWorkerCountBounds(t *testing.T) {
	n := WorkerCount()
	if n < 1 || n > maxWorkers {
		t.Fatalf("worker count %d outside [1, %d]", n, maxWorkers)
	}
}
