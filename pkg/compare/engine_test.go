package compare

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sdejongh/fwdiffer/pkg/classify"
	"github.com/sdejongh/fwdiffer/pkg/fuzzy"
	"github.com/sdejongh/fwdiffer/pkg/index"
	"github.com/sdejongh/fwdiffer/pkg/models"
)

// fakeClassifier maps paths to categories or errors
type fakeClassifier struct {
	categories map[string]models.FileCategory
	errs       map[string]error
	calls      atomic.Int32
}

func (c *fakeClassifier) Classify(path string) (models.FileCategory, error) {
	c.calls.Add(1)
	if err, ok := c.errs[path]; ok {
		return models.CategoryOther, err
	}
	return c.categories[path], nil
}

// fakeHasher returns a digest whose SHA256 is the path itself
type fakeHasher struct {
	errs  map[string]error
	calls atomic.Int32
}

func (h *fakeHasher) Fingerprint(ctx context.Context, path string) (fuzzy.Digest, error) {
	h.calls.Add(1)
	if err, ok := h.errs[path]; ok {
		return fuzzy.Digest{}, err
	}
	return fuzzy.Digest{SHA256: path, Fuzzy: "3:" + path + ":x"}, nil
}

// scoreTable scores a pair by the name shared by both paths
func scoreTable(scores map[string]int) ScoreFunc {
	return func(a, b fuzzy.Digest) (int, error) {
		name := filepath.Base(a.SHA256)
		s, ok := scores[name]
		if !ok {
			return 0, fmt.Errorf("no score for %s", name)
		}
		return s, nil
	}
}

// fixture holds two in-memory indexes and the fakes behind them
type fixture struct {
	old, new   *models.FileIndex
	classifier *fakeClassifier
	hasher     *fakeHasher
}

func newFixture() *fixture {
	return &fixture{
		old:        models.NewFileIndex("/old", models.KeyBasename),
		new:        models.NewFileIndex("/new", models.KeyBasename),
		classifier: &fakeClassifier{categories: map[string]models.FileCategory{}, errs: map[string]error{}},
		hasher:     &fakeHasher{errs: map[string]error{}},
	}
}

func (f *fixture) addOld(name string, cat models.FileCategory) {
	f.old.Entries[name] = "/old/" + name
	f.classifier.categories["/old/"+name] = cat
}

func (f *fixture) addNew(name string, cat models.FileCategory) {
	f.new.Entries[name] = "/new/" + name
	f.classifier.categories["/new/"+name] = cat
}

func (f *fixture) addBoth(name string, cat models.FileCategory) {
	f.addOld(name, cat)
	f.addNew(name, cat)
}

func (f *fixture) engine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(f.classifier, f.hasher, opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func modifiedNames(r *models.DiffResult) []string {
	names := []string{}
	for _, m := range r.Modified {
		names = append(names, m.Name)
	}
	return names
}

func TestDiff_Scenario(t *testing.T) {
	f := newFixture()
	f.addBoth("a.ko", models.CategoryKernelModule)
	f.addBoth("b.elf", models.CategoryExecutable)
	f.addOld("c.txt", models.CategoryOther)
	f.addNew("d.txt", models.CategoryOther)

	opts := DefaultOptions()
	opts.Score = scoreTable(map[string]int{"a.ko": 5, "b.elf": 100})

	result, err := f.engine(t, opts).Diff(context.Background(), f.old, f.new)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	want := []models.ModifiedEntry{{
		Name:       "a.ko",
		OldPath:    "/old/a.ko",
		NewPath:    "/new/a.ko",
		Similarity: 5,
		Category:   models.CategoryKernelModule,
	}}
	if diff := cmp.Diff(want, result.Modified); diff != "" {
		t.Errorf("Modified mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d.txt"}, result.Added); diff != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c.txt"}, result.Removed); diff != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", diff)
	}
	if result.Common != 2 || result.Evaluated != 2 {
		t.Errorf("Common = %d, Evaluated = %d, want 2 and 2", result.Common, result.Evaluated)
	}
	if result.ID == "" {
		t.Error("result should carry a run ID")
	}
	if result.OldRoot != "/old" || result.NewRoot != "/new" {
		t.Errorf("roots = %s, %s", result.OldRoot, result.NewRoot)
	}
	if result.Status() != models.StatusSuccess {
		t.Errorf("Status() = %s, want success", result.Status())
	}
}

func TestDiff_Threshold(t *testing.T) {
	scores := map[string]int{"zero": 0, "low": 5, "edge": 30, "high": 31, "near": 99, "same": 100}

	tests := []struct {
		threshold int
		want      []string
	}{
		{0, []string{"zero"}},
		{30, []string{"edge", "low", "zero"}},
		{99, []string{"edge", "high", "low", "near", "zero"}},
		{100, []string{"edge", "high", "low", "near", "same", "zero"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("threshold=%d", tt.threshold), func(t *testing.T) {
			f := newFixture()
			for name := range scores {
				f.addBoth(name, models.CategoryExecutable)
			}

			result, err := f.engine(t, Options{
				Threshold:         tt.threshold,
				AbortOnFirstError: true,
				Score:             scoreTable(scores),
			}).Diff(context.Background(), f.old, f.new)
			if err != nil {
				t.Fatalf("Diff() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, modifiedNames(result)); diff != "" {
				t.Errorf("modified mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiff_NonBinaryAndMismatchedCategories(t *testing.T) {
	f := newFixture()
	f.addBoth("rcS", models.CategoryOther)
	f.addOld("switched", models.CategoryExecutable)
	f.addNew("switched", models.CategoryKernelModule)
	f.addOld("became-script", models.CategoryExecutable)
	f.addNew("became-script", models.CategoryOther)

	opts := DefaultOptions()
	opts.Score = scoreTable(map[string]int{})

	var debugged []string
	opts.OnDebug = func(d PairDebug) { debugged = append(debugged, d.Name) }

	result, err := f.engine(t, opts).Diff(context.Background(), f.old, f.new)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	if len(result.Modified) != 0 || len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Errorf("result = %+v, want nothing reported", result)
	}
	if f.hasher.calls.Load() != 0 {
		t.Errorf("hasher called %d times, want 0", f.hasher.calls.Load())
	}
	if len(debugged) != 0 {
		t.Errorf("debug sink received %v, want nothing", debugged)
	}
	if result.Evaluated != 0 {
		t.Errorf("Evaluated = %d, want 0", result.Evaluated)
	}
}

func TestDiff_EmptyOldTree(t *testing.T) {
	f := newFixture()
	f.addNew("busybox", models.CategoryExecutable)
	f.addNew("wifi.ko", models.CategoryKernelModule)
	f.addNew("rcS", models.CategoryOther)

	result, err := f.engine(t, DefaultOptions()).Diff(context.Background(), f.old, f.new)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	if diff := cmp.Diff([]string{"busybox", "rcS", "wifi.ko"}, result.Added); diff != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", diff)
	}
	if len(result.Removed) != 0 || len(result.Modified) != 0 {
		t.Errorf("Removed = %v, Modified = %v, want both empty", result.Removed, result.Modified)
	}
	if f.classifier.calls.Load() != 0 {
		t.Errorf("classifier called %d times, want 0", f.classifier.calls.Load())
	}
}

func TestDiff_ProgressAndDebug(t *testing.T) {
	f := newFixture()
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	scores := map[string]int{}
	for i, n := range names {
		cat := models.CategoryExecutable
		if i%2 == 1 {
			cat = models.CategoryOther
		}
		f.addBoth(n, cat)
		scores[n] = 100
	}
	f.addNew("only-new", models.CategoryExecutable)

	var mu sync.Mutex
	inCallback := false
	var progress []Progress
	var debugged []PairDebug

	enter := func() {
		mu.Lock()
		if inCallback {
			t.Error("callbacks overlapped")
		}
		inCallback = true
		mu.Unlock()
	}
	leave := func() {
		mu.Lock()
		inCallback = false
		mu.Unlock()
	}

	opts := DefaultOptions()
	opts.Workers = 4
	opts.Score = scoreTable(scores)
	opts.OnProgress = func(p Progress) {
		enter()
		defer leave()
		progress = append(progress, p)
	}
	opts.OnDebug = func(d PairDebug) {
		enter()
		defer leave()
		debugged = append(debugged, d)
	}

	result, err := f.engine(t, opts).Diff(context.Background(), f.old, f.new)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	// one event per common pair, counted over common names only
	if len(progress) != len(names) {
		t.Fatalf("progress events = %d, want %d", len(progress), len(names))
	}
	for i, p := range progress {
		if p.Processed != i+1 || p.Total != len(names) {
			t.Errorf("progress[%d] = %d/%d, want %d/%d", i, p.Processed, p.Total, i+1, len(names))
		}
	}

	// every scored pair reaches the sink even though none is reported
	if len(debugged) != 4 {
		t.Errorf("debug records = %d, want 4", len(debugged))
	}
	for _, d := range debugged {
		if d.Similarity != 100 || d.OldDigest.SHA256 != d.OldPath {
			t.Errorf("debug record %+v incomplete", d)
		}
	}
	if len(result.Modified) != 0 {
		t.Errorf("Modified = %v, want none", result.Modified)
	}
}

func TestDiff_DeterministicOrder(t *testing.T) {
	f := newFixture()
	scores := map[string]int{}
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("bin%02d", 49-i)
		f.addBoth(name, models.CategoryExecutable)
		scores[name] = 0
	}

	opts := DefaultOptions()
	opts.Workers = 8
	opts.Score = scoreTable(scores)
	engine := f.engine(t, opts)

	first, err := engine.Diff(context.Background(), f.old, f.new)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := engine.Diff(context.Background(), f.old, f.new)
		if err != nil {
			t.Fatalf("Diff() error = %v", err)
		}
		if diff := cmp.Diff(first.Modified, again.Modified); diff != "" {
			t.Fatalf("run %d order differs (-first +again):\n%s", run, diff)
		}
	}
	if first.Modified[0].Name != "bin00" || first.Modified[49].Name != "bin49" {
		t.Errorf("Modified not sorted by name: first=%s last=%s", first.Modified[0].Name, first.Modified[49].Name)
	}
}

func TestDiff_FailFast(t *testing.T) {
	f := newFixture()
	scores := map[string]int{}
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("bin%02d", i)
		f.addBoth(name, models.CategoryExecutable)
		scores[name] = 10
	}
	classifyErr := &models.UnreadableFileError{Path: "/new/bin05", Err: os.ErrPermission}
	f.classifier.errs["/new/bin05"] = classifyErr

	opts := DefaultOptions()
	opts.Workers = 1
	opts.Score = scoreTable(scores)

	result, err := f.engine(t, opts).Diff(context.Background(), f.old, f.new)
	if err == nil {
		t.Fatal("Diff() should fail when a file cannot be classified")
	}
	if result != nil {
		t.Error("no partial result should be returned")
	}
	var ue *models.UnreadableFileError
	if !errors.As(err, &ue) || ue.Path != "/new/bin05" {
		t.Errorf("Diff() error = %v, want UnreadableFileError for /new/bin05", err)
	}
	// pairs after the failure are not evaluated
	if calls := f.hasher.calls.Load(); calls >= 40 {
		t.Errorf("hasher called %d times, want fewer than 40", calls)
	}
}

func TestDiff_KeepGoing(t *testing.T) {
	f := newFixture()
	f.addBoth("good", models.CategoryExecutable)
	f.addBoth("unreadable", models.CategoryExecutable)
	f.addBoth("unhashable", models.CategoryKernelModule)

	f.classifier.errs["/old/unreadable"] = &models.UnreadableFileError{Path: "/old/unreadable", Err: os.ErrPermission}
	f.hasher.errs["/new/unhashable"] = &models.HashError{Path: "/new/unhashable", Err: os.ErrPermission}

	opts := DefaultOptions()
	opts.AbortOnFirstError = false
	opts.Score = scoreTable(map[string]int{"good": 1})

	var progress int
	opts.OnProgress = func(Progress) { progress++ }

	result, err := f.engine(t, opts).Diff(context.Background(), f.old, f.new)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	if diff := cmp.Diff([]string{"good"}, modifiedNames(result)); diff != "" {
		t.Errorf("modified mismatch (-want +got):\n%s", diff)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("Skipped = %d, want 2", len(result.Skipped))
	}
	if result.Skipped[0].Name != "unhashable" || result.Skipped[1].Name != "unreadable" {
		t.Errorf("Skipped = %v, want sorted [unhashable unreadable]", result.Skipped)
	}
	var he *models.HashError
	if !errors.As(result.Skipped[0].Err, &he) {
		t.Errorf("Skipped[0].Err = %v, want HashError", result.Skipped[0].Err)
	}
	if result.Status() != models.StatusPartial {
		t.Errorf("Status() = %s, want partial", result.Status())
	}
	if progress != 3 {
		t.Errorf("progress events = %d, want 3", progress)
	}
}

func TestDiff_CancelledContext(t *testing.T) {
	f := newFixture()
	f.addBoth("a", models.CategoryExecutable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.AbortOnFirstError = false
	_, err := f.engine(t, opts).Diff(ctx, f.old, f.new)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Diff() error = %v, want context.Canceled", err)
	}
}

func TestNewEngine_InvalidThreshold(t *testing.T) {
	for _, threshold := range []int{-1, 101} {
		_, err := NewEngine(&fakeClassifier{}, &fakeHasher{}, Options{Threshold: threshold})
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("NewEngine(threshold=%d) error = %v, want ValidationError", threshold, err)
		}
	}
}

// ============== Filesystem end-to-end ==============

func elfImage(seed int64, size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(data)
	copy(data, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x02, 0x00})
	return data
}

func koImage(seed int64, size int) []byte {
	data := elfImage(seed, size)
	data[16] = 0x01
	return data
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(full, content, 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func TestDiff_Filesystem(t *testing.T) {
	oldRoot, newRoot := t.TempDir(), t.TempDir()
	elf := elfImage(7, 128*1024)

	writeTree(t, oldRoot, map[string][]byte{
		"lib/modules/a.ko": koImage(1, 64*1024),
		"bin/b.elf":        elf,
		"etc/c.txt":        []byte("old config"),
		"etc/shared.conf":  []byte("same text"),
	})
	writeTree(t, newRoot, map[string][]byte{
		"lib/modules/a.ko": koImage(2, 64*1024),
		"usr/bin/b.elf":    elf,
		"etc/d.txt":        []byte("new config"),
		"etc/shared.conf":  []byte("changed text but not a binary"),
	})

	ctx := context.Background()
	oldIdx, err := index.Build(ctx, oldRoot, index.Options{})
	if err != nil {
		t.Fatalf("index.Build(old) error = %v", err)
	}
	newIdx, err := index.Build(ctx, newRoot, index.Options{})
	if err != nil {
		t.Fatalf("index.Build(new) error = %v", err)
	}

	engine, err := NewEngine(classify.New(nil), fuzzy.NewHasher(0, 0), DefaultOptions())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	result, err := engine.Diff(ctx, oldIdx, newIdx)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	if diff := cmp.Diff([]string{"a.ko"}, modifiedNames(result)); diff != "" {
		t.Errorf("modified mismatch (-want +got):\n%s", diff)
	}
	if result.Modified[0].Category != models.CategoryKernelModule {
		t.Errorf("a.ko category = %s, want Kernel Module", result.Modified[0].Category)
	}
	if result.Modified[0].Similarity > DefaultThreshold {
		t.Errorf("a.ko similarity = %d, want <= %d", result.Modified[0].Similarity, DefaultThreshold)
	}
	if diff := cmp.Diff([]string{"d.txt"}, result.Added); diff != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c.txt"}, result.Removed); diff != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff_SmallBinaries(t *testing.T) {
	oldRoot, newRoot := t.TempDir(), t.TempDir()

	stub := elfImage(4, 4000)
	stubPatched := make([]byte, len(stub))
	copy(stubPatched, stub)
	stubPatched[2000] ^= 0xff

	exact := koImage(3, 4096)

	writeTree(t, oldRoot, map[string][]byte{
		"lib/modules/exact.ko": exact,
		"bin/stub":             stub,
		"bin/changed":          elfImage(5, 4096),
	})
	writeTree(t, newRoot, map[string][]byte{
		"lib/modules/exact.ko": exact,
		"bin/stub":             stubPatched,
		"bin/changed":          elfImage(6, 4096),
	})

	ctx := context.Background()
	oldIdx, err := index.Build(ctx, oldRoot, index.Options{})
	if err != nil {
		t.Fatalf("index.Build(old) error = %v", err)
	}
	newIdx, err := index.Build(ctx, newRoot, index.Options{})
	if err != nil {
		t.Fatalf("index.Build(new) error = %v", err)
	}

	scores := map[string]int{}
	opts := DefaultOptions()
	opts.OnDebug = func(p PairDebug) { scores[p.Name] = p.Similarity }

	engine, err := NewEngine(classify.New(nil), fuzzy.NewHasher(0, 0), opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	result, err := engine.Diff(ctx, oldIdx, newIdx)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	if diff := cmp.Diff([]string{"changed"}, modifiedNames(result)); diff != "" {
		t.Errorf("modified mismatch (-want +got):\n%s", diff)
	}
	if result.Evaluated != 3 {
		t.Errorf("Evaluated = %d, want 3", result.Evaluated)
	}
	if scores["exact.ko"] != 100 {
		t.Errorf("exact.ko similarity = %d, want 100", scores["exact.ko"])
	}
	if scores["stub"] == 0 {
		t.Error("one-byte patch of a small binary scored 0")
	}
}
