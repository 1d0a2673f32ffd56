package process_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/composition"
	"github.com/okelo/stele/internal/filestore"
	"github.com/okelo/stele/internal/process"
	"github.com/okelo/stele/internal/process/processtest"
)

var testBundle = component.Tree{{Name: "counter-app", Value: component.Blob("handler")}}

func testOptions() process.Options {
	return process.Options{Engine: &processtest.Engine{}}
}

func initLive(t *testing.T, files filestore.Store) *process.LiveProcess {
	t.Helper()
	lp, err := process.Init(files, testOptions(), testBundle)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return lp
}

func newInitializedStore(t *testing.T) filestore.Store {
	t.Helper()
	files := filestore.NewMemory()
	lp := initLive(t, files)
	lp.Dispose()
	return files
}

func headOf(t *testing.T, files filestore.Store) string {
	t.Helper()
	log, err := composition.OpenLog(files)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return log.Head()
}

func mustState(t *testing.T, lp *process.LiveProcess) string {
	t.Helper()
	state, err := lp.SerializedState()
	if err != nil {
		t.Fatalf("serialized state: %v", err)
	}
	return state
}

// tamperLog replaces old with new in the segment containing it, breaking
// the hash chain without touching file structure.
func tamperLog(t *testing.T, files filestore.Store, old, new string) {
	t.Helper()
	paths, err := files.List(filestore.Path{composition.DirName})
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	for _, p := range paths {
		content, err := files.Get(p)
		if err != nil {
			t.Fatalf("read segment: %v", err)
		}
		if !bytes.Contains(content, []byte(old)) {
			continue
		}
		content = bytes.Replace(content, []byte(old), []byte(new), 1)
		if err := files.Set(p, content); err != nil {
			t.Fatalf("write segment: %v", err)
		}
		return
	}
	t.Fatalf("pattern %q not found in any segment", old)
}

func TestRestoreEmptyStoreFails(t *testing.T) {
	_, err := process.Restore(filestore.NewMemory(), testOptions())
	var corrupt *process.CorruptStoreError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptStoreError, got %v", err)
	}
}

func TestInitProcessesEvents(t *testing.T) {
	lp := initLive(t, filestore.NewMemory())
	defer lp.Dispose()

	resp, err := lp.ProcessAppEvent([]byte("e1"))
	if err != nil {
		t.Fatalf("e1: %v", err)
	}
	if resp != `{"count":1}` {
		t.Fatalf("e1 response = %q", resp)
	}
	if resp, _ = lp.ProcessAppEvent([]byte("e2")); resp != `{"count":2}` {
		t.Fatalf("e2 response = %q", resp)
	}
	if got := mustState(t, lp); got != `{"config":"counter-app","entries":["e1","e2"]}` {
		t.Fatalf("state = %s", got)
	}
}

func TestRestartReproducesState(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	for _, ev := range []string{"e1", "e2", "e3"} {
		if _, err := lp.ProcessAppEvent([]byte(ev)); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	want := mustState(t, lp)
	head := lp.Head()
	lp.Dispose()

	for i := 0; i < 2; i++ {
		restored, err := process.Restore(files, testOptions())
		if err != nil {
			t.Fatalf("restore %d: %v", i, err)
		}
		if got := mustState(t, restored); got != want {
			t.Fatalf("restore %d state = %s, want %s", i, got, want)
		}
		if restored.Head() != head {
			t.Fatalf("restore %d head = %s, want %s", i, restored.Head(), head)
		}
		restored.Dispose()
	}
}

func TestHandlerFailureLeavesLogUntouched(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	defer lp.Dispose()
	if _, err := lp.ProcessAppEvent([]byte("e1")); err != nil {
		t.Fatalf("e1: %v", err)
	}
	head := lp.Head()

	_, err := lp.ProcessAppEvent([]byte("boom"))
	var handler *process.HandlerError
	if !errors.As(err, &handler) {
		t.Fatalf("expected HandlerError, got %v", err)
	}
	if lp.Head() != head {
		t.Fatalf("failed event moved the head")
	}

	// The process stays usable for subsequent requests.
	if resp, err := lp.ProcessAppEvent([]byte("e2")); err != nil || resp != `{"count":2}` {
		t.Fatalf("e2 after failure: resp=%q err=%v", resp, err)
	}
}

func TestBrokenChainFailsRestore(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	lp.ProcessAppEvent([]byte("e1"))
	lp.ProcessAppEvent([]byte("e2"))
	lp.Dispose()

	// "ZTE=" is base64("e1"); rewriting the literal changes the record's
	// bytes, so its successor's parent hash no longer matches.
	tamperLog(t, files, "ZTE=", "ZTM=")

	_, err := process.Restore(files, testOptions())
	var corrupt *process.CorruptStoreError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptStoreError, got %v", err)
	}
	if !strings.Contains(err.Error(), "hash chain broken") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestRestoreWithoutGenesisOrReductionFails(t *testing.T) {
	files := filestore.NewMemory()
	rec := composition.Record{
		ParentHashBase16: strings.Repeat("ab", 32),
		Event:            composition.SetState{Value: component.LiteralValue([]byte("{}"))},
	}
	line, err := rec.MarshalLine()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := files.Set(filestore.Path{composition.DirName, "2026-01-01"}, append(line, '\n')); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = process.Restore(files, testOptions())
	var corrupt *process.CorruptStoreError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptStoreError, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient history") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

// failingAppendStore fails composition appends while armed, leaving every
// other operation intact.
type failingAppendStore struct {
	filestore.Store
	fail bool
}

func (s *failingAppendStore) Append(p filestore.Path, content []byte) error {
	if s.fail && len(p) == 2 && p[0] == composition.DirName {
		return errors.New("disk full")
	}
	return s.Store.Append(p, content)
}

func TestAppendFailureAfterApplyDisposesProcess(t *testing.T) {
	files := &failingAppendStore{Store: filestore.NewMemory()}
	lp := initLive(t, files)
	if _, err := lp.ProcessAppEvent([]byte("e1")); err != nil {
		t.Fatalf("e1: %v", err)
	}

	files.fail = true
	if _, err := lp.ProcessAppEvent([]byte("e2")); err == nil {
		t.Fatalf("expected append failure to surface")
	}
	files.fail = false

	// The applied-but-unrecorded mutation may be neither served nor
	// checkpointed: the process is out of service.
	if lp.State() != process.StateDisposed {
		t.Fatalf("state = %v, want disposed", lp.State())
	}
	if _, err := lp.SerializedState(); !errors.Is(err, process.ErrNotLive) {
		t.Fatalf("serialized state: expected ErrNotLive, got %v", err)
	}
	if _, err := lp.StoreReductionForCurrentState(); !errors.Is(err, process.ErrNotLive) {
		t.Fatalf("reduce: expected ErrNotLive, got %v", err)
	}

	// A restore sees only what the log recorded.
	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	defer restored.Dispose()
	if got := mustState(t, restored); got != `{"config":"counter-app","entries":["e1"]}` {
		t.Fatalf("restored state = %s", got)
	}
}

func TestRestoreResumesFromMidLogReduction(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	lp.ProcessAppEvent([]byte("e1"))
	lp.ProcessAppEvent([]byte("e2"))
	if _, err := lp.StoreReductionForCurrentState(); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	lp.ProcessAppEvent([]byte("e3"))
	lp.ProcessAppEvent([]byte("e4"))
	want := mustState(t, lp)
	head := lp.Head()
	lp.Dispose()

	// The reverse scan must stop at the checkpoint: corrupting a record
	// older than it cannot affect the restore.
	tamperLog(t, files, "ZTE=", "ZTX=")

	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore from mid-log checkpoint: %v", err)
	}
	defer restored.Dispose()
	if got := mustState(t, restored); got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
	if restored.Head() != head {
		t.Fatalf("head = %s, want %s", restored.Head(), head)
	}
}

func TestReductionShieldsOlderHistory(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	lp.ProcessAppEvent([]byte("e1"))
	lp.ProcessAppEvent([]byte("e2"))
	want := mustState(t, lp)
	rec, err := lp.StoreReductionForCurrentState()
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	lp.Dispose()

	// Corrupt a record older than the reduction: restore must never read
	// past the checkpoint.
	tamperLog(t, files, "deployConfigAndInitState", "deployConfigAndInitStatX")

	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore from checkpoint: %v", err)
	}
	if got := mustState(t, restored); got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
	restored.Dispose()

	// Without the reduction the corruption is fatal.
	if err := files.Delete(filestore.Path{"reductions", rec.ReducedCompositionHashBase16}); err != nil {
		t.Fatalf("delete reduction: %v", err)
	}
	if _, err := process.Restore(files, testOptions()); err == nil {
		t.Fatalf("expected restore failure after deleting the reduction")
	}
}

func TestMigratePreservesEntries(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	lp.ProcessAppEvent([]byte("e1"))

	v2 := component.Tree{{Name: "v2", Value: component.Blob("handler v2")}}
	if _, err := lp.DeployMigrate(v2); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	want := `{"config":"v2","entries":["e1"]}`
	if got := mustState(t, lp); got != want {
		t.Fatalf("state after migrate = %s", got)
	}
	lp.Dispose()

	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	defer restored.Dispose()
	if got := mustState(t, restored); got != want {
		t.Fatalf("restored state = %s", got)
	}
}

func TestDeployRejectsEmptyBundle(t *testing.T) {
	lp := initLive(t, filestore.NewMemory())
	defer lp.Dispose()
	head := lp.Head()

	_, err := lp.DeployInit(component.Tree{})
	var invalid *process.DeploymentValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected DeploymentValidationError, got %v", err)
	}
	if lp.Head() != head {
		t.Fatalf("rejected deployment moved the head")
	}
}

func TestSetAppState(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	want := `{"config":"counter-app","entries":["x","y"]}`
	if _, err := lp.SetAppState([]byte(want)); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if got := mustState(t, lp); got != want {
		t.Fatalf("state = %s", got)
	}
	lp.Dispose()

	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	defer restored.Dispose()
	if got := mustState(t, restored); got != want {
		t.Fatalf("restored state = %s", got)
	}
}

func TestRevertToValidatesHead(t *testing.T) {
	files := filestore.NewMemory()
	lp := initLive(t, files)
	lp.ProcessAppEvent([]byte("e1"))
	head := lp.Head()

	if _, err := lp.RevertTo(strings.Repeat("cd", 32)); err == nil {
		t.Fatalf("expected rejection of a non-head revert target")
	}
	marker, err := lp.RevertTo(head)
	if err != nil {
		t.Fatalf("revert to head: %v", err)
	}
	if lp.Head() != marker {
		t.Fatalf("head = %s, want marker %s", lp.Head(), marker)
	}
	want := mustState(t, lp)
	lp.Dispose()

	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore across marker: %v", err)
	}
	defer restored.Dispose()
	if got := mustState(t, restored); got != want {
		t.Fatalf("restored state = %s, want %s", got, want)
	}
}

func TestOperationsAfterDisposeFail(t *testing.T) {
	lp := initLive(t, filestore.NewMemory())
	lp.Dispose()
	if _, err := lp.ProcessAppEvent([]byte("e1")); !errors.Is(err, process.ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
	if _, err := lp.StoreReductionForCurrentState(); !errors.Is(err, process.ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
}
