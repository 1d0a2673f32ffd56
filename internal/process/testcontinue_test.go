package process_test

import (
	"testing"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/composition"
	"github.com/okelo/stele/internal/process"
)

func TestContinueAcceptsValidEvent(t *testing.T) {
	files := newInitializedStore(t)
	head := headOf(t, files)

	err := process.TestContinue(files, testOptions(), process.Staged{
		Event: composition.UpdateStateForEvent{Value: component.LiteralValue([]byte("e9"))},
	})
	if err != nil {
		t.Fatalf("test-continue: %v", err)
	}
	if got := headOf(t, files); got != head {
		t.Fatalf("test-continue moved the head: %s -> %s", head, got)
	}

	// The hypothetical event left no trace in the real store.
	restored, err := process.Restore(files, testOptions())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	defer restored.Dispose()
	if got := mustState(t, restored); got != `{"config":"counter-app","entries":[]}` {
		t.Fatalf("state = %s", got)
	}
}

func TestContinueRejectsBadDeploymentWithoutMutation(t *testing.T) {
	files := newInitializedStore(t)
	head := headOf(t, files)

	bad := component.Tree{{Name: "invalid", Value: component.Blob("x")}}
	badHash, err := component.Hash(bad)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = process.TestContinue(files, testOptions(), process.Staged{
		Event:      composition.DeployConfigAndInitState{ConfigHashBase16: badHash},
		Components: []component.Component{bad},
	})
	if err == nil {
		t.Fatalf("expected the hypothetical deployment to fail restore")
	}
	if got := headOf(t, files); got != head {
		t.Fatalf("rejected test-continue mutated the store")
	}
	if ok, err := component.NewStore(files).Exists(badHash); err != nil || ok {
		t.Fatalf("staged bundle leaked into the real store: ok=%v err=%v", ok, err)
	}
}
