package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/okelo/stele/internal/component"
	cfgpkg "github.com/okelo/stele/internal/config"
	"github.com/okelo/stele/internal/filestore"
	"github.com/okelo/stele/internal/process/processtest"
	"github.com/okelo/stele/internal/reduction"
)

var testBundle = component.Tree{{Name: "counter-app", Value: component.Blob("handler")}}

func testConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.Backend = cfgpkg.BackendMemory
	cfg.ReductionInterval = 0
	return cfg
}

func TestOpenBootstrapsEmptyStore(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(), Engine: &processtest.Engine{}, InitialBundle: testBundle})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	resp, err := rt.Process().ProcessAppEvent([]byte("e1"))
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if resp != `{"count":1}` {
		t.Fatalf("response = %q", resp)
	}
}

func TestOpenEmptyStoreWithoutBundleFails(t *testing.T) {
	if _, err := Open(Options{Config: testConfig(), Engine: &processtest.Engine{}}); err == nil {
		t.Fatalf("expected open of empty store without bundle to fail")
	}
}

func TestReopenPebbleBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = cfgpkg.BackendPebble
	cfg.DataDir = t.TempDir()
	cfg.Fsync = "always"

	rt, err := Open(Options{Config: cfg, Engine: &processtest.Engine{}, InitialBundle: testBundle})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := rt.Process().ProcessAppEvent([]byte("e1")); err != nil {
		t.Fatalf("event: %v", err)
	}
	state, err := rt.Process().SerializedState()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt, err = Open(Options{Config: cfg, Engine: &processtest.Engine{}})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt.Close()
	got, err := rt.Process().SerializedState()
	if err != nil {
		t.Fatalf("state after reopen: %v", err)
	}
	if got != state {
		t.Fatalf("state after reopen = %s, want %s", got, state)
	}
}

func TestPeriodicReduction(t *testing.T) {
	cfg := testConfig()
	cfg.ReductionInterval = cfgpkg.Duration(10 * time.Millisecond)
	rt, err := Open(Options{Config: cfg, Engine: &processtest.Engine{}, InitialBundle: testBundle})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Process().ProcessAppEvent([]byte("e1")); err != nil {
		t.Fatalf("event: %v", err)
	}

	// Wait for the background cycle to checkpoint the head on its own.
	head := rt.Process().Head()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := rt.Files().Get(filestore.Path{reduction.DirName, head}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no reduction at head before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeployTestsBeforeCommitting(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(), Engine: &processtest.Engine{}, InitialBundle: testBundle})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	head := rt.Process().Head()

	// A bundle the engine refuses to instantiate fails the test restore
	// and must leave the store untouched.
	bad := component.Tree{{Name: "invalid", Value: component.Blob("x")}}
	if _, err := rt.DeployMigrate(bad); err == nil {
		t.Fatalf("expected rejected deployment")
	}
	if rt.Process().Head() != head {
		t.Fatalf("rejected deployment moved the head")
	}

	v2 := component.Tree{{Name: "v2", Value: component.Blob("handler v2")}}
	if _, err := rt.DeployMigrate(v2); err != nil {
		t.Fatalf("deploy v2: %v", err)
	}
	state, err := rt.Process().SerializedState()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != `{"config":"v2","entries":[]}` {
		t.Fatalf("state = %s", state)
	}
}

func TestTruncateUsesConfiguredBudget(t *testing.T) {
	cfg := testConfig()
	cfg.InlineLimitBytes = 1
	rt, err := Open(Options{Config: cfg, Engine: &processtest.Engine{}, InitialBundle: testBundle})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	for _, ev := range []string{"e1", "e2", "e3"} {
		if _, err := rt.Process().ProcessAppEvent([]byte(ev)); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	res, err := rt.Truncate(context.Background())
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if res.Deleted == 0 {
		t.Fatalf("expected truncation to delete unreachable files: %+v", res)
	}
}
