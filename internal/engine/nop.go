package engine

import (
	"encoding/json"
	"errors"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/process"
)

// Nop accepts any bundle and acknowledges every request without
// interpreting it. Restoring with Nop exercises chain validation and
// component resolution only. Its state is whatever set-state or migration
// last handed it, so reductions taken through Nop are meaningless: tooling
// that writes to the store must not use it.
type Nop struct{}

func (Nop) Instantiate(component.Tree) (process.App, error) {
	return &nopApp{}, nil
}

type nopApp struct {
	state    string
	disposed bool
}

func (a *nopApp) ProcessEvent(serializedEvent string) (string, error) {
	if a.disposed {
		return "", errors.New("instance disposed")
	}
	var lc lifecycle
	if err := json.Unmarshal([]byte(serializedEvent), &lc); err == nil {
		switch {
		case lc.Init != nil:
			a.state = ""
		case lc.Migrate != nil:
			a.state = lc.Migrate.SerializedState
		case lc.SetState != nil:
			a.state = lc.SetState.SerializedState
		}
		if lc.Init != nil || lc.Migrate != nil || lc.SetState != nil {
			return `{"ok":""}`, nil
		}
	}
	return "{}", nil
}

func (a *nopApp) GetSerializedState() (string, error) {
	if a.disposed {
		return "", errors.New("instance disposed")
	}
	return a.state, nil
}

func (a *nopApp) Dispose() { a.disposed = true }
