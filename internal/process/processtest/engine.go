// Package processtest provides a deterministic in-process execution engine
// for tests: applications keep their serialized state as a small JSON
// document and treat any non-lifecycle event as an appended entry.
package processtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/process"
)

// Engine instantiates scripted test applications. A bundle containing an
// entry named "invalid" fails instantiation, which exercises engine-level
// deployment failures.
type Engine struct {
	// Instantiated counts successful Instantiate calls across the
	// engine's lifetime, including those made during restore.
	Instantiated atomic.Int64
}

// appState is the application's full serialized state.
type appState struct {
	Config  string   `json:"config"`
	Entries []string `json:"entries"`
}

// App is one scripted application instance.
type App struct {
	label    string
	state    *appState
	disposed bool
}

func (e *Engine) Instantiate(config component.Tree) (process.App, error) {
	for _, entry := range config {
		if entry.Name == "invalid" {
			return nil, errors.New("bundle marked invalid")
		}
	}
	if len(config) == 0 {
		return nil, errors.New("empty bundle")
	}
	e.Instantiated.Add(1)
	return &App{label: config[0].Name}, nil
}

type lifecycleEnvelope struct {
	Init     *struct{} `json:"init"`
	Migrate  *struct {
		SerializedState string `json:"serializedState"`
	} `json:"migrate"`
	SetState *struct {
		SerializedState string `json:"serializedState"`
	} `json:"setState"`
}

// ProcessEvent handles lifecycle envelopes and plain domain events. The
// event "boom" fails at the engine level; "reject" is answered but leaves
// the state untouched.
func (a *App) ProcessEvent(serializedEvent string) (string, error) {
	if a.disposed {
		return "", errors.New("instance disposed")
	}

	var env lifecycleEnvelope
	if err := json.Unmarshal([]byte(serializedEvent), &env); err == nil {
		switch {
		case env.Init != nil:
			a.state = &appState{Config: a.label, Entries: []string{}}
			return `{"ok":""}`, nil
		case env.Migrate != nil:
			var prev appState
			if err := json.Unmarshal([]byte(env.Migrate.SerializedState), &prev); err != nil {
				return fmt.Sprintf(`{"err":%q}`, "unmigratable state: "+err.Error()), nil
			}
			a.state = &appState{Config: a.label, Entries: prev.Entries}
			return `{"ok":""}`, nil
		case env.SetState != nil:
			var st appState
			if err := json.Unmarshal([]byte(env.SetState.SerializedState), &st); err != nil {
				return fmt.Sprintf(`{"err":%q}`, "rejected state: "+err.Error()), nil
			}
			a.state = &st
			return `{"ok":""}`, nil
		}
	}

	if a.state == nil {
		return "", errors.New("event before init")
	}
	switch serializedEvent {
	case "boom":
		return "", errors.New("scripted failure")
	case "reject":
		return `{"rejected":true}`, nil
	}
	a.state.Entries = append(a.state.Entries, serializedEvent)
	return fmt.Sprintf(`{"count":%d}`, len(a.state.Entries)), nil
}

func (a *App) GetSerializedState() (string, error) {
	if a.disposed {
		return "", errors.New("instance disposed")
	}
	if a.state == nil {
		return "", errors.New("no state before init")
	}
	b, err := json.Marshal(a.state)
	return string(b), err
}

func (a *App) Dispose() { a.disposed = true }
