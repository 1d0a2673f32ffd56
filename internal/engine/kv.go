package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/process"
)

// KV is a deterministic key-value application engine. Its serialized state
// is a JSON object; events set or delete keys. Identical histories always
// produce identical serialized states, since encoding/json emits object
// keys sorted.
type KV struct{}

func (KV) Instantiate(config component.Tree) (process.App, error) {
	if len(config) == 0 {
		return nil, errors.New("empty bundle")
	}
	return &kvApp{}, nil
}

type kvApp struct {
	state    map[string]json.RawMessage
	disposed bool
}

// lifecycle mirrors the envelope the process layer sends through
// ProcessEvent for init, migrate, and set-state.
type lifecycle struct {
	Init    *struct{} `json:"init"`
	Migrate *struct {
		SerializedState string `json:"serializedState"`
	} `json:"migrate"`
	SetState *struct {
		SerializedState string `json:"serializedState"`
	} `json:"setState"`
}

type kvRequest struct {
	Set *struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	} `json:"set"`
	Delete *struct {
		Key string `json:"key"`
	} `json:"delete"`
}

func errEnvelope(detail string) string {
	b, _ := json.Marshal(map[string]string{"err": detail})
	return string(b)
}

func (a *kvApp) ProcessEvent(serializedEvent string) (string, error) {
	if a.disposed {
		return "", errors.New("instance disposed")
	}

	var lc lifecycle
	if err := json.Unmarshal([]byte(serializedEvent), &lc); err == nil {
		switch {
		case lc.Init != nil:
			a.state = map[string]json.RawMessage{}
			return `{"ok":""}`, nil
		case lc.Migrate != nil:
			return a.adopt(lc.Migrate.SerializedState, "unmigratable state")
		case lc.SetState != nil:
			return a.adopt(lc.SetState.SerializedState, "rejected state")
		}
	}

	if a.state == nil {
		return "", errors.New("event before init")
	}
	var req kvRequest
	if err := json.Unmarshal([]byte(serializedEvent), &req); err != nil {
		return "", fmt.Errorf("malformed event: %w", err)
	}
	switch {
	case req.Set != nil:
		if req.Set.Key == "" {
			return "", errors.New("set requires a key")
		}
		a.state[req.Set.Key] = req.Set.Value
	case req.Delete != nil:
		delete(a.state, req.Delete.Key)
	default:
		return "", errors.New("event names no operation")
	}
	return fmt.Sprintf(`{"size":%d}`, len(a.state)), nil
}

func (a *kvApp) adopt(serialized, context string) (string, error) {
	var st map[string]json.RawMessage
	if err := json.Unmarshal([]byte(serialized), &st); err != nil {
		return errEnvelope(context + ": " + err.Error()), nil
	}
	if st == nil {
		st = map[string]json.RawMessage{}
	}
	a.state = st
	return `{"ok":""}`, nil
}

func (a *kvApp) GetSerializedState() (string, error) {
	if a.disposed {
		return "", errors.New("instance disposed")
	}
	if a.state == nil {
		return "", errors.New("no state before init")
	}
	b, err := json.Marshal(a.state)
	return string(b), err
}

func (a *kvApp) Dispose() { a.disposed = true }
