package process

import (
	"encoding/json"

	"github.com/okelo/stele/internal/component"
)

// App is the narrow interface a hosted application instance must satisfy.
// The execution engine behind it is an opaque external capability; the core
// never looks past these three methods.
type App interface {
	// ProcessEvent forwards one serialized event and returns the
	// application's serialized response.
	ProcessEvent(serializedEvent string) (string, error)
	// GetSerializedState returns the application's full serialized state.
	GetSerializedState() (string, error)
	// Dispose releases the instance. No calls may follow.
	Dispose()
}

// Engine instantiates application instances from deployed config bundles.
type Engine interface {
	Instantiate(config component.Tree) (App, error)
}

// Lifecycle requests (init, migrate, set-state) travel through the same
// ProcessEvent channel as domain events, wrapped in a tagged envelope. The
// application must answer them with an explicit ok/err envelope; any other
// shape is a handler failure.

type lifecycleState struct {
	SerializedState string `json:"serializedState"`
}

type lifecycleRequest struct {
	Init     *struct{}       `json:"init,omitempty"`
	Migrate  *lifecycleState `json:"migrate,omitempty"`
	SetState *lifecycleState `json:"setState,omitempty"`
}

type lifecycleResponse struct {
	Ok  *string `json:"ok,omitempty"`
	Err *string `json:"err,omitempty"`
}

func callLifecycle(app App, op string, req lifecycleRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return &HandlerError{Op: op, Detail: err.Error()}
	}
	raw, err := app.ProcessEvent(string(payload))
	if err != nil {
		return &HandlerError{Op: op, Detail: err.Error()}
	}
	var resp lifecycleResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return &HandlerError{Op: op, Detail: "response is not an ok/err envelope: " + raw}
	}
	switch {
	case resp.Err != nil:
		return &HandlerError{Op: op, Detail: *resp.Err}
	case resp.Ok != nil:
		return nil
	default:
		return &HandlerError{Op: op, Detail: "response reports neither success nor failure: " + raw}
	}
}

func callInit(app App) error {
	return callLifecycle(app, "init", lifecycleRequest{Init: &struct{}{}})
}

func callMigrate(app App, previousState string) error {
	return callLifecycle(app, "migrate", lifecycleRequest{Migrate: &lifecycleState{SerializedState: previousState}})
}

func callSetState(app App, state string) error {
	return callLifecycle(app, "set-state", lifecycleRequest{SetState: &lifecycleState{SerializedState: state}})
}
