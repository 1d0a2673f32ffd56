package composition

import (
	"errors"
	"fmt"

	"github.com/okelo/stele/internal/component"
)

// Event is the sealed set of state-affecting operations a composition
// record can carry. Consumers switch exhaustively over the concrete types;
// adding a variant is a compile-visible change at every switch that uses a
// default-reject arm.
type Event interface {
	isEvent()
}

// UpdateStateForEvent forwards one domain event to the running application.
type UpdateStateForEvent struct {
	Value component.ValueRef
}

func (UpdateStateForEvent) isEvent() {}

// SetState replaces the application's entire serialized state.
type SetState struct {
	Value component.ValueRef
}

func (SetState) isEvent() {}

// DeployConfigAndInitState cold-deploys a new application bundle and
// initializes state from its init handler.
type DeployConfigAndInitState struct {
	ConfigHashBase16 string
}

func (DeployConfigAndInitState) isEvent() {}

// DeployConfigAndMigrateState deploys a new bundle and runs its migration
// handler against the prior serialized state.
type DeployConfigAndMigrateState struct {
	ConfigHashBase16 string
}

func (DeployConfigAndMigrateState) isEvent() {}

// RevertProcessTo is a validating marker: at replay it must name the hash
// of the immediately preceding record. It performs no rollback.
type RevertProcessTo struct {
	HashBase16 string
}

func (RevertProcessTo) isEvent() {}

// valueEventJSON is the wire shape of the two value-carrying variants.
type valueEventJSON struct {
	Value component.ValueRef `json:"value"`
}

// refEventJSON is the wire shape of the three hash-referencing variants.
type refEventJSON struct {
	HashBase16 string `json:"hashBase16"`
}

// eventEnvelope is the tagged wire form: exactly one variant key set.
type eventEnvelope struct {
	Update      *valueEventJSON `json:"updateStateForEvent,omitempty"`
	SetState    *valueEventJSON `json:"setState,omitempty"`
	DeployInit  *refEventJSON   `json:"deployConfigAndInitState,omitempty"`
	DeployMigr  *refEventJSON   `json:"deployConfigAndMigrateState,omitempty"`
	RevertTo    *refEventJSON   `json:"revertProcessTo,omitempty"`
}

func envelopeOf(ev Event) (eventEnvelope, error) {
	var env eventEnvelope
	switch v := ev.(type) {
	case UpdateStateForEvent:
		if err := v.Value.Validate(); err != nil {
			return env, fmt.Errorf("updateStateForEvent: %w", err)
		}
		env.Update = &valueEventJSON{Value: v.Value}
	case SetState:
		if err := v.Value.Validate(); err != nil {
			return env, fmt.Errorf("setState: %w", err)
		}
		env.SetState = &valueEventJSON{Value: v.Value}
	case DeployConfigAndInitState:
		if !component.ValidHashBase16(v.ConfigHashBase16) {
			return env, fmt.Errorf("deployConfigAndInitState: malformed config hash %q", v.ConfigHashBase16)
		}
		env.DeployInit = &refEventJSON{HashBase16: v.ConfigHashBase16}
	case DeployConfigAndMigrateState:
		if !component.ValidHashBase16(v.ConfigHashBase16) {
			return env, fmt.Errorf("deployConfigAndMigrateState: malformed config hash %q", v.ConfigHashBase16)
		}
		env.DeployMigr = &refEventJSON{HashBase16: v.ConfigHashBase16}
	case RevertProcessTo:
		if !component.ValidHashBase16(v.HashBase16) {
			return env, fmt.Errorf("revertProcessTo: malformed hash %q", v.HashBase16)
		}
		env.RevertTo = &refEventJSON{HashBase16: v.HashBase16}
	default:
		return env, fmt.Errorf("unknown event type %T", ev)
	}
	return env, nil
}

func (env eventEnvelope) event() (Event, error) {
	var out Event
	set := 0
	if env.Update != nil {
		out = UpdateStateForEvent{Value: env.Update.Value}
		set++
	}
	if env.SetState != nil {
		out = SetState{Value: env.SetState.Value}
		set++
	}
	if env.DeployInit != nil {
		out = DeployConfigAndInitState{ConfigHashBase16: env.DeployInit.HashBase16}
		set++
	}
	if env.DeployMigr != nil {
		out = DeployConfigAndMigrateState{ConfigHashBase16: env.DeployMigr.HashBase16}
		set++
	}
	if env.RevertTo != nil {
		out = RevertProcessTo{HashBase16: env.RevertTo.HashBase16}
		set++
	}
	if set != 1 {
		return nil, errors.New("composition event must carry exactly one variant")
	}
	return out, nil
}

// EventName returns the wire tag of an event, for diagnostics and filtering.
func EventName(ev Event) string {
	switch ev.(type) {
	case UpdateStateForEvent:
		return "updateStateForEvent"
	case SetState:
		return "setState"
	case DeployConfigAndInitState:
		return "deployConfigAndInitState"
	case DeployConfigAndMigrateState:
		return "deployConfigAndMigrateState"
	case RevertProcessTo:
		return "revertProcessTo"
	default:
		return "unknown"
	}
}
