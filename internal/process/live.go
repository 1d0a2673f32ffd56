package process

import (
	"errors"
	"fmt"
	"sync"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/composition"
	"github.com/okelo/stele/internal/filestore"
	"github.com/okelo/stele/internal/reduction"
	"github.com/okelo/stele/pkg/id"
	logpkg "github.com/okelo/stele/pkg/log"
)

// State is the live process lifecycle: Restoring -> Live -> Disposed.
type State int

const (
	StateRestoring State = iota
	StateLive
	StateDisposed
)

// ErrNotLive is returned by operations invoked outside the Live state.
var ErrNotLive = errors.New("process is not live")

// Options configures a LiveProcess.
type Options struct {
	// Engine instantiates hosted application instances. Required.
	Engine Engine
	// Logger defaults to a discard logger.
	Logger logpkg.Logger
	// InlineLimit bounds literal values in records; larger payloads go
	// through the component store. Zero applies the default.
	InlineLimit int
}

// LiveProcess holds the currently running hosted application and the
// stores its state derives from. The embedded mutex is the process-wide
// exclusive lock: event application, log appends, reductions, and
// truncation's reachability phase all serialize through it, so the hash
// chain can never fork.
type LiveProcess struct {
	mu    sync.Mutex
	state State

	// truncMu serializes truncation runs; gate orders truncation deletes
	// against component writes that land during the deletion phase.
	truncMu sync.Mutex
	gate    *componentGate

	files       filestore.Store
	components  *component.Store
	reductions  *reduction.Store
	log         *composition.Log
	engine      Engine
	logger      logpkg.Logger
	ids         *id.Generator
	inlineLimit int

	app           App
	appConfig     component.Tree
	appConfigHash string
}

// replayEntry is one collected record with its references eagerly resolved
// during the reverse scan, so resolution failures surface before replay
// begins.
type replayEntry struct {
	hash   string
	parent string
	event  composition.Event
	value  []byte
	config component.Tree
}

// Restore rebuilds the application's current state from the store: it
// enumerates the composition log newest-first until a reduction or genesis,
// then replays forward. On success the returned process is Live.
func Restore(files filestore.Store, opts Options) (*LiveProcess, error) {
	if opts.Engine == nil {
		return nil, errors.New("process: Options.Engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	logger = logger.WithComponent("process")

	lp := &LiveProcess{
		state:       StateRestoring,
		files:       files,
		gate:        newComponentGate(),
		engine:      opts.Engine,
		logger:      logger,
		ids:         id.NewGenerator(),
		inlineLimit: opts.InlineLimit,
	}
	lp.components = component.NewStore(guardedStore{Store: files, gate: lp.gate})
	lp.reductions = reduction.NewStore(files, lp.components)

	if err := lp.restore(); err != nil {
		lp.disposeApp()
		lp.state = StateDisposed
		return nil, err
	}

	log, err := composition.OpenLog(files)
	if err != nil {
		lp.disposeApp()
		lp.state = StateDisposed
		return nil, corruptWrap(err, "open composition log")
	}
	lp.log = log
	lp.state = StateLive
	logger.Info("process restored", logpkg.Str("head", log.Head()), logpkg.Str("config", lp.appConfigHash))
	return lp, nil
}

// Init bootstraps an empty store: it validates and stores the initial
// bundle, appends the deployment record, and restores. Restore alone fails
// on a store with no deployment history, so this is the only way a fresh
// store comes to life.
func Init(files filestore.Store, opts Options, config component.Tree) (*LiveProcess, error) {
	if err := ValidateBundle(config); err != nil {
		return nil, err
	}
	ref, err := component.NewStore(files).StoreComponent(config)
	if err != nil {
		return nil, err
	}
	log, err := composition.OpenLog(files)
	if err != nil {
		return nil, err
	}
	if _, err := log.Append(composition.DeployConfigAndInitState{ConfigHashBase16: ref.HashBase16}); err != nil {
		return nil, err
	}
	return Restore(files, opts)
}

func (lp *LiveProcess) restore() error {
	entries, base, err := lp.collectReverse()
	if err != nil {
		return err
	}

	// Into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	expectedParent := composition.GenesisParentHashBase16
	if base != nil {
		expectedParent = base.record.ReducedCompositionHashBase16
	}
	if base == nil && len(entries) == 0 {
		return corruptf("composition log is empty")
	}
	if len(entries) > 0 && entries[0].parent != expectedParent {
		if base == nil {
			return corruptf("insufficient history: earliest record %s does not descend from genesis and no reduction covers its parent %s",
				entries[0].hash, entries[0].parent)
		}
		return corruptf("record %s does not chain onto reduction position %s", entries[0].hash, expectedParent)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].parent != entries[i-1].hash {
			return corruptf("hash chain broken: record %s names parent %s, predecessor is %s",
				entries[i].hash, entries[i].parent, entries[i-1].hash)
		}
	}

	if base != nil {
		app, err := lp.engine.Instantiate(base.config)
		if err != nil {
			return &HandlerError{Op: "instantiate", Detail: err.Error()}
		}
		if err := callSetState(app, string(base.state)); err != nil {
			app.Dispose()
			return err
		}
		lp.replaceApp(app, base.config, base.record.AppConfigHashBase16)
	}

	prevHash := expectedParent
	for _, e := range entries {
		if rev, ok := e.event.(composition.RevertProcessTo); ok {
			if rev.HashBase16 != prevHash {
				return corruptf("revert marker %s names %s, immediately preceding record is %s", e.hash, rev.HashBase16, prevHash)
			}
			prevHash = e.hash
			continue
		}
		if _, err := lp.applyCompositionEvent(e.event, e.value, e.config); err != nil {
			return fmt.Errorf("replaying record %s: %w", e.hash, err)
		}
		prevHash = e.hash
	}

	if lp.app == nil {
		return corruptf("history contains no deployment")
	}
	return nil
}

// reductionBase is the checkpoint restore starts from when one is found.
type reductionBase struct {
	record reduction.Record
	config component.Tree
	state  []byte
}

// collectReverse walks the log newest-first, eagerly resolving every
// referenced component, and stops at the first record covered by a
// reduction or at genesis.
func (lp *LiveProcess) collectReverse() ([]replayEntry, *reductionBase, error) {
	var entries []replayEntry
	it := composition.EnumerateReverse(lp.files)
	for raw, ok := it.Next(); ok; raw, ok = it.Next() {
		hash := composition.HashOfLine(raw.Line)
		rec, err := composition.ParseRecordLine(raw.Line)
		if err != nil {
			return nil, nil, corruptWrap(err, "record %s in segment %s", hash, raw.Segment)
		}

		red, found, err := lp.reductions.GetReduction(hash)
		if err != nil {
			return nil, nil, corruptWrap(err, "reduction for record %s", hash)
		}
		if found {
			cfg, err := lp.components.LoadComponent(component.TreeRef(red.AppConfigHashBase16))
			if err != nil {
				return nil, nil, corruptWrap(err, "reduction %s config", hash)
			}
			state, err := lp.components.LoadBlob(red.AppStateHashBase16)
			if err != nil {
				return nil, nil, corruptWrap(err, "reduction %s state", hash)
			}
			tree, ok := cfg.(component.Tree)
			if !ok {
				return nil, nil, corruptf("reduction %s config %s is not a tree", hash, red.AppConfigHashBase16)
			}
			return entries, &reductionBase{record: red, config: tree, state: state}, nil
		}

		entry := replayEntry{hash: hash, parent: rec.ParentHashBase16, event: rec.Event}
		switch ev := rec.Event.(type) {
		case composition.UpdateStateForEvent:
			if entry.value, err = component.ResolveValue(lp.components, ev.Value); err != nil {
				return nil, nil, corruptWrap(err, "record %s event value", hash)
			}
		case composition.SetState:
			if entry.value, err = component.ResolveValue(lp.components, ev.Value); err != nil {
				return nil, nil, corruptWrap(err, "record %s state value", hash)
			}
		case composition.DeployConfigAndInitState:
			if entry.config, err = lp.loadConfigTree(ev.ConfigHashBase16); err != nil {
				return nil, nil, corruptWrap(err, "record %s deployment bundle", hash)
			}
		case composition.DeployConfigAndMigrateState:
			if entry.config, err = lp.loadConfigTree(ev.ConfigHashBase16); err != nil {
				return nil, nil, corruptWrap(err, "record %s deployment bundle", hash)
			}
		case composition.RevertProcessTo:
			// Validated positionally during replay.
		}
		entries = append(entries, entry)

		if rec.ParentHashBase16 == composition.GenesisParentHashBase16 {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, nil, corruptWrap(err, "enumerate composition log")
	}
	return entries, nil, nil
}

func (lp *LiveProcess) loadConfigTree(hashBase16 string) (component.Tree, error) {
	cfg, err := lp.components.LoadComponent(component.TreeRef(hashBase16))
	if err != nil {
		return nil, err
	}
	tree, ok := cfg.(component.Tree)
	if !ok {
		return nil, fmt.Errorf("config %s is not a tree", hashBase16)
	}
	return tree, nil
}

// applyCompositionEvent applies one event to the hosted application. Live
// operations and replay share this path, so what happens live is exactly
// what a future restore reproduces.
func (lp *LiveProcess) applyCompositionEvent(ev composition.Event, value []byte, config component.Tree) (string, error) {
	switch e := ev.(type) {
	case composition.UpdateStateForEvent:
		if lp.app == nil {
			return "", &HandlerError{Op: "event", Detail: "no application deployed"}
		}
		resp, err := lp.app.ProcessEvent(string(value))
		if err != nil {
			return "", &HandlerError{Op: "event", Detail: err.Error()}
		}
		return resp, nil

	case composition.SetState:
		if lp.app == nil {
			return "", &HandlerError{Op: "set-state", Detail: "no application deployed"}
		}
		return "", callSetState(lp.app, string(value))

	case composition.DeployConfigAndInitState:
		app, err := lp.engine.Instantiate(config)
		if err != nil {
			return "", &HandlerError{Op: "instantiate", Detail: err.Error()}
		}
		if err := callInit(app); err != nil {
			app.Dispose()
			return "", err
		}
		lp.replaceApp(app, config, e.ConfigHashBase16)
		return "", nil

	case composition.DeployConfigAndMigrateState:
		if lp.app == nil {
			return "", &HandlerError{Op: "migrate", Detail: "no prior deployment to migrate from"}
		}
		prev, err := lp.app.GetSerializedState()
		if err != nil {
			return "", &HandlerError{Op: "migrate", Detail: "reading previous state: " + err.Error()}
		}
		app, err := lp.engine.Instantiate(config)
		if err != nil {
			return "", &HandlerError{Op: "instantiate", Detail: err.Error()}
		}
		if err := callMigrate(app, prev); err != nil {
			app.Dispose()
			return "", err
		}
		// The old instance is disposed only after the new one succeeded,
		// so there is never a window without a valid live process.
		lp.replaceApp(app, config, e.ConfigHashBase16)
		return "", nil

	case composition.RevertProcessTo:
		return "", nil

	default:
		return "", fmt.Errorf("unknown composition event %T", ev)
	}
}

func (lp *LiveProcess) replaceApp(app App, config component.Tree, configHash string) {
	if lp.app != nil {
		lp.app.Dispose()
	}
	lp.app = app
	lp.appConfig = config
	lp.appConfigHash = configHash
}

func (lp *LiveProcess) disposeApp() {
	if lp.app != nil {
		lp.app.Dispose()
		lp.app = nil
	}
}

func (lp *LiveProcess) requireLive() error {
	if lp.state != StateLive {
		return ErrNotLive
	}
	return nil
}

// poisonLocked takes the process out of service after the log failed to
// record an already applied mutation. The in-memory state has diverged
// from the log, so serving it, or checkpointing it into a reduction,
// would disagree with what a restore replays.
func (lp *LiveProcess) poisonLocked(op string, err error) {
	lp.logger.Error("append failed after apply, disposing process",
		logpkg.Str("op", op), logpkg.Err(err))
	lp.disposeApp()
	lp.state = StateDisposed
}

// ProcessAppEvent forwards one domain event to the application and appends
// the corresponding record. The caller gets the response only after the
// record is durable; a handler failure leaves the log untouched. An append
// failure after a successful apply disposes the process, because the
// in-memory state then leads the log.
func (lp *LiveProcess) ProcessAppEvent(serializedEvent []byte) (string, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if err := lp.requireLive(); err != nil {
		return "", err
	}
	opID := lp.ids.Next()

	value, err := component.StoreValue(lp.components, serializedEvent, lp.inlineLimit)
	if err != nil {
		return "", err
	}
	resp, err := lp.applyCompositionEvent(composition.UpdateStateForEvent{Value: value}, serializedEvent, nil)
	if err != nil {
		lp.logger.Warn("event rejected", logpkg.Str("op", opID.String()), logpkg.Err(err))
		return "", err
	}
	hash, err := lp.log.Append(composition.UpdateStateForEvent{Value: value})
	if err != nil {
		lp.poisonLocked(opID.String(), err)
		return "", fmt.Errorf("appending event record: %w", err)
	}
	lp.logger.Debug("event applied", logpkg.Str("op", opID.String()), logpkg.Str("record", hash))
	return resp, nil
}

// SetAppState replaces the application's entire serialized state and
// appends the corresponding record.
func (lp *LiveProcess) SetAppState(state []byte) (string, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if err := lp.requireLive(); err != nil {
		return "", err
	}
	value, err := component.StoreValue(lp.components, state, lp.inlineLimit)
	if err != nil {
		return "", err
	}
	if _, err := lp.applyCompositionEvent(composition.SetState{Value: value}, state, nil); err != nil {
		return "", err
	}
	hash, err := lp.log.Append(composition.SetState{Value: value})
	if err != nil {
		lp.poisonLocked("set-state", err)
		return "", fmt.Errorf("appending set-state record: %w", err)
	}
	return hash, nil
}

// DeployInit cold-deploys a new application bundle: stores it, runs its
// init handler, and appends the record. The bundle is validated before any
// store mutation.
func (lp *LiveProcess) DeployInit(config component.Tree) (string, error) {
	return lp.deploy(config, true)
}

// DeployMigrate deploys a new bundle and runs its migration handler
// against the current serialized state.
func (lp *LiveProcess) DeployMigrate(config component.Tree) (string, error) {
	return lp.deploy(config, false)
}

func (lp *LiveProcess) deploy(config component.Tree, init bool) (string, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if err := lp.requireLive(); err != nil {
		return "", err
	}
	if err := ValidateBundle(config); err != nil {
		return "", err
	}
	ref, err := lp.components.StoreComponent(config)
	if err != nil {
		return "", err
	}
	var ev composition.Event
	if init {
		ev = composition.DeployConfigAndInitState{ConfigHashBase16: ref.HashBase16}
	} else {
		ev = composition.DeployConfigAndMigrateState{ConfigHashBase16: ref.HashBase16}
	}
	if _, err := lp.applyCompositionEvent(ev, nil, config); err != nil {
		return "", err
	}
	hash, err := lp.log.Append(ev)
	if err != nil {
		lp.poisonLocked("deploy", err)
		return "", fmt.Errorf("appending deployment record: %w", err)
	}
	lp.logger.Info("deployed application bundle",
		logpkg.Str("config", ref.HashBase16), logpkg.Str("record", hash), logpkg.Bool("init", init))
	return hash, nil
}

// ValidateBundle rejects malformed application bundles before any store
// mutation.
func ValidateBundle(config component.Tree) error {
	if len(config) == 0 {
		return &DeploymentValidationError{Detail: "empty bundle"}
	}
	return nil
}

// RevertTo appends a revert marker naming a prior record hash. It performs
// no in-memory rollback; it only constrains future replay validity, so the
// named hash must be the current head.
func (lp *LiveProcess) RevertTo(hashBase16 string) (string, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if err := lp.requireLive(); err != nil {
		return "", err
	}
	if head := lp.log.Head(); hashBase16 != head {
		return "", fmt.Errorf("revert target %s is not the current head %s; the marker would break future restores", hashBase16, head)
	}
	return lp.log.Append(composition.RevertProcessTo{HashBase16: hashBase16})
}

// StoreReductionForCurrentState checkpoints the application's current
// config and state at the current log head.
func (lp *LiveProcess) StoreReductionForCurrentState() (reduction.Record, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.storeReductionLocked()
}

// TryStoreReduction is the non-blocking variant used by the periodic
// reduction cycle: when the lock is contended the cycle is skipped rather
// than queued.
func (lp *LiveProcess) TryStoreReduction() (reduction.Record, bool, error) {
	if !lp.mu.TryLock() {
		return reduction.Record{}, false, nil
	}
	defer lp.mu.Unlock()
	rec, err := lp.storeReductionLocked()
	return rec, true, err
}

func (lp *LiveProcess) storeReductionLocked() (reduction.Record, error) {
	if err := lp.requireLive(); err != nil {
		return reduction.Record{}, err
	}
	head := lp.log.Head()
	if head == composition.GenesisParentHashBase16 {
		return reduction.Record{}, errors.New("empty history has nothing to reduce")
	}
	state, err := lp.app.GetSerializedState()
	if err != nil {
		return reduction.Record{}, &HandlerError{Op: "get-state", Detail: err.Error()}
	}
	return lp.reductions.StoreReduction(head, lp.appConfig, []byte(state))
}

// SerializedState returns the application's current serialized state.
func (lp *LiveProcess) SerializedState() (string, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if err := lp.requireLive(); err != nil {
		return "", err
	}
	state, err := lp.app.GetSerializedState()
	if err != nil {
		return "", &HandlerError{Op: "get-state", Detail: err.Error()}
	}
	return state, nil
}

// Head returns the hash of the newest composition record.
func (lp *LiveProcess) Head() string {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.log == nil {
		return composition.GenesisParentHashBase16
	}
	return lp.log.Head()
}

// ConfigHashBase16 returns the hash of the currently deployed bundle.
func (lp *LiveProcess) ConfigHashBase16() string {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.appConfigHash
}

// State returns the lifecycle state.
func (lp *LiveProcess) State() State {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.state
}

// Dispose releases the hosted application instance. Terminal.
func (lp *LiveProcess) Dispose() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.state == StateDisposed {
		return
	}
	lp.disposeApp()
	lp.state = StateDisposed
}
