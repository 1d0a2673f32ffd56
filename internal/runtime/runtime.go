package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/composition"
	cfgpkg "github.com/okelo/stele/internal/config"
	"github.com/okelo/stele/internal/filestore"
	"github.com/okelo/stele/internal/process"
	pebblestore "github.com/okelo/stele/internal/storage/pebble"
	logpkg "github.com/okelo/stele/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Engine instantiates hosted application instances. Required.
	Engine process.Engine
	Logger logpkg.Logger
	// InitialBundle bootstraps an empty store with a first deployment.
	// Opening an empty store without it fails.
	InitialBundle component.Tree
}

// Runtime wires the store backend, the live process, and the periodic
// reduction cycle into a single-node instance.
type Runtime struct {
	files   filestore.Store
	db      *pebblestore.DB
	proc    *process.LiveProcess
	engine  process.Engine
	config  cfgpkg.Config
	logger  logpkg.Logger
	stop    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// OpenStore builds the file store backend named by cfg. The returned DB is
// non-nil only for the pebble backend and must be closed by the caller.
func OpenStore(cfg cfgpkg.Config, logger logpkg.Logger) (filestore.Store, *pebblestore.DB, error) {
	switch cfg.Backend {
	case cfgpkg.BackendMemory:
		return filestore.NewMemory(), nil, nil
	case cfgpkg.BackendFS:
		fs, err := filestore.NewFS(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	case cfgpkg.BackendPebble:
		mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
		if err != nil {
			return nil, nil, err
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       cfg.DataDir,
			Fsync:         mode,
			FsyncInterval: cfg.FsyncInterval.Std(),
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return filestore.NewPebble(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Open initializes the store backend, restores (or bootstraps) the live
// process, and starts the periodic reduction cycle.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}

	files, db, err := OpenStore(opts.Config, logger)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	procOpts := process.Options{
		Engine:      opts.Engine,
		Logger:      logger,
		InlineLimit: opts.Config.InlineLimitBytes,
	}
	empty, err := storeIsEmpty(files)
	if err != nil {
		closeDB()
		return nil, err
	}
	var proc *process.LiveProcess
	if empty {
		if opts.InitialBundle == nil {
			closeDB()
			return nil, errors.New("store is empty and no initial bundle was provided")
		}
		proc, err = process.Init(files, procOpts, opts.InitialBundle)
	} else {
		proc, err = process.Restore(files, procOpts)
	}
	if err != nil {
		closeDB()
		return nil, err
	}

	rt := &Runtime{
		files:  files,
		db:     db,
		proc:   proc,
		engine: opts.Engine,
		config: opts.Config,
		logger: logger.WithComponent("runtime"),
		stop:   make(chan struct{}),
	}
	if interval := opts.Config.ReductionInterval.Std(); interval > 0 {
		rt.wg.Add(1)
		go rt.reductionLoop(interval)
	}
	return rt, nil
}

// reductionLoop checkpoints the live state on a fixed cadence. A cycle
// that finds the process lock contended is skipped, not queued.
func (r *Runtime) reductionLoop(interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			rec, ok, err := r.proc.TryStoreReduction()
			switch {
			case err != nil && !errors.Is(err, process.ErrNotLive):
				r.logger.Warn("periodic reduction failed", logpkg.Err(err))
			case !ok:
				r.logger.Debug("periodic reduction skipped, process busy")
			case err == nil:
				r.logger.Debug("periodic reduction stored",
					logpkg.Str("position", rec.ReducedCompositionHashBase16))
			}
		}
	}
}

// Process returns the live process.
func (r *Runtime) Process() *process.LiveProcess { return r.proc }

// Files returns the underlying file store.
func (r *Runtime) Files() filestore.Store { return r.files }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Truncate checkpoints the current state and deletes store files no
// restore will need, using the configured worker count and time budget.
func (r *Runtime) Truncate(ctx context.Context) (process.TruncateResult, error) {
	return r.proc.TruncateHistory(ctx, process.TruncateOptions{
		Workers: r.config.TruncateWorkers,
		Budget:  r.config.TruncateBudget.Std(),
	})
}

// TestContinue checks whether appending the staged event would leave the
// store restorable, against a projection, without mutating anything.
func (r *Runtime) TestContinue(s process.Staged) error {
	return process.TestContinue(r.files, process.Options{
		Engine:      r.engine,
		Logger:      r.logger,
		InlineLimit: r.config.InlineLimitBytes,
	}, s)
}

// DeployInit cold-deploys a bundle, first proving against a projection
// that the store stays restorable with the deployment appended.
func (r *Runtime) DeployInit(config component.Tree) (string, error) {
	return r.deploy(config, true)
}

// DeployMigrate deploys a bundle whose migration handler adopts the
// current state, with the same test-then-commit protection.
func (r *Runtime) DeployMigrate(config component.Tree) (string, error) {
	return r.deploy(config, false)
}

func (r *Runtime) deploy(config component.Tree, init bool) (string, error) {
	if err := process.ValidateBundle(config); err != nil {
		return "", err
	}
	hash, err := component.Hash(config)
	if err != nil {
		return "", err
	}
	var ev composition.Event
	if init {
		ev = composition.DeployConfigAndInitState{ConfigHashBase16: hash}
	} else {
		ev = composition.DeployConfigAndMigrateState{ConfigHashBase16: hash}
	}
	err = r.TestContinue(process.Staged{Event: ev, Components: []component.Component{config}})
	if err != nil {
		return "", fmt.Errorf("deployment rejected by test restore: %w", err)
	}
	if init {
		return r.proc.DeployInit(config)
	}
	return r.proc.DeployMigrate(config)
}

// Close stops the reduction cycle, disposes the live process, and closes
// the backend. Idempotent.
func (r *Runtime) Close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.stop)
	r.wg.Wait()
	r.proc.Dispose()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func storeIsEmpty(files filestore.Store) (bool, error) {
	paths, err := files.List(filestore.Path{composition.DirName})
	if err != nil {
		return false, err
	}
	return len(paths) == 0, nil
}
