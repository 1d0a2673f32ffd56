package process

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/composition"
	"github.com/okelo/stele/internal/filestore"
	"github.com/okelo/stele/internal/reduction"
	logpkg "github.com/okelo/stele/pkg/log"
)

// TruncateOptions tunes history truncation.
type TruncateOptions struct {
	// Workers bounds concurrent deletions. Zero means 4.
	Workers int
	// Budget is a soft wall-clock limit on the deletion phase. When it
	// runs out, remaining deletions are left for a later run; the store
	// stays consistent because the keep set was already durable. Zero
	// means unlimited.
	Budget time.Duration
}

// TruncateResult reports what a truncation run accomplished.
type TruncateResult struct {
	// RunID correlates the run's log lines.
	RunID           string
	Deleted         int
	Remaining       int
	BudgetExhausted bool
}

// componentGate synchronizes component writes with truncation's deletion
// phase. A writer waits out an in-flight delete of its hash, so its write
// always lands after the delete; a deleter skips hashes that were written
// after the truncation plan was computed, since a live record may
// reference them again.
type componentGate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	deleting map[string]struct{}
	rescued  map[string]struct{} // nil outside a truncation run
}

func newComponentGate() *componentGate {
	g := &componentGate{deleting: map[string]struct{}{}}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *componentGate) beforeWrite(hash string) {
	g.mu.Lock()
	for {
		if _, busy := g.deleting[hash]; !busy {
			break
		}
		g.cond.Wait()
	}
	if g.rescued != nil {
		g.rescued[hash] = struct{}{}
	}
	g.mu.Unlock()
}

// beginDelete claims the hash for deletion. False means a write rescued
// the hash since the plan; the file must stay.
func (g *componentGate) beginDelete(hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rescued[hash]; ok {
		return false
	}
	g.deleting[hash] = struct{}{}
	return true
}

func (g *componentGate) endDelete(hash string) {
	g.mu.Lock()
	delete(g.deleting, hash)
	g.cond.Broadcast()
	g.mu.Unlock()
}

func (g *componentGate) beginRun() {
	g.mu.Lock()
	g.rescued = map[string]struct{}{}
	g.mu.Unlock()
}

func (g *componentGate) endRun() {
	g.mu.Lock()
	g.rescued = nil
	g.mu.Unlock()
}

// guardedStore routes component writes through the truncation gate. Every
// other operation passes through unchanged.
type guardedStore struct {
	filestore.Store
	gate *componentGate
}

func (s guardedStore) Set(p filestore.Path, content []byte) error {
	if len(p) == 2 && p[0] == component.DirName {
		s.gate.beforeWrite(p[1])
	}
	return s.Store.Set(p, content)
}

// TruncateHistory forces a reduction at the current head, then deletes
// every store file not needed to restore from that reduction: older log
// segments, older reductions, and components unreachable from the new
// checkpoint. The reachability phase runs under the process lock; the
// deletion phase runs concurrently outside it, with the component gate
// keeping deletes ordered against appends that land meanwhile.
func (lp *LiveProcess) TruncateHistory(ctx context.Context, opts TruncateOptions) (TruncateResult, error) {
	lp.truncMu.Lock()
	defer lp.truncMu.Unlock()

	runID := lp.ids.Next().String()
	lp.gate.beginRun()
	defer lp.gate.endRun()

	doomed, err := lp.truncationPlan()
	if err != nil {
		return TruncateResult{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	var deadline time.Time
	if opts.Budget > 0 {
		deadline = time.Now().Add(opts.Budget)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var deleted, failed atomic.Int64
	issued := 0
	for _, p := range doomed {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		p := p
		issued++
		g.Go(func() error {
			if p[0] == component.DirName {
				if !lp.gate.beginDelete(p[1]) {
					return nil
				}
				defer lp.gate.endDelete(p[1])
			}
			if err := lp.files.Delete(p); err != nil {
				// An undeletable file is left for a later run, like a
				// budget overrun; it must not abort the pass.
				lp.logger.Warn("truncation delete failed",
					logpkg.Str("run", runID), logpkg.Str("path", p.String()), logpkg.Err(err))
				failed.Add(1)
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
	res := TruncateResult{
		RunID:           runID,
		Deleted:         int(deleted.Load()),
		Remaining:       len(doomed) - int(deleted.Load()),
		BudgetExhausted: issued < len(doomed) || failed.Load() > 0,
	}
	lp.logger.Info("history truncated",
		logpkg.Str("run", runID),
		logpkg.Int("deleted", res.Deleted),
		logpkg.Int("remaining", res.Remaining),
		logpkg.Bool("budgetExhausted", res.BudgetExhausted))
	return res, nil
}

// truncationPlan checkpoints the current state and returns the files no
// restore will ever need again, all under the process lock.
func (lp *LiveProcess) truncationPlan() ([]filestore.Path, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	rec, err := lp.storeReductionLocked()
	if err != nil {
		return nil, err
	}

	reachable, err := lp.components.ReachableHashes([]component.Ref{
		component.TreeRef(rec.AppConfigHashBase16),
		component.BlobRef(rec.AppStateHashBase16),
	})
	if err != nil {
		return nil, err
	}

	keep := map[string]struct{}{
		filestore.Path{composition.DirName, lp.log.HeadSegment()}.String():           {},
		filestore.Path{reduction.DirName, rec.ReducedCompositionHashBase16}.String(): {},
	}
	for hash := range reachable {
		keep[filestore.Path{component.DirName, hash}.String()] = struct{}{}
	}

	var doomed []filestore.Path
	for _, dir := range []string{composition.DirName, reduction.DirName, component.DirName} {
		paths, err := lp.files.List(filestore.Path{dir})
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if _, ok := keep[p.String()]; !ok {
				doomed = append(doomed, p)
			}
		}
	}
	return doomed, nil
}
