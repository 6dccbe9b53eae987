// Package library owns the description catalogue and the rescan engine:
// it tracks which unit files are dirty, recomputes dependency closure
// across unit kinds on every RescanRequest, and decides which units the
// Manager should load, remove, or leave alone (§4.4).
package library

import (
	"context"
	"os"
	"sync"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/compat"
	"jigctl/internal/app/unit"
	"jigctl/internal/app/unitfile"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// Manager is the subset of manager.Manager the Library drives: load-by-kind
// dispatch, removal, and the selection/jig-gate queries compat.Check needs.
// Declared here (rather than imported) so library depends only on the
// method set it actually calls.
type Manager interface {
	LoadJig(ctx context.Context, d *unitfile.Jig) error
	LoadScenario(ctx context.Context, d *unitfile.Scenario) error
	LoadTest(ctx context.Context, d *unitfile.Test) error
	LoadInterface(ctx context.Context, d *unitfile.Interface) error
	LoadLogger(ctx context.Context, d *unitfile.Logger) error
	LoadTrigger(ctx context.Context, d *unitfile.Trigger) error
	Remove(ctx context.Context, name unit.Name) error
	IsSelected(name unit.Name) bool
	JigIsLoaded(name unit.Name) bool
}

// Library is the description catalogue + dirty-set + rescan engine (§4.4).
type Library struct {
	cfg     *config.Config
	bus     bus.EventBus
	log     logger.Logger
	manager Manager

	mu        sync.Mutex
	catalogue map[unit.Kind]map[string]unitfile.Description
	dirty     map[unit.Kind]map[string]struct{}
}

// New builds an empty Library over the manager m, wired to bus for
// Added/Updated/Removed/RescanRequest consumption and status publication.
func New(cfg *config.Config, b bus.EventBus, log logger.Logger, m Manager) *Library {
	l := &Library{
		cfg:       cfg,
		bus:       b,
		log:       log.WithComponent("LIBRARY"),
		manager:   m,
		catalogue: make(map[unit.Kind]map[string]unitfile.Description, len(unit.AllKinds)),
		dirty:     make(map[unit.Kind]map[string]struct{}, len(unit.AllKinds)),
	}

	for _, k := range unit.AllKinds {
		l.catalogue[k] = map[string]unitfile.Description{}
		l.dirty[k] = map[string]struct{}{}
	}

	return l
}

// Run subscribes to the bus and drains it until ctx is cancelled, parsing
// Added/Updated unit files, dropping Removed ones, and running a full
// rescan on every RescanRequest. Must run on its own goroutine (§5 "one
// rescan/library worker").
func (l *Library) Run(ctx context.Context) {
	ch := l.bus.Subscribe(ctx)

	for ev := range ch {
		switch ev.Kind {
		case bus.EventStatus:
			l.handleStatus(ctx, ev.Name, ev.Status)
		case bus.EventRescanRequest:
			l.rescan(ctx)
		}
	}
}

func (l *Library) handleStatus(ctx context.Context, name unit.Name, st bus.UnitStatus) {
	switch st.Kind {
	case bus.StatusAdded:
		l.loadFromPath(name, st.Path, false)
	case bus.StatusUpdated:
		l.loadFromPath(name, st.Path, true)
	case bus.StatusRemoved:
		l.remove(ctx, name)
	}
}

// loadFromPath reads and parses name's unit file and, on success, inserts
// or replaces its description; on failure it emits LoadFailed and leaves
// any prior description untouched (§4.4 update_*, §7 ParseError).
func (l *Library) loadFromPath(name unit.Name, path string, isUpdate bool) {
	desc, err := parseFile(name, path)
	if err != nil {
		l.log.Warn().Str("unit", name.String()).Err(err).Msg("failed to parse unit file")
		l.bus.Publish(bus.StatusEvent(name, bus.LoadFailed(err.Error())))

		return
	}

	l.update(name, desc, isUpdate)
}

func parseFile(name unit.Name, path string) (unitfile.Description, error) {
	f, err := os.Open(path) //nolint:gosec // path is produced by our own watcher, not user input
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only file, nothing to recover

	raw, err := unitfile.Parse(f)
	if err != nil {
		return nil, err
	}

	return unitfile.ParseDescription(name, raw)
}

// update inserts or replaces name's description, marks it dirty, and
// emits LoadStarted (new) or UpdateStarted (replacement) followed by a
// Category count event (§4.4 update_*).
func (l *Library) update(name unit.Name, desc unitfile.Description, isUpdate bool) {
	l.mu.Lock()
	l.catalogue[name.Kind][name.ID] = desc
	l.markDirtyLocked(name)
	count := len(l.catalogue[name.Kind])
	l.mu.Unlock()

	if isUpdate {
		l.bus.Publish(bus.StatusEvent(name, bus.UpdateStarted()))
	} else {
		l.bus.Publish(bus.StatusEvent(name, bus.LoadStarted()))
	}

	l.bus.Publish(bus.CategoryEvent(name.Kind, count))
}

// remove drops name's description and marks name dirty, plus the tests a
// removed Scenario listed (a removed Jig's dependents are found later by the
// rescan closure). It then emits Unloading and a Category count event, and
// removes any selected instance from the manager (§4.4 remove_*).
func (l *Library) remove(ctx context.Context, name unit.Name) {
	l.mu.Lock()

	desc, existed := l.catalogue[name.Kind][name.ID]
	delete(l.catalogue[name.Kind], name.ID)
	l.markDirtyLocked(name)

	if existed {
		l.markDependentsOfRemovalLocked(name, desc)
	}

	count := len(l.catalogue[name.Kind])

	l.mu.Unlock()

	l.bus.Publish(bus.StatusEvent(name, bus.Unloading()))
	l.bus.Publish(bus.CategoryEvent(name.Kind, count))

	if l.manager.IsSelected(name) {
		_ = l.manager.Remove(ctx, name)
	}
}

// markDependentsOfRemovalLocked marks dirty whatever the removed
// description's own edges named: a removed Jig's dependents are found by
// the ordinary closure scan (still possible since their descriptions are
// untouched), but a removed Scenario's Tests edge would otherwise be lost
// the instant its description is deleted, so it is captured here.
func (l *Library) markDependentsOfRemovalLocked(name unit.Name, desc unitfile.Description) {
	if name.Kind != unit.KindScenario {
		return
	}

	scen, ok := desc.(*unitfile.Scenario)
	if !ok {
		return
	}

	for _, t := range scen.Tests {
		l.markDirtyLocked(t)
	}
}

func (l *Library) markDirtyLocked(name unit.Name) {
	l.dirty[name.Kind][name.ID] = struct{}{}
}

// rescan runs the full §4.4 algorithm: closure, process deletions, evaluate
// every dirty name in kind order, clear dirty sets.
func (l *Library) rescan(ctx context.Context) {
	l.bus.Publish(bus.RescanStartEvent())

	l.mu.Lock()
	l.computeClosureLocked()
	byKind := l.snapshotDirtyLocked()
	l.mu.Unlock()

	l.processDeletions(ctx, byKind)

	for _, kind := range unit.AllKinds {
		for _, name := range byKind[kind] {
			l.evaluate(ctx, name)
		}
	}

	l.mu.Lock()
	for _, k := range unit.AllKinds {
		l.dirty[k] = map[string]struct{}{}
	}
	l.mu.Unlock()

	l.bus.Publish(bus.RescanFinishEvent())
}

// computeClosureLocked expands the dirty set one pass, per §4.4 step 2:
// every dirty Jig dirties every Test/Scenario that declares it, and every
// dirty Scenario dirties every Test it names. Called with l.mu held.
func (l *Library) computeClosureLocked() {
	dirtyJigs := make([]string, 0, len(l.dirty[unit.KindJig]))
	for id := range l.dirty[unit.KindJig] {
		dirtyJigs = append(dirtyJigs, id)
	}

	for _, jigID := range dirtyJigs {
		jigName := unit.Name{ID: jigID, Kind: unit.KindJig}

		for _, kind := range []unit.Kind{unit.KindScenario, unit.KindTest, unit.KindInterface, unit.KindLogger, unit.KindTrigger} {
			for id, desc := range l.catalogue[kind] {
				if declaresJig(desc, jigName) {
					l.markDirtyLocked(unit.Name{ID: id, Kind: kind})
				}
			}
		}
	}

	dirtyScenarios := make([]string, 0, len(l.dirty[unit.KindScenario]))
	for id := range l.dirty[unit.KindScenario] {
		dirtyScenarios = append(dirtyScenarios, id)
	}

	for _, scenID := range dirtyScenarios {
		scen, ok := l.catalogue[unit.KindScenario][scenID].(*unitfile.Scenario)
		if !ok {
			continue
		}

		for _, t := range scen.Tests {
			l.markDirtyLocked(t)
		}
	}
}

func declaresJig(desc unitfile.Description, jig unit.Name) bool {
	for _, j := range desc.Jigs() {
		if j == jig {
			return true
		}
	}

	return false
}

// snapshotDirtyLocked returns every dirty name grouped by kind, each group
// sorted ascending (§4.4 "processed in ascending UnitName order"). Called
// with l.mu held.
func (l *Library) snapshotDirtyLocked() map[unit.Kind][]unit.Name {
	out := make(map[unit.Kind][]unit.Name, len(unit.AllKinds))

	for _, k := range unit.AllKinds {
		names := make([]unit.Name, 0, len(l.dirty[k]))
		for id := range l.dirty[k] {
			names = append(names, unit.Name{ID: id, Kind: k})
		}

		unit.SortNames(names)
		out[k] = names
	}

	return out
}

// processDeletions drops any live instance for a dirty name whose
// description is now absent (§4.4 step 3).
func (l *Library) processDeletions(ctx context.Context, byKind map[unit.Kind][]unit.Name) {
	for _, k := range unit.AllKinds {
		for _, name := range byKind[k] {
			l.mu.Lock()
			_, present := l.catalogue[k][name.ID]
			l.mu.Unlock()

			if present {
				continue
			}

			if l.manager.IsSelected(name) {
				_ = l.manager.Remove(ctx, name)
			}
		}
	}
}

// evaluate applies §4.4 step 4 to a single dirty name: no-op if selected
// and still compatible, remove if selected and no longer compatible,
// otherwise hand it to the manager to load (which itself runs the
// compatibility check and publishes Selected/Incompatible/LoadFailed).
func (l *Library) evaluate(ctx context.Context, name unit.Name) {
	l.mu.Lock()
	desc, ok := l.catalogue[name.Kind][name.ID]
	l.mu.Unlock()

	if !ok {
		return
	}

	if l.manager.IsSelected(name) {
		if err := compat.Check(ctx, l.cfg, desc, l.manager.JigIsLoaded); err != nil {
			_ = l.manager.Remove(ctx, name)
		}

		return
	}

	l.dispatchLoad(ctx, desc)
}

func (l *Library) dispatchLoad(ctx context.Context, desc unitfile.Description) {
	switch d := desc.(type) {
	case *unitfile.Jig:
		_ = l.manager.LoadJig(ctx, d)
	case *unitfile.Scenario:
		_ = l.manager.LoadScenario(ctx, d)
	case *unitfile.Test:
		_ = l.manager.LoadTest(ctx, d)
	case *unitfile.Interface:
		_ = l.manager.LoadInterface(ctx, d)
	case *unitfile.Logger:
		_ = l.manager.LoadLogger(ctx, d)
	case *unitfile.Trigger:
		_ = l.manager.LoadTrigger(ctx, d)
	}
}

// Get returns the current description for name, if the library holds one.
func (l *Library) Get(name unit.Name) (unitfile.Description, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.catalogue[name.Kind][name.ID]

	return d, ok
}

// Count returns the number of descriptions currently catalogued for kind.
func (l *Library) Count(kind unit.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.catalogue[kind])
}

// Names lists every catalogued name of kind, ascending.
func (l *Library) Names(kind unit.Kind) []unit.Name {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]unit.Name, 0, len(l.catalogue[kind]))
	for id := range l.catalogue[kind] {
		names = append(names, unit.Name{ID: id, Kind: kind})
	}

	unit.SortNames(names)

	return names
}
