package library

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/unit"
	"jigctl/internal/app/unitfile"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// fakeManager is a minimal, synchronous stand-in for manager.Manager: real
// compatibility/activation behaviour is manager_test.go's job, this package
// only needs to observe which Load/Remove calls Library made and when.
type fakeManager struct {
	mu       sync.Mutex
	selected map[unit.Name]bool
	loaded   []unit.Name
	removed  []unit.Name
}

func newFakeManager() *fakeManager {
	return &fakeManager{selected: map[unit.Name]bool{}}
}

func (f *fakeManager) load(name unit.Name) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loaded = append(f.loaded, name)
	f.selected[name] = true

	return nil
}

func (f *fakeManager) LoadJig(_ context.Context, d *unitfile.Jig) error { return f.load(d.Name()) }
func (f *fakeManager) LoadScenario(_ context.Context, d *unitfile.Scenario) error {
	return f.load(d.Name())
}
func (f *fakeManager) LoadTest(_ context.Context, d *unitfile.Test) error { return f.load(d.Name()) }
func (f *fakeManager) LoadInterface(_ context.Context, d *unitfile.Interface) error {
	return f.load(d.Name())
}
func (f *fakeManager) LoadLogger(_ context.Context, d *unitfile.Logger) error {
	return f.load(d.Name())
}
func (f *fakeManager) LoadTrigger(_ context.Context, d *unitfile.Trigger) error {
	return f.load(d.Name())
}

func (f *fakeManager) Remove(_ context.Context, name unit.Name) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.selected, name)
	f.removed = append(f.removed, name)

	return nil
}

func (f *fakeManager) IsSelected(name unit.Name) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.selected[name]
}

func (f *fakeManager) JigIsLoaded(name unit.Name) bool { return f.IsSelected(name) }

func (f *fakeManager) setSelected(name unit.Name, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.selected[name] = v
}

func (f *fakeManager) has(names []unit.Name, name unit.Name) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}

func newTestLibrary() (*Library, *fakeManager) {
	cfg := config.DefaultConfig()
	cfg.Timeouts.Probe = time.Second

	b := bus.New(cfg, logger.NoOp())
	fm := newFakeManager()

	return New(cfg, b, logger.NoOp(), fm), fm
}

func Test_Update_Catalogues_And_MarksDirty(t *testing.T) {
	l, _ := newTestLibrary()

	name := unit.Name{ID: "rig", Kind: unit.KindJig}
	desc := &unitfile.Jig{Common: unitfile.Common{UnitName: name}, WorkDir: "."}

	l.update(name, desc, false)

	got, ok := l.Get(name)
	assert.True(t, ok)
	assert.Equal(t, desc, got)
	assert.Equal(t, 1, l.Count(unit.KindJig))
	assert.Contains(t, l.dirty[unit.KindJig], "rig")
}

func Test_Rescan_Jig_NoProbes_Loads(t *testing.T) {
	l, fm := newTestLibrary()

	name := unit.Name{ID: "rig", Kind: unit.KindJig}
	l.update(name, &unitfile.Jig{Common: unitfile.Common{UnitName: name}, WorkDir: "."}, false)

	l.rescan(context.Background())

	assert.True(t, fm.has(fm.loaded, name))
}

func Test_Rescan_NotSelected_DispatchesLoad(t *testing.T) {
	l, fm := newTestLibrary()

	name := unit.Name{ID: "smoke", Kind: unit.KindScenario}
	l.update(name, &unitfile.Scenario{Common: unitfile.Common{UnitName: name}}, false)

	l.rescan(context.Background())

	assert.True(t, fm.has(fm.loaded, name))
}

func Test_Rescan_SelectedAndCompatible_NoOp(t *testing.T) {
	l, fm := newTestLibrary()

	name := unit.Name{ID: "smoke", Kind: unit.KindScenario}
	l.update(name, &unitfile.Scenario{Common: unitfile.Common{UnitName: name}}, false)
	fm.setSelected(name, true)

	l.rescan(context.Background())

	assert.False(t, fm.has(fm.loaded, name), "already-selected compatible unit must not be reloaded")
	assert.False(t, fm.has(fm.removed, name))
}

func Test_Rescan_SelectedAndIncompatible_Removes(t *testing.T) {
	l, fm := newTestLibrary()

	jigName := unit.Name{ID: "linux", Kind: unit.KindJig}
	testName := unit.Name{ID: "mytest", Kind: unit.KindTest}

	testDesc := &unitfile.Test{
		Common:    unitfile.Common{UnitName: testName, DeclaredJigs: []unit.Name{jigName}},
		ExecStart: []string{"/bin/true"},
	}
	l.update(testName, testDesc, false)

	// Simulate the test having been selected by a prior rescan while its
	// jig was loaded, and the jig now no longer being selected.
	fm.setSelected(testName, true)

	l.rescan(context.Background())

	assert.True(t, fm.has(fm.removed, testName))
}

func Test_Rescan_JigRemoved_DependentDeselected(t *testing.T) {
	l, fm := newTestLibrary()

	jigName := unit.Name{ID: "linux", Kind: unit.KindJig}
	testName := unit.Name{ID: "mytest", Kind: unit.KindTest}

	l.update(jigName, &unitfile.Jig{Common: unitfile.Common{UnitName: jigName}, WorkDir: "."}, false)
	testDesc := &unitfile.Test{
		Common:    unitfile.Common{UnitName: testName, DeclaredJigs: []unit.Name{jigName}},
		ExecStart: []string{"/bin/true"},
	}
	l.update(testName, testDesc, false)

	fm.setSelected(jigName, true)
	fm.setSelected(testName, true)

	ctx := context.Background()
	l.remove(ctx, jigName)

	assert.True(t, fm.has(fm.removed, jigName))

	l.rescan(ctx)

	assert.True(t, fm.has(fm.removed, testName), "dependent test must be re-evaluated and deselected once its jig is gone")
}

func Test_Remove_UnknownName_DoesNotPanic(t *testing.T) {
	l, _ := newTestLibrary()
	l.remove(context.Background(), unit.Name{ID: "ghost", Kind: unit.KindTest})
}

func Test_Rescan_EmptyDirtySet_NoEvents(t *testing.T) {
	l, _ := newTestLibrary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := l.bus.Subscribe(ctx)

	l.rescan(context.Background())

	ev := <-obs
	assert.Equal(t, bus.EventRescanStart, ev.Kind)
	ev = <-obs
	assert.Equal(t, bus.EventRescanFinish, ev.Kind)
}

func Test_Names_SortedAscending(t *testing.T) {
	l, _ := newTestLibrary()

	b := unit.Name{ID: "bravo", Kind: unit.KindTest}
	a := unit.Name{ID: "alpha", Kind: unit.KindTest}

	l.update(b, &unitfile.Test{Common: unitfile.Common{UnitName: b}, ExecStart: []string{"/bin/true"}}, false)
	l.update(a, &unitfile.Test{Common: unitfile.Common{UnitName: a}, ExecStart: []string{"/bin/true"}}, false)

	assert.Equal(t, []unit.Name{a, b}, l.Names(unit.KindTest))
}
