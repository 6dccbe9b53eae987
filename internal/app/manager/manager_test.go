package manager

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/procstats"
	"jigctl/internal/app/registry"
	"jigctl/internal/app/unit"
	"jigctl/internal/app/unitfile"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timeouts.Probe = 2 * time.Second
	cfg.Timeouts.Process = 2 * time.Second
	cfg.Timeouts.TerminateGrace = 50 * time.Millisecond

	return cfg
}

func newTestManager() (*Manager, bus.EventBus) {
	cfg := testConfig()
	b := bus.New(cfg, logger.NoOp())

	return New(cfg, b, logger.NoOp(), registry.New(), procstats.NewProvider()), b
}

func waitFor(t *testing.T, ch <-chan bus.Event, match func(bus.Event) bool) bus.Event {
	t.Helper()

	deadline := time.After(3 * time.Second)

	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching event")
		}
	}
}

func Test_LoadJig_NoProbes_SelectedEmitted(t *testing.T) {
	m, b := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := b.Subscribe(ctx)

	d := &unitfile.Jig{
		Common:  unitfile.Common{UnitName: unit.Name{ID: "rig", Kind: unit.KindJig}},
		WorkDir: ".",
	}
	require.NoError(t, m.LoadJig(ctx, d))

	ev := waitFor(t, obs, func(ev bus.Event) bool {
		return ev.Kind == bus.EventStatus && ev.Name == d.Name()
	})
	assert.Equal(t, bus.StatusSelected, ev.Status.Kind)
	assert.True(t, m.JigIsLoaded(d.Name()))
}

func Test_LoadJig_TestFileMissing_Incompatible(t *testing.T) {
	m, b := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := b.Subscribe(ctx)

	d := &unitfile.Jig{
		Common:   unitfile.Common{UnitName: unit.Name{ID: "rig", Kind: unit.KindJig}},
		WorkDir:  ".",
		TestFile: "/nonexistent/path",
	}
	require.Error(t, m.LoadJig(ctx, d))

	ev := waitFor(t, obs, func(ev bus.Event) bool {
		return ev.Kind == bus.EventStatus && ev.Name == d.Name()
	})
	assert.Equal(t, bus.StatusIncompatible, ev.Status.Kind)
	assert.False(t, m.JigIsLoaded(d.Name()))
}

func Test_LoadTest_RequiresJig_IncompatibleWhenNoneSelected(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	d := &unitfile.Test{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "t", Kind: unit.KindTest}, DeclaredJigs: []unit.Name{{ID: "rig", Kind: unit.KindJig}}},
		ExecStart: []string{"/bin/sh", "-c", "exit 0"},
	}

	require.Error(t, m.LoadTest(ctx, d))
	assert.False(t, m.IsSelected(d.Name()))
}

func Test_LoadInterface_ScenariosRoundTrip(t *testing.T) {
	m, b := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Run(ctx)

	obs := b.Subscribe(ctx)

	d := &unitfile.Interface{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "ui", Kind: unit.KindInterface}},
		ExecStart: []string{"/bin/sh", "-c", "echo scenarios; sleep 5"},
	}
	require.NoError(t, m.LoadInterface(ctx, d))

	ev := waitFor(t, obs, func(ev bus.Event) bool {
		return ev.Kind == bus.EventStatus && ev.Status.Kind == bus.StatusScenarios
	})
	assert.Equal(t, d.Name(), ev.Name)
}

func Test_Remove_DeactivatesChildAndDeselects(t *testing.T) {
	m, b := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := b.Subscribe(ctx)

	d := &unitfile.Interface{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "ui", Kind: unit.KindInterface}},
		ExecStart: []string{"/bin/sh", "-c", "trap '' TERM; sleep 5"},
	}
	require.NoError(t, m.LoadInterface(ctx, d))

	require.NoError(t, m.Remove(ctx, d.Name()))

	waitFor(t, obs, func(ev bus.Event) bool {
		return ev.Kind == bus.EventStatus && ev.Status.Kind == bus.StatusDeactivatedFail && ev.Name == d.Name()
	})
	waitFor(t, obs, func(ev bus.Event) bool {
		return ev.Kind == bus.EventStatus && ev.Status.Kind == bus.StatusDeselected && ev.Name == d.Name()
	})
	assert.False(t, m.IsSelected(d.Name()))
}

func Test_Remove_Unknown_ReturnsError(t *testing.T) {
	m, _ := newTestManager()

	err := m.Remove(context.Background(), unit.Name{ID: "ghost", Kind: unit.KindJig})
	assert.Error(t, err)
}

func Test_RunTest_Simple_PassAndFail(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	pass := &unitfile.Test{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "pass", Kind: unit.KindTest}},
		ExecStart: []string{"/bin/sh", "-c", "exit 0"},
	}
	require.NoError(t, m.LoadTest(ctx, pass))

	tr, err := m.RunTest(ctx, pass.Name())
	require.NoError(t, err)
	assert.True(t, tr.Passed)

	fail := &unitfile.Test{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "fail", Kind: unit.KindTest}},
		ExecStart: []string{"/bin/sh", "-c", "exit 1"},
	}
	require.NoError(t, m.LoadTest(ctx, fail))

	tr, err = m.RunTest(ctx, fail.Name())
	require.NoError(t, err)
	assert.False(t, tr.Passed)
}

func Test_RunTest_Daemon_ReadyRegexMatches(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	d := &unitfile.Test{
		Common:      unitfile.Common{UnitName: unit.Name{ID: "svc", Kind: unit.KindTest}},
		Type:        unitfile.TestDaemon,
		DaemonReady: regexp.MustCompile(`^ready$`),
		ExecStart:   []string{"/bin/sh", "-c", "echo ready; sleep 5"},
		Timeout:     2 * time.Second,
	}
	require.NoError(t, m.LoadTest(ctx, d))

	tr, err := m.RunTest(ctx, d.Name())
	require.NoError(t, err)
	assert.True(t, tr.Passed)
}

func Test_RunTest_Daemon_NeverReady_Fails(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	d := &unitfile.Test{
		Common:      unitfile.Common{UnitName: unit.Name{ID: "svc", Kind: unit.KindTest}},
		Type:        unitfile.TestDaemon,
		DaemonReady: regexp.MustCompile(`^never$`),
		ExecStart:   []string{"/bin/sh", "-c", "sleep 1"},
		Timeout:     200 * time.Millisecond,
	}
	require.NoError(t, m.LoadTest(ctx, d))

	tr, err := m.RunTest(ctx, d.Name())
	require.NoError(t, err)
	assert.False(t, tr.Passed)
}

func Test_RunScenario_StopsAtFirstFailure(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	pass := &unitfile.Test{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "pass", Kind: unit.KindTest}},
		ExecStart: []string{"/bin/sh", "-c", "exit 0"},
	}
	fail := &unitfile.Test{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "fail", Kind: unit.KindTest}},
		ExecStart: []string{"/bin/sh", "-c", "exit 1"},
	}
	require.NoError(t, m.LoadTest(ctx, fail))
	require.NoError(t, m.LoadTest(ctx, pass))

	scenario := &unitfile.Scenario{
		Common: unitfile.Common{UnitName: unit.Name{ID: "scn", Kind: unit.KindScenario}},
		Tests:  []unit.Name{fail.Name(), pass.Name()},
	}
	require.NoError(t, m.LoadScenario(ctx, scenario))

	result, err := m.RunScenario(ctx, scenario.Name())
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Results, 1)
	assert.Equal(t, fail.Name(), result.Results[0].Name)
}

func Test_RunScenario_AssumedTestNotExecuted(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	wouldFail := &unitfile.Test{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "wouldfail", Kind: unit.KindTest}},
		ExecStart: []string{"/bin/sh", "-c", "exit 1"},
	}
	require.NoError(t, m.LoadTest(ctx, wouldFail))

	scenario := &unitfile.Scenario{
		Common:      unitfile.Common{UnitName: unit.Name{ID: "scn", Kind: unit.KindScenario}},
		Tests:       []unit.Name{wouldFail.Name()},
		Assumptions: []unit.Name{wouldFail.Name()},
	}
	require.NoError(t, m.LoadScenario(ctx, scenario))

	result, err := m.RunScenario(ctx, scenario.Name())
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Passed)
}

func Test_Shutdown_TearsDownEveryKind(t *testing.T) {
	m, b := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := b.Subscribe(ctx)

	jig := &unitfile.Jig{Common: unitfile.Common{UnitName: unit.Name{ID: "rig", Kind: unit.KindJig}}, WorkDir: "."}
	require.NoError(t, m.LoadJig(ctx, jig))

	iface := &unitfile.Interface{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "ui", Kind: unit.KindInterface}},
		ExecStart: []string{"/bin/sh", "-c", "sleep 5"},
	}
	require.NoError(t, m.LoadInterface(ctx, iface))

	m.Shutdown(ctx)

	assert.False(t, m.IsSelected(jig.Name()))
	assert.False(t, m.IsSelected(iface.Name()))

	seen := map[unit.Name]bool{}

	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-obs:
			if ev.Kind == bus.EventStatus && ev.Status.Kind == bus.StatusDeselected {
				seen[ev.Name] = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for shutdown to deselect every unit")
		}
	}
}

func Test_Stats_NoProcess_ReturnsFalse(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	d := &unitfile.Jig{Common: unitfile.Common{UnitName: unit.Name{ID: "rig", Kind: unit.KindJig}}, WorkDir: "."}
	require.NoError(t, m.LoadJig(ctx, d))

	_, ok := m.Stats(ctx, d.Name())
	assert.False(t, ok)
}

func Test_Deactivate_LogsStatsSampleViaMockLogger(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockLog := logger.NewMockLogger(ctrl)
	mockLog.EXPECT().WithComponent(gomock.Any()).Return(mockLog).AnyTimes()

	mockEvent := logger.NewMockEvent(ctrl)
	mockEvent.EXPECT().Str("unit", gomock.Any()).Return(mockEvent)
	mockEvent.EXPECT().Str("cpu", gomock.Any()).Return(mockEvent)
	mockEvent.EXPECT().Str("mem", gomock.Any()).Return(mockEvent)
	mockEvent.EXPECT().Msg("terminating child")
	mockLog.EXPECT().Info().Return(mockEvent)

	cfg := testConfig()
	b := bus.New(cfg, logger.NoOp())
	m := New(cfg, b, mockLog, registry.New(), procstats.NewProvider())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &unitfile.Interface{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "ui", Kind: unit.KindInterface}},
		ExecStart: []string{"/bin/sh", "-c", "trap '' TERM; sleep 5"},
	}
	require.NoError(t, m.LoadInterface(ctx, d))
	require.NoError(t, m.Remove(ctx, d.Name()))
}

func Test_Stats_WithProcess_ReturnsSample(t *testing.T) {
	m, _ := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &unitfile.Interface{
		Common:    unitfile.Common{UnitName: unit.Name{ID: "ui", Kind: unit.KindInterface}},
		ExecStart: []string{"/bin/sh", "-c", "sleep 5"},
	}
	require.NoError(t, m.LoadInterface(ctx, d))

	_, ok := m.Stats(ctx, d.Name())
	assert.True(t, ok)
}
