// Package manager owns the live-instance catalogue and every running child
// process: loading a description into a live instance, activating it,
// routing the Interface/Trigger control protocol, running scenarios, and
// tearing the whole system down in dependency order (§4.5, §4.6, §4.7).
package manager

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/compat"
	"jigctl/internal/app/errors"
	"jigctl/internal/app/procstats"
	"jigctl/internal/app/process"
	"jigctl/internal/app/protocol"
	"jigctl/internal/app/registry"
	"jigctl/internal/app/state"
	"jigctl/internal/app/unit"
	"jigctl/internal/app/unitfile"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// TestResult is the outcome of running a single Test, standalone or as a
// step of a Scenario (§4.5 "ordered test execution").
type TestResult struct {
	Name   unit.Name
	Passed bool
	Reason string
}

// ScenarioResult is the outcome of running a Scenario to completion or to
// its first failing, non-assumed test (§4.5).
type ScenarioResult struct {
	Name    unit.Name
	Results []TestResult
	Passed  bool
}

type controlEnvelope struct {
	origin unit.Name
	msg    bus.ControlMessage
}

// Manager owns the live-instance catalogue (Registry) and every spawned
// child process, and is the sole publisher of Selected/Incompatible/
// Active/ActivationFailed/DeactivatedOk/DeactivatedFail/Deselected (§4.5).
type Manager struct {
	cfg   *config.Config
	bus   bus.EventBus
	log   logger.Logger
	reg   registry.Registry
	stats procstats.Provider

	control chan controlEnvelope
}

// New builds a Manager over reg, wired to bus for status/log publication
// and control-message dispatch.
func New(cfg *config.Config, b bus.EventBus, log logger.Logger, reg registry.Registry, stats procstats.Provider) *Manager {
	return &Manager{
		cfg:     cfg,
		bus:     b,
		log:     log.WithComponent("MANAGER"),
		reg:     reg,
		stats:   stats,
		control: make(chan controlEnvelope, 64),
	}
}

// IsSelected reports whether name currently has a live instance (§4.5
// is_selected, and jig_is_loaded when name is a Jig).
func (m *Manager) IsSelected(name unit.Name) bool {
	return m.reg.IsLoaded(name)
}

// JigIsLoaded reports whether the named jig is currently selected (§4.4
// "at least one listed jig currently selected").
func (m *Manager) JigIsLoaded(name unit.Name) bool {
	return m.IsSelected(name)
}

// LoadJig loads a Jig description. Jigs are never activated: they exist
// only to gate other kinds' compatibility (§3 Jig).
func (m *Manager) LoadJig(ctx context.Context, d *unitfile.Jig) error {
	return m.load(ctx, d.Name(), d, nil)
}

// LoadScenario loads a Scenario description. Scenarios run on demand via
// RunScenario, never automatically (§4.5).
func (m *Manager) LoadScenario(ctx context.Context, d *unitfile.Scenario) error {
	return m.load(ctx, d.Name(), d, nil)
}

// LoadTest loads a Test description. Tests run on demand via RunTest,
// either standalone or as a scenario step.
func (m *Manager) LoadTest(ctx context.Context, d *unitfile.Test) error {
	return m.load(ctx, d.Name(), d, nil)
}

// LoadInterface loads and activates an Interface: spawns ExecStart and
// starts a control-protocol reader over its stdout (§4.8).
func (m *Manager) LoadInterface(ctx context.Context, d *unitfile.Interface) error {
	return m.load(ctx, d.Name(), d, func(inst *registry.Instance) error {
		return m.activateInterface(ctx, d, inst)
	})
}

// LoadLogger loads and activates a Logger: spawns ExecStart and registers it
// to receive every LogEntry published on the bus (§4.9).
func (m *Manager) LoadLogger(ctx context.Context, d *unitfile.Logger) error {
	return m.load(ctx, d.Name(), d, func(inst *registry.Instance) error {
		return m.activateLogger(ctx, d, inst)
	})
}

// LoadTrigger loads and activates a Trigger: spawns ExecStart and starts a
// control-protocol reader over its stdout, same as an Interface (§4.8).
func (m *Manager) LoadTrigger(ctx context.Context, d *unitfile.Trigger) error {
	return m.load(ctx, d.Name(), d, func(inst *registry.Instance) error {
		return m.activateTrigger(ctx, d, inst)
	})
}

// load is the shared load_<kind> path: replace any existing instance,
// check compatibility, insert and emit Selected, then optionally activate
// and emit Active/ActivationFailed (§4.5, §4.6).
func (m *Manager) load(ctx context.Context, name unit.Name, d unitfile.Description, activate func(*registry.Instance) error) error {
	if m.reg.IsLoaded(name) {
		m.deactivateAndDrop(ctx, name, "reloading", false)
	}

	if err := compat.Check(ctx, m.cfg, d, m.IsSelected); err != nil {
		m.bus.Publish(bus.StatusEvent(name, bus.Incompatible(err.Error())))
		return err
	}

	inst := &registry.Instance{Name: name, Description: d, Machine: state.NewMachine()}
	if err := inst.Machine.Fire(ctx, state.EventLoadOK); err != nil {
		return err
	}

	m.reg.Put(inst)
	m.bus.Publish(bus.StatusEvent(name, bus.Selected()))

	if activate == nil {
		return nil
	}

	if err := activate(inst); err != nil {
		m.bus.Publish(bus.StatusEvent(name, bus.ActivationFailed(err.Error())))
		return err
	}

	_ = inst.Machine.Fire(ctx, state.EventActivateOK)
	m.bus.Publish(bus.StatusEvent(name, bus.Active()))

	return nil
}

func (m *Manager) activateInterface(ctx context.Context, d *unitfile.Interface, inst *registry.Instance) error {
	p, err := process.Spawn(ctx, process.Options{
		Name:        d.ExecStart[0],
		Args:        d.ExecStart,
		WorkDir:     m.cfg.Process.WorkingDir,
		PathPrepend: m.cfg.Process.PATH,
	})
	if err != nil {
		return err
	}

	inst.Process = p
	m.wireControlChild(inst.Name, p)

	return nil
}

func (m *Manager) activateTrigger(ctx context.Context, d *unitfile.Trigger, inst *registry.Instance) error {
	p, err := process.Spawn(ctx, process.Options{
		Name:        d.ExecStart[0],
		Args:        d.ExecStart,
		WorkDir:     d.WorkDir,
		PathPrepend: m.cfg.Process.PATH,
	})
	if err != nil {
		return err
	}

	inst.Process = p
	m.wireControlChild(inst.Name, p)

	return nil
}

func (m *Manager) activateLogger(ctx context.Context, d *unitfile.Logger, inst *registry.Instance) error {
	p, err := process.Spawn(ctx, process.Options{
		Name:        d.ExecStart[0],
		Args:        d.ExecStart,
		WorkDir:     m.cfg.Process.WorkingDir,
		PathPrepend: m.cfg.Process.PATH,
	})
	if err != nil {
		return err
	}

	inst.Process = p

	if out, takeErr := p.TakeOutput(); takeErr == nil {
		go drainLines(out)
	}

	if errCh, takeErr := p.TakeError(); takeErr == nil {
		go drainLines(errCh)
	}

	go m.watchExit(inst.Name, p)

	return nil
}

// wireControlChild starts the reader that turns an Interface/Trigger
// child's stdout into control-protocol messages, a stderr drain that
// forwards each line as a LogError, and the natural-exit watcher.
func (m *Manager) wireControlChild(name unit.Name, p process.Process) {
	if out, err := p.TakeOutput(); err == nil {
		go m.readControl(name, out)
	}

	if errCh, err := p.TakeError(); err == nil {
		go m.readStderrAsLog(name, errCh)
	}

	go m.watchExit(name, p)
}

func drainLines(lines <-chan string) {
	for range lines { //nolint:revive // drain only
	}
}

func (m *Manager) readControl(origin unit.Name, lines <-chan string) {
	for line := range lines {
		m.control <- controlEnvelope{origin: origin, msg: protocol.ParseLine(line)}
	}
}

func (m *Manager) readStderrAsLog(origin unit.Name, lines <-chan string) {
	for line := range lines {
		m.control <- controlEnvelope{origin: origin, msg: bus.ControlMessage{Verb: bus.CtrlLogError, LogMessage: line}}
	}
}

// watchExit deactivates and drops an instance the moment its child exits on
// its own, without waiting for an explicit Remove/reload (§4.6 child_exit).
func (m *Manager) watchExit(name unit.Name, p process.Process) {
	<-p.Done()
	m.deactivateAndDrop(context.Background(), name, "", true)
}

// deactivateAndDrop removes name from the registry, terminating its child
// (if any) and firing the matching deactivate/child-exit transition, then
// unconditionally fires deselect and publishes Deselected.
func (m *Manager) deactivateAndDrop(ctx context.Context, name unit.Name, reason string, natural bool) {
	inst, ok := m.reg.Remove(name)
	if !ok {
		return
	}

	if inst.Process != nil {
		m.terminateAndEmit(ctx, inst, reason, natural)
	}

	_ = inst.Machine.Fire(ctx, state.EventDeselect)
	m.bus.Publish(bus.StatusEvent(name, bus.Deselected()))
}

func (m *Manager) terminateAndEmit(ctx context.Context, inst *registry.Instance, reason string, natural bool) {
	grace := m.cfg.Timeouts.TerminateGrace
	if lg, ok := inst.Description.(*unitfile.Logger); ok {
		grace = lg.TerminateGrace
	}

	sample := m.stats.GetStats(ctx, inst.Process.Pid())
	m.log.Info().
		Str("unit", inst.Name.String()).
		Str("cpu", fmt.Sprintf("%.1f%%", sample.CPUPercent)).
		Str("mem", procstats.FormatMemory(sample.MemoryBytes)).
		Msg("terminating child")

	code := inst.Process.Terminate(grace)

	okEvent, failEvent := state.EventDeactivateOK, state.EventDeactivateFail
	if natural {
		okEvent, failEvent = state.EventChildExitOK, state.EventChildExitFail
	}

	if code == 0 {
		_ = inst.Machine.Fire(ctx, okEvent)
		m.bus.Publish(bus.StatusEvent(inst.Name, bus.DeactivatedOk(reason)))

		return
	}

	_ = inst.Machine.Fire(ctx, failEvent)
	m.bus.Publish(bus.StatusEvent(inst.Name, bus.DeactivatedFail(fmt.Sprintf("exit code %d", code))))
}

// Remove deselects a live instance: terminates its child if any and drops
// it from the registry (§4.5 remove_<kind> on the manager side).
func (m *Manager) Remove(ctx context.Context, name unit.Name) error {
	if !m.reg.IsLoaded(name) {
		return fmt.Errorf("%w: %s", errors.ErrUnitNotFound, name)
	}

	m.deactivateAndDrop(ctx, name, "", false)

	return nil
}

// Stats samples the live instance's child process, if it has one (§4.5
// "exposes per-instance Stats()").
func (m *Manager) Stats(ctx context.Context, name unit.Name) (procstats.Stats, bool) {
	inst, ok := m.reg.Get(name)
	if !ok || inst.Process == nil {
		return procstats.Stats{}, false
	}

	return m.stats.GetStats(ctx, inst.Process.Pid()), true
}

// Shutdown deactivates every live instance in ShutdownOrder (Trigger,
// Logger, Interface, Test, Scenario, Jig), the reverse of rescan evaluation
// order (§5 graceful shutdown).
func (m *Manager) Shutdown(ctx context.Context) {
	for _, kind := range unit.ShutdownOrder {
		for _, name := range m.reg.Names(kind) {
			m.deactivateAndDrop(ctx, name, "shutdown", false)
		}
	}
}

// Run drains the control-message queue and the bus until ctx is cancelled
// (or the bus closes), dispatching ManagerRequest events, routing Log events
// to every live Logger, and calling Shutdown on a Shutdown event (§4.5, §4.9).
func (m *Manager) Run(ctx context.Context) {
	go m.consumeControl(ctx)

	ch := m.bus.Subscribe(ctx)

	for ev := range ch {
		switch ev.Kind {
		case bus.EventManagerRequest:
			m.dispatch(ctx, ev.Name, ev.Control)
		case bus.EventLog:
			m.routeLog(ev.Log)
		case bus.EventShutdown:
			m.Shutdown(ctx)
		}
	}
}

func (m *Manager) consumeControl(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-m.control:
			m.bus.Publish(bus.ManagerRequestEvent(env.origin, env.msg))
		}
	}
}

// routeLog writes entry, encoded per each Logger's configured format, to
// every live Logger's stdin (§4.9).
func (m *Manager) routeLog(entry bus.LogEntry) {
	for _, inst := range m.reg.All(unit.KindLogger) {
		if inst.Process == nil {
			continue
		}

		lg, ok := inst.Description.(*unitfile.Logger)
		if !ok {
			continue
		}

		var line string

		switch lg.Format {
		case unitfile.FormatLogJSON:
			encoded, err := protocol.EncodeJSON(entry)
			if err != nil {
				continue
			}

			line = encoded
		default:
			line = protocol.EncodeTSV(entry)
		}

		_, _ = io.WriteString(inst.Process.Stdin(), line)
	}
}

func (m *Manager) dispatch(ctx context.Context, origin unit.Name, msg bus.ControlMessage) {
	switch msg.Verb {
	case bus.CtrlScenarios:
		m.bus.Publish(bus.StatusEvent(origin, bus.Scenarios(m.reg.Names(unit.KindScenario))))
	case bus.CtrlStartScenario:
		go m.handleStart(ctx, msg.StartName)
	case bus.CtrlStop:
		m.log.Info().Str("unit", origin.String()).Msg("stop requested")
	case bus.CtrlLog:
		m.publishLog(origin, msg.LogKind, msg.LogMessage)
	case bus.CtrlLogError:
		m.publishLog(origin, "ERROR", msg.LogMessage)
	case bus.CtrlHello:
		m.replyHello(origin)
	case bus.CtrlUnimplemented:
		m.log.Warn().Str("unit", origin.String()).Str("verb", msg.Verb_).Msg("unimplemented control verb")
	}
}

func (m *Manager) publishLog(origin unit.Name, kind, message string) {
	now := time.Now()
	m.bus.Publish(bus.LogEvent(bus.LogEntry{
		Kind:    kind,
		ID:      origin,
		Secs:    now.Unix(),
		Nsecs:   int64(now.Nanosecond()),
		Message: message,
	}))
}

func (m *Manager) replyHello(origin unit.Name) {
	inst, ok := m.reg.Get(origin)
	if !ok || inst.Process == nil {
		return
	}

	format := unitfile.FormatText

	switch d := inst.Description.(type) {
	case *unitfile.Interface:
		format = d.Format
	case *unitfile.Trigger:
		format = d.Format
	}

	line := "ok\n"
	if format == unitfile.FormatJSON {
		line = `{"status":"ok"}` + "\n"
	}

	_, _ = io.WriteString(inst.Process.Stdin(), line)
}

func (m *Manager) handleStart(ctx context.Context, startName *unit.Name) {
	if startName == nil {
		if name, ok := m.defaultScenario(); ok {
			_, _ = m.RunScenario(ctx, name)
		}

		return
	}

	if startName.Kind == unit.KindScenario {
		_, _ = m.RunScenario(ctx, *startName)
		return
	}

	_, _ = m.RunTest(ctx, *startName)
}

// defaultScenario returns the DefaultScenario of the first selected Jig that
// declares one, in name order.
func (m *Manager) defaultScenario() (unit.Name, bool) {
	for _, name := range m.reg.Names(unit.KindJig) {
		inst, ok := m.reg.Get(name)
		if !ok {
			continue
		}

		jig, ok := inst.Description.(*unitfile.Jig)
		if ok && jig.DefaultScenario != nil {
			return *jig.DefaultScenario, true
		}
	}

	return unit.Name{}, false
}

// RunScenario runs a Scenario's tests in order, skipping those listed in
// Assumptions, stopping at the first non-assumed failure, and finally
// running its success or failure stop command (§4.5 "ordered test
// execution... and success/failure stop commands").
func (m *Manager) RunScenario(ctx context.Context, name unit.Name) (ScenarioResult, error) {
	inst, ok := m.reg.Get(name)
	if !ok {
		return ScenarioResult{}, fmt.Errorf("%w: %s", errors.ErrUnitNotFound, name)
	}

	d, ok := inst.Description.(*unitfile.Scenario)
	if !ok {
		return ScenarioResult{}, fmt.Errorf("%w: %s", errors.ErrDescriptionMissing, name)
	}

	assumed := make(map[unit.Name]bool, len(d.Assumptions))
	for _, t := range d.Assumptions {
		assumed[t] = true
	}

	result := ScenarioResult{Name: name, Passed: true}

	for _, t := range d.Tests {
		if assumed[t] {
			result.Results = append(result.Results, TestResult{Name: t, Passed: true, Reason: "assumed"})
			continue
		}

		tr, err := m.RunTest(ctx, t)
		if err != nil {
			tr = TestResult{Name: t, Passed: false, Reason: err.Error()}
		}

		result.Results = append(result.Results, tr)

		if !tr.Passed {
			result.Passed = false
			break
		}
	}

	stop := d.SuccessStop
	if !result.Passed {
		stop = d.FailureStop
	}

	if len(stop) > 0 {
		m.runStopCommand(ctx, stop)
	}

	return result, nil
}

// RunTest runs a single Test to completion: a Simple test's exit code
// decides pass/fail, a Daemon test is considered passed once its stdout
// matches DaemonReady within the test's timeout (§4.5, §3 Test).
func (m *Manager) RunTest(ctx context.Context, name unit.Name) (TestResult, error) {
	inst, ok := m.reg.Get(name)
	if !ok {
		return TestResult{Name: name}, fmt.Errorf("%w: %s", errors.ErrUnitNotFound, name)
	}

	d, ok := inst.Description.(*unitfile.Test)
	if !ok {
		return TestResult{Name: name}, fmt.Errorf("%w: %s", errors.ErrDescriptionMissing, name)
	}

	timeout := d.Timeout
	if timeout == 0 {
		timeout = m.cfg.Timeouts.Process
	}

	p, err := process.Spawn(ctx, process.Options{
		Name:        d.ExecStart[0],
		Args:        d.ExecStart,
		WorkDir:     m.cfg.Process.WorkingDir,
		PathPrepend: m.cfg.Process.PATH,
		Timeout:     timeout,
	})
	if err != nil {
		return TestResult{Name: name, Reason: err.Error()}, nil
	}

	if errCh, takeErr := p.TakeError(); takeErr == nil {
		go drainLines(errCh)
	}

	if d.Type == unitfile.TestDaemon {
		return m.runDaemonTest(name, d, p, timeout), nil
	}

	out, takeErr := p.TakeOutput()
	if takeErr == nil {
		go drainLines(out)
	}

	<-p.Done()

	if p.ExitCode() != 0 {
		return TestResult{Name: name, Reason: fmt.Sprintf("exit code %d", p.ExitCode())}, nil
	}

	return TestResult{Name: name, Passed: true}, nil
}

func (m *Manager) runDaemonTest(name unit.Name, d *unitfile.Test, p process.Process, timeout time.Duration) TestResult {
	out, err := p.TakeOutput()
	if err != nil {
		p.Terminate(m.cfg.Timeouts.TerminateGrace)
		return TestResult{Name: name, Reason: err.Error()}
	}

	if waitForReady(out, d.DaemonReady, timeout) {
		p.Terminate(m.cfg.Timeouts.TerminateGrace)
		return TestResult{Name: name, Passed: true}
	}

	go drainLines(out)
	p.Terminate(m.cfg.Timeouts.TerminateGrace)

	return TestResult{Name: name, Reason: "daemon did not become ready"}
}

func waitForReady(lines <-chan string, re *regexp.Regexp, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return false
			}

			if re.MatchString(line) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func (m *Manager) runStopCommand(ctx context.Context, cmd []string) {
	p, err := process.Spawn(ctx, process.Options{
		Name:        cmd[0],
		Args:        cmd,
		WorkDir:     m.cfg.Process.WorkingDir,
		PathPrepend: m.cfg.Process.PATH,
		Timeout:     m.cfg.Timeouts.Process,
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to spawn scenario stop command")
		return
	}

	if out, takeErr := p.TakeOutput(); takeErr == nil {
		go drainLines(out)
	}

	if errCh, takeErr := p.TakeError(); takeErr == nil {
		go drainLines(errCh)
	}

	<-p.Done()
}
