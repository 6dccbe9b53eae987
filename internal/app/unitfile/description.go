package unitfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jigctl/internal/app/errors"
	"jigctl/internal/app/unit"
)

// IOFormat is the wire format a unit's stdio protocol uses (§3 Interface,
// Trigger).
type IOFormat int

const (
	FormatText IOFormat = iota
	FormatJSON
)

// LogFormat is the wire format a Logger unit writes (§4.9).
type LogFormat int

const (
	FormatTSV LogFormat = iota
	FormatLogJSON
)

// TestType distinguishes a Simple (exit-code-decides) test from a Daemon
// (long-running, readiness-regex) test (§3 Test).
type TestType int

const (
	TestSimple TestType = iota
	TestDaemon
)

// Common carries the fields every description variant shares (§3: "Every
// description carries: its UnitName, a human name, a description string,
// and a set of jigs it declares compatibility with").
type Common struct {
	UnitName    unit.Name
	HumanName   string
	Summary     string
	DeclaredJigs []unit.Name
}

func (c Common) Name() unit.Name       { return c.UnitName }
func (c Common) DisplayName() string   { return c.HumanName }
func (c Common) Desc() string          { return c.Summary }
func (c Common) Jigs() []unit.Name     { return c.DeclaredJigs }

// Description is the parsed contents of one unit file.
type Description interface {
	Name() unit.Name
	DisplayName() string
	Desc() string
	// Jigs lists the jigs this unit declares compatibility with. Empty
	// means universally compatible (§3 invariant).
	Jigs() []unit.Name
}

// Jig carries compatibility probes instead of a jig list (§3 Jig).
type Jig struct {
	Common
	DefaultScenario *unit.Name
	WorkDir         string
	TestFile        string
	TestProgram     []string
}

// Scenario is an ordered test list plus assumptions and optional teardown
// hooks (§3 Scenario).
type Scenario struct {
	Common
	Tests       []unit.Name
	Assumptions []unit.Name
	Timeout     time.Duration
	SuccessStop []string
	FailureStop []string
}

// Test is a single executable step, simple or daemon (§3 Test).
type Test struct {
	Common
	Required    []unit.Name
	Suggested   []unit.Name
	Provided    []unit.Name
	Type        TestType
	DaemonReady *regexp.Regexp
	ExecStart   []string
	SuccessStop []string
	FailureStop []string
	Timeout     time.Duration
}

// Interface is an interactive front-end process (§3 Interface).
type Interface struct {
	Common
	ExecStart []string
	Format    IOFormat
}

// Logger receives structured log lines (§3 Logger).
type Logger struct {
	Common
	ExecStart      []string
	Format         LogFormat
	TerminateGrace time.Duration
}

// Trigger emits start/stop commands (§3 Trigger).
type Trigger struct {
	Common
	ExecStart []string
	Format    IOFormat
	WorkDir   string
}

// ParseDescription dispatches to the kind-specific parser based on name.Kind.
func ParseDescription(name unit.Name, raw *Raw) (Description, error) {
	switch name.Kind {
	case unit.KindJig:
		return ParseJig(name, raw)
	case unit.KindScenario:
		return ParseScenario(name, raw)
	case unit.KindTest:
		return ParseTest(name, raw)
	case unit.KindInterface:
		return ParseInterface(name, raw)
	case unit.KindLogger:
		return ParseLogger(name, raw)
	case unit.KindTrigger:
		return ParseTrigger(name, raw)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownExtension, name)
	}
}

func parseCommon(name unit.Name, sec map[string]string) Common {
	return Common{
		UnitName:     name,
		HumanName:    sec["Name"],
		Summary:      sec["Description"],
		DeclaredJigs: jigNames(List(sec["Jigs"])),
	}
}

func jigNames(ids []string) []unit.Name {
	names := make([]unit.Name, 0, len(ids))
	for _, id := range ids {
		names = append(names, unit.Name{ID: id, Kind: unit.KindJig})
	}

	return names
}

func testNames(ids []string) []unit.Name {
	names := make([]unit.Name, 0, len(ids))
	for _, id := range ids {
		names = append(names, unit.Name{ID: id, Kind: unit.KindTest})
	}

	return names
}

// ParseJig parses the [Jig] section.
func ParseJig(name unit.Name, raw *Raw) (*Jig, error) {
	sec, err := raw.RequireSection("Jig")
	if err != nil {
		return nil, err
	}

	j := &Jig{
		Common:      parseCommon(name, sec),
		WorkDir:     sec["WorkingDirectory"],
		TestFile:    sec["TestFile"],
		TestProgram: splitCommand(sec["TestProgram"]),
	}

	if j.WorkDir == "" {
		j.WorkDir = "."
	}

	if def := sec["DefaultScenario"]; def != "" {
		n := unit.Name{ID: def, Kind: unit.KindScenario}
		j.DefaultScenario = &n
	}

	return j, nil
}

// ParseScenario parses the [Scenario] section. Each directive is assigned
// its own field — the source this spec is derived from overwrote a single
// field for Jigs/Tests/Assumptions; that is treated as a bug here (§9).
func ParseScenario(name unit.Name, raw *Raw) (*Scenario, error) {
	sec, err := raw.RequireSection("Scenario")
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration(sec["Timeout"])
	if err != nil {
		return nil, err
	}

	s := &Scenario{
		Common:      parseCommon(name, sec),
		Tests:       testNames(List(sec["Tests"])),
		Assumptions: testNames(List(sec["Assumptions"])),
		Timeout:     timeout,
		SuccessStop: splitCommand(sec["OnSuccess"]),
		FailureStop: splitCommand(sec["OnFailure"]),
	}

	return s, nil
}

// ParseTest parses the [Test] section.
func ParseTest(name unit.Name, raw *Raw) (*Test, error) {
	sec, err := raw.RequireSection("Test")
	if err != nil {
		return nil, err
	}

	execStart, err := RequireKey(sec, "Test", "ExecStart")
	if err != nil {
		return nil, err
	}

	testType := TestSimple

	switch strings.ToLower(sec["Type"]) {
	case "", "simple":
		testType = TestSimple
	case "daemon":
		testType = TestDaemon
	default:
		return nil, fmt.Errorf("%w: [Test] Type=%s", errors.ErrInvalidEnumValue, sec["Type"])
	}

	var ready *regexp.Regexp

	if pattern := sec["DaemonReady"]; pattern != "" {
		ready, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidRegexPattern, err)
		}
	}

	if testType == TestDaemon && ready == nil {
		return nil, fmt.Errorf("%w: [Test] DaemonReady required for Type=daemon", errors.ErrKeyMissing)
	}

	timeout, err := parseDuration(sec["Timeout"])
	if err != nil {
		return nil, err
	}

	t := &Test{
		Common:      parseCommon(name, sec),
		Required:    testNames(List(sec["Requires"])),
		Suggested:   testNames(List(sec["Suggests"])),
		Provided:    testNames(List(sec["Provides"])),
		Type:        testType,
		DaemonReady: ready,
		ExecStart:   splitCommand(execStart),
		SuccessStop: splitCommand(sec["OnSuccess"]),
		FailureStop: splitCommand(sec["OnFailure"]),
		Timeout:     timeout,
	}

	return t, nil
}

// ParseInterface parses the [Interface] section.
func ParseInterface(name unit.Name, raw *Raw) (*Interface, error) {
	sec, err := raw.RequireSection("Interface")
	if err != nil {
		return nil, err
	}

	execStart, err := RequireKey(sec, "Interface", "ExecStart")
	if err != nil {
		return nil, err
	}

	format, err := parseIOFormat(sec["Format"], "Interface")
	if err != nil {
		return nil, err
	}

	return &Interface{
		Common:    parseCommon(name, sec),
		ExecStart: splitCommand(execStart),
		Format:    format,
	}, nil
}

// ParseLogger parses the [Logger] section.
func ParseLogger(name unit.Name, raw *Raw) (*Logger, error) {
	sec, err := raw.RequireSection("Logger")
	if err != nil {
		return nil, err
	}

	execStart, err := RequireKey(sec, "Logger", "ExecStart")
	if err != nil {
		return nil, err
	}

	var format LogFormat

	switch strings.ToLower(sec["Format"]) {
	case "", "tsv":
		format = FormatTSV
	case "json":
		format = FormatLogJSON
	default:
		return nil, fmt.Errorf("%w: [Logger] Format=%s", errors.ErrInvalidEnumValue, sec["Format"])
	}

	grace, err := parseDuration(sec["TerminateGrace"])
	if err != nil {
		return nil, err
	}

	if grace == 0 {
		grace = 5 * time.Second
	}

	return &Logger{
		Common:         parseCommon(name, sec),
		ExecStart:      splitCommand(execStart),
		Format:         format,
		TerminateGrace: grace,
	}, nil
}

// ParseTrigger parses the [Trigger] section.
func ParseTrigger(name unit.Name, raw *Raw) (*Trigger, error) {
	sec, err := raw.RequireSection("Trigger")
	if err != nil {
		return nil, err
	}

	execStart, err := RequireKey(sec, "Trigger", "ExecStart")
	if err != nil {
		return nil, err
	}

	format, err := parseIOFormat(sec["Format"], "Trigger")
	if err != nil {
		return nil, err
	}

	workDir := sec["WorkingDirectory"]
	if workDir == "" {
		workDir = "."
	}

	return &Trigger{
		Common:    parseCommon(name, sec),
		ExecStart: splitCommand(execStart),
		Format:    format,
		WorkDir:   workDir,
	}, nil
}

func parseIOFormat(value, section string) (IOFormat, error) {
	switch strings.ToLower(value) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: [%s] Format=%s", errors.ErrInvalidEnumValue, section, value)
	}
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}

	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	return 0, fmt.Errorf("%w: %q", errors.ErrInvalidDuration, value)
}

// splitCommand splits an ExecStart/stop-command line into argv, honoring
// simple double-quoted arguments (no escape sequences — unit files are not
// expected to need them for a command line).
func splitCommand(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var (
		args    []string
		current strings.Builder
		inQuote bool
	)

	flush := func() {
		if current.Len() > 0 {
			args = append(args, current.String())
			current.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}

	flush()

	return args
}
