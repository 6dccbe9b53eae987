// Package unit defines UnitName and UnitKind, the primary keys used
// throughout the orchestrator to identify jigs, scenarios, tests,
// interfaces, loggers, and triggers.
package unit

import (
	"path/filepath"
	"sort"
	"strings"
)

// Kind identifies which of the six unit kinds a description/instance is.
type Kind int

const (
	// KindUnknown is returned when a path's extension doesn't map to a
	// recognised kind.
	KindUnknown Kind = iota
	KindJig
	KindScenario
	KindTest
	KindInterface
	KindLogger
	KindTrigger
)

// kindOrder fixes the total ordering used to sort units within a rescan
// (§4.4 "Jigs are always processed before any dependent kind").
var kindOrder = map[Kind]int{
	KindJig:       0,
	KindScenario:  1,
	KindTest:      2,
	KindInterface: 3,
	KindLogger:    4,
	KindTrigger:   5,
}

// extensions maps a unit file's extension (without the leading dot) to its
// Kind. Unknown extensions are silently skipped by the watcher (§4.2).
var extensions = map[string]Kind{
	"jig":       KindJig,
	"scenario":  KindScenario,
	"test":      KindTest,
	"interface": KindInterface,
	"logger":    KindLogger,
	"trigger":   KindTrigger,
}

// String renders the canonical lowercase name of the kind, matching the
// unit file extension.
func (k Kind) String() string {
	switch k {
	case KindJig:
		return "jig"
	case KindScenario:
		return "scenario"
	case KindTest:
		return "test"
	case KindInterface:
		return "interface"
	case KindLogger:
		return "logger"
	case KindTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// KindFromExtension returns the Kind for a file extension (with or without
// a leading dot), and false if the extension is unrecognised.
func KindFromExtension(ext string) (Kind, bool) {
	ext = strings.TrimPrefix(ext, ".")
	k, ok := extensions[strings.ToLower(ext)]
	return k, ok
}

// Name is the primary key used throughout the system: a non-empty
// identifier paired with a Kind.
type Name struct {
	ID   string
	Kind Kind
}

// FromPath derives a Name from a unit file path by taking the stem as ID and
// the extension as Kind. It returns false if the extension is unrecognised
// or the stem is empty.
func FromPath(path string) (Name, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	kind, ok := KindFromExtension(ext)
	if !ok {
		return Name{}, false
	}

	id := strings.TrimSuffix(base, ext)
	if id == "" {
		return Name{}, false
	}

	return Name{ID: id, Kind: kind}, true
}

// String renders "id.kind", matching the on-disk filename stem+extension.
func (n Name) String() string {
	return n.ID + "." + n.Kind.String()
}

// Less orders first by kind (per kindOrder), then by id, giving the total
// ordering §3 requires and the reproducible per-rescan event sequence §4.4
// requires.
func Less(a, b Name) bool {
	ka, kb := kindOrder[a.Kind], kindOrder[b.Kind]
	if ka != kb {
		return ka < kb
	}

	return a.ID < b.ID
}

// SortNames sorts a slice of Names in place using Less.
func SortNames(names []Name) {
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })
}

// AllKinds lists every concrete kind in the order they are evaluated during
// a rescan (§4.4): Jig, Scenario, Test, Interface, Logger, Trigger.
var AllKinds = []Kind{KindJig, KindScenario, KindTest, KindInterface, KindLogger, KindTrigger}

// ShutdownOrder is the reverse-dependency order used when tearing the whole
// system down (§5): Trigger, Logger, Interface, Test, Scenario, Jig.
var ShutdownOrder = []Kind{KindTrigger, KindLogger, KindInterface, KindTest, KindScenario, KindJig}
