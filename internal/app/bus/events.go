package bus

import (
	"jigctl/internal/app/unit"
)

// StatusKind enumerates the lifecycle tags a unit can carry (§3 UnitStatus).
type StatusKind int

const (
	StatusAdded StatusKind = iota
	StatusUpdated
	StatusRemoved
	StatusLoadStarted
	StatusUpdateStarted
	StatusLoadFailed
	StatusIncompatible
	StatusSelected
	StatusDeselected
	StatusActive
	StatusActivationFailed
	StatusDeactivatedOk
	StatusDeactivatedFail
	StatusUnloading
	StatusScenarios
)

func (s StatusKind) String() string {
	switch s {
	case StatusAdded:
		return "Added"
	case StatusUpdated:
		return "Updated"
	case StatusRemoved:
		return "Removed"
	case StatusLoadStarted:
		return "LoadStarted"
	case StatusUpdateStarted:
		return "UpdateStarted"
	case StatusLoadFailed:
		return "LoadFailed"
	case StatusIncompatible:
		return "Incompatible"
	case StatusSelected:
		return "Selected"
	case StatusDeselected:
		return "Deselected"
	case StatusActive:
		return "Active"
	case StatusActivationFailed:
		return "ActivationFailed"
	case StatusDeactivatedOk:
		return "DeactivatedOk"
	case StatusDeactivatedFail:
		return "DeactivatedFail"
	case StatusUnloading:
		return "Unloading"
	case StatusScenarios:
		return "Scenarios"
	default:
		return "Unknown"
	}
}

// UnitStatus is a single-value tagged status, never a boolean-plus-side-channel
// (§9 "state machine as a tagged sum").
type UnitStatus struct {
	Kind   StatusKind
	Path   string
	Reason string
	Names  []unit.Name
}

func Added(path string) UnitStatus          { return UnitStatus{Kind: StatusAdded, Path: path} }
func Updated(path string) UnitStatus        { return UnitStatus{Kind: StatusUpdated, Path: path} }
func Removed(path string) UnitStatus        { return UnitStatus{Kind: StatusRemoved, Path: path} }
func LoadStarted() UnitStatus               { return UnitStatus{Kind: StatusLoadStarted} }
func UpdateStarted() UnitStatus             { return UnitStatus{Kind: StatusUpdateStarted} }
func LoadFailed(reason string) UnitStatus   { return UnitStatus{Kind: StatusLoadFailed, Reason: reason} }
func Incompatible(reason string) UnitStatus { return UnitStatus{Kind: StatusIncompatible, Reason: reason} }
func Selected() UnitStatus                  { return UnitStatus{Kind: StatusSelected} }
func Deselected() UnitStatus                { return UnitStatus{Kind: StatusDeselected} }
func Active() UnitStatus                    { return UnitStatus{Kind: StatusActive} }

func ActivationFailed(reason string) UnitStatus {
	return UnitStatus{Kind: StatusActivationFailed, Reason: reason}
}

func DeactivatedOk(reason string) UnitStatus {
	return UnitStatus{Kind: StatusDeactivatedOk, Reason: reason}
}

func DeactivatedFail(reason string) UnitStatus {
	return UnitStatus{Kind: StatusDeactivatedFail, Reason: reason}
}

func Unloading() UnitStatus { return UnitStatus{Kind: StatusUnloading} }

// Scenarios carries the reply to a Scenarios control verb: the currently
// selected scenario names (§4.5 "reply to the sender with
// Status.Scenarios(list of selected scenario names)").
func Scenarios(names []unit.Name) UnitStatus {
	return UnitStatus{Kind: StatusScenarios, Names: names}
}

// LogEntry is a single structured log line routed to Logger units (§4.9).
type LogEntry struct {
	Kind    string
	ID      unit.Name
	Secs    int64
	Nsecs   int64
	Message string
}

// ControlVerb enumerates the verbs an Interface/Trigger/Logger child can send
// over its text/JSON protocol (§4.8).
type ControlVerb int

const (
	CtrlStartScenario ControlVerb = iota
	CtrlStop
	CtrlScenarios
	CtrlHello
	CtrlLog
	CtrlLogError
	CtrlUnimplemented
)

// ControlMessage is a single parsed line of the Interface/Trigger protocol
// (§4.8), or a synthetic LogError from a child's stderr.
type ControlMessage struct {
	Verb ControlVerb

	// StartName carries the optional argument to "start"; per §4.8/scenario 4
	// it is parsed as a Test-kind name.
	StartName *unit.Name

	LogKind    string
	LogMessage string

	Verb_ string // raw verb text, set only for Unimplemented
	Rest  []string
}

// EventKind enumerates the bus's tagged UnitEvent sum (§3).
type EventKind int

const (
	EventStatus EventKind = iota
	EventCategory
	EventRescanRequest
	EventRescanStart
	EventRescanFinish
	EventLog
	EventManagerRequest
	EventShutdown
)

// Event is the bus's tagged sum type. Exactly one set of fields is
// meaningful depending on Kind.
type Event struct {
	Kind EventKind

	Name   unit.Name
	Status UnitStatus

	Category unit.Kind
	Count    int

	Log     LogEntry
	Control ControlMessage
}

func StatusEvent(name unit.Name, status UnitStatus) Event {
	return Event{Kind: EventStatus, Name: name, Status: status}
}

func CategoryEvent(kind unit.Kind, count int) Event {
	return Event{Kind: EventCategory, Category: kind, Count: count}
}

func RescanRequestEvent() Event { return Event{Kind: EventRescanRequest} }
func RescanStartEvent() Event   { return Event{Kind: EventRescanStart} }
func RescanFinishEvent() Event  { return Event{Kind: EventRescanFinish} }

func LogEvent(entry LogEntry) Event {
	return Event{Kind: EventLog, Log: entry}
}

// ManagerRequestEvent wraps a parsed control-protocol line together with the
// UnitName of the Interface/Trigger/Logger that sent it, so the manager can
// reply to the right sender (§4.5 "reply to the sender").
func ManagerRequestEvent(origin unit.Name, msg ControlMessage) Event {
	return Event{Kind: EventManagerRequest, Name: origin, Control: msg}
}

func ShutdownEvent() Event { return Event{Kind: EventShutdown} }
