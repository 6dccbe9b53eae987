// Package protocol implements the line-oriented text/JSON protocol spoken
// over Interface/Trigger child stdio (§4.8) and the Logger TSV/JSON output
// encoding (§4.9).
package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/unit"
)

// ParseLine splits one line of Interface/Trigger stdout on whitespace and
// maps it to a ControlMessage (§4.8). The first word, case-folded, is the
// verb; the rest are arguments. A blank line is "start" with no argument.
func ParseLine(line string) bus.ControlMessage {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return bus.ControlMessage{Verb: bus.CtrlStartScenario}
	}

	verb := strings.ToLower(fields[0])
	args := decodeArgs(fields[1:])

	switch verb {
	case "start":
		return startMessage(args)
	case "stop":
		return bus.ControlMessage{Verb: bus.CtrlStop}
	case "scenarios":
		return bus.ControlMessage{Verb: bus.CtrlScenarios}
	case "hello":
		return bus.ControlMessage{Verb: bus.CtrlHello}
	case "log":
		return logMessage(fields[0], args)
	default:
		return bus.ControlMessage{Verb: bus.CtrlUnimplemented, Verb_: fields[0], Rest: args}
	}
}

func startMessage(args []string) bus.ControlMessage {
	if len(args) == 0 {
		return bus.ControlMessage{Verb: bus.CtrlStartScenario}
	}

	name := unit.Name{ID: args[0], Kind: unit.KindTest}

	return bus.ControlMessage{Verb: bus.CtrlStartScenario, StartName: &name}
}

func logMessage(verb string, args []string) bus.ControlMessage {
	if len(args) < 2 {
		return bus.ControlMessage{Verb: bus.CtrlUnimplemented, Verb_: verb, Rest: args}
	}

	return bus.ControlMessage{
		Verb:       bus.CtrlLog,
		LogKind:    args[0],
		LogMessage: strings.Join(args[1:], " "),
	}
}

func decodeArgs(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = Unescape(f)
	}

	return out
}

// Unescape decodes \t, \n, \r, \\ back to their literal characters (§4.8).
func Unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 't':
				b.WriteByte('\t')
				i++

				continue
			case 'n':
				b.WriteByte('\n')
				i++

				continue
			case 'r':
				b.WriteByte('\r')
				i++

				continue
			case '\\':
				b.WriteByte('\\')
				i++

				continue
			}
		}

		b.WriteByte(s[i])
	}

	return b.String()
}

// Escape encodes tab, newline, carriage return, and backslash into their
// two-character escape forms (§4.8 outbound TSV encoding reverses
// Unescape).
func Escape(s string) string {
	if !strings.ContainsAny(s, "\t\n\r\\") {
		return s
	}

	var b strings.Builder

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(s[i])
		}
	}

	return b.String()
}

// EncodeTSV renders a LogEntry as one TSV line per §4.9: "kind TAB id TAB
// id-kind TAB secs TAB nsecs TAB message", every field escaped.
func EncodeTSV(e bus.LogEntry) string {
	fields := []string{
		Escape(e.Kind),
		Escape(e.ID.ID),
		Escape(e.ID.Kind.String()),
		strconv.FormatInt(e.Secs, 10),
		strconv.FormatInt(e.Nsecs, 10),
		Escape(e.Message),
	}

	return strings.Join(fields, "\t") + "\n"
}

// jsonLogEntry mirrors the TSV fields structurally (§4.9: "an object with
// the same keys; messages are JSON-encoded verbatim").
type jsonLogEntry struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	IDKind  string `json:"id-kind"`
	Secs    int64  `json:"secs"`
	Nsecs   int64  `json:"nsecs"`
	Message string `json:"message"`
}

// EncodeJSON renders a LogEntry as one JSON line.
func EncodeJSON(e bus.LogEntry) (string, error) {
	out := jsonLogEntry{
		Kind:    e.Kind,
		ID:      e.ID.ID,
		IDKind:  e.ID.Kind.String(),
		Secs:    e.Secs,
		Nsecs:   e.Nsecs,
		Message: e.Message,
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}

	return string(b) + "\n", nil
}
