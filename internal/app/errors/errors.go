package errors

import (
	"errors"
)

// Config errors.
var (
	ErrFailedToReadConfig    = errors.New("failed to read config file")
	ErrFailedToParseConfig   = errors.New("failed to parse config file")
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrInvalidProbeTimeout   = errors.New("probe timeout must be greater than 0")
	ErrInvalidQuiesceDelay   = errors.New("quiesce delay must not be negative")
	ErrInvalidTerminateGrace = errors.New("terminate grace must not be negative")
	ErrNoConfigDir           = errors.New("at least one --config-dir is required")
	ErrConfigDirNotExist     = errors.New("config directory does not exist")
	ErrUnknownConfigKey      = errors.New("unrecognised top-level config key")
)

// Unit-file parse errors (§7 ParseError).
var (
	ErrUnknownExtension    = errors.New("unit file has unrecognised extension")
	ErrSectionMissing      = errors.New("required section missing")
	ErrKeyMissing          = errors.New("required key missing")
	ErrInvalidEnumValue    = errors.New("invalid enumerant value")
	ErrInvalidRegexPattern = errors.New("invalid regex pattern")
	ErrInvalidDuration     = errors.New("invalid duration value")
	ErrEmptyUnitID         = errors.New("unit id must not be empty")
)

// Compatibility errors (§7 IncompatibilityError).
var (
	ErrNoMatchingJig      = errors.New("no matching jig currently selected")
	ErrTestFileNotPresent = errors.New("jig test file not present")
	ErrProbeProgramFailed = errors.New("jig probe program exited non-zero")
	ErrProbeTimedOut      = errors.New("jig probe program timed out")
)

// Activation / deactivation errors (§7).
var (
	ErrSpawnFailed         = errors.New("failed to spawn child process")
	ErrWorkingDirMissing   = errors.New("working directory does not exist")
	ErrNonZeroExit         = errors.New("child process exited non-zero")
	ErrTerminationFailed   = errors.New("failed to terminate child process")
	ErrDaemonReadyTimeout  = errors.New("daemon did not become ready before timeout")
	ErrDaemonReadyRegexBad = errors.New("daemon-ready regex is invalid")
)

// Manager / library errors.
var (
	ErrUnitNotFound       = errors.New("unit not found")
	ErrDescriptionMissing = errors.New("no description for unit")
	ErrAlreadyActive      = errors.New("unit is already active")
	ErrNotSelected        = errors.New("unit is not selected")
)

// Process-supervisor errors (§4.7): spawn failure is distinct from a
// process that spawned and exited non-zero.
var (
	ErrFailedToSpawn      = errors.New("process failed to spawn")
	ErrFailedToCreatePipe = errors.New("failed to create stdio pipe")
	ErrStreamAlreadyTaken = errors.New("stdio stream already handed to a reader")
)

// Fatal errors (§7): only signal-handler/config-dir-open failures.
var (
	ErrFailedToBindSignalHandler = errors.New("failed to bind signal handler")
	ErrFailedToOpenConfigDir     = errors.New("failed to open config directory")
)

// Re-exported stdlib helpers so call sites don't need a second import.
var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
