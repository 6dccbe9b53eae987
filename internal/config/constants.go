package config

import "time"

// Application metadata
const (
	AppName = "jigctl"
	Version = "0.1.0"

	ConfigFile = "jigctl.yaml"
)

// Logging defaults
const (
	LogLevel  = "info"
	LogFormat = "console"
)

// Timing constants
const (
	DefaultProbeTimeout    = 5 * time.Second
	DefaultQuiesceDelay    = 300 * time.Millisecond
	DefaultTerminateGrace  = 5 * time.Second
	DefaultProcessTimeout  = 30 * time.Second
	ShutdownDrainTimeout   = 5 * time.Second
)

// DefaultWorkDir is the working directory used when a unit doesn't specify one.
const DefaultWorkDir = "."

// DefaultChildPATH is prepended ahead of the inherited PATH for every spawned
// child process.
const DefaultChildPATH = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// DefaultBusSubscriberBuffer sizes each EventBus subscriber's channel.
const DefaultBusSubscriberBuffer = 64
