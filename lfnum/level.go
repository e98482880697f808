// lfnum provides constants used across the logfire ecosystem
package lfnum

import "fmt"

type Level int32

const (
	// The numbers leave room between levels so that additional
	// severities can be slotted in without renumbering. Notice sits
	// just above Info: it marks events worth surfacing by default.
	TraceLevel    Level = 1  // trace
	DebugLevel    Level = 5  // debug
	InfoLevel     Level = 9  // info
	NoticeLevel   Level = 10 // notice
	WarnLevel     Level = 13 // warning
	ErrorLevel    Level = 17 // error
	CriticalLevel Level = 21 // critical
)

const MaxLevel = CriticalLevel

// String returns the name a record's logfire.level attribute carries.
func (level Level) String() string {
	switch level {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case NoticeLevel:
		return "notice"
	case WarnLevel:
		return "warning"
	case ErrorLevel:
		return "error"
	case CriticalLevel:
		return "critical"
	default:
		return fmt.Sprintf("Level(%d)", int32(level))
	}
}

var levelNames = map[string]Level{
	"trace":    TraceLevel,
	"debug":    DebugLevel,
	"info":     InfoLevel,
	"notice":   NoticeLevel,
	"warning":  WarnLevel,
	"error":    ErrorLevel,
	"critical": CriticalLevel,
}

// LevelString is the inverse of Level.String.
func LevelString(s string) (Level, error) {
	if level, ok := levelNames[s]; ok {
		return level, nil
	}
	return 0, fmt.Errorf("%s does not belong to Level values", s)
}
