package utils

import (
	"log"
	"os"
	"strings"
)

// Logger is a thin leveled wrapper over the standard log package.
// Levels: debug < info < warn < error. Default level is info.
type Logger struct {
	base  *log.Logger
	level int
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

func NewLogger() *Logger {
	lvl := levelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("VIGIL_LOG_LEVEL"))) {
	case "debug":
		lvl = levelDebug
	case "warn", "warning":
		lvl = levelWarn
	case "error":
		lvl = levelError
	}
	return &Logger{
		base:  log.New(os.Stderr, "", log.LstdFlags|log.LUTC),
		level: lvl,
	}
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.level > levelInfo {
		return
	}
	l.base.Printf("INFO "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.level > levelDebug {
		return
	}
	l.base.Printf("DEBUG "+format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil || l.level > levelWarn {
		return
	}
	l.base.Printf("WARN "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.base.Printf("ERROR "+format, args...)
}
