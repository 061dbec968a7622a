/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package log provides module based logging for the test suite.
// Each package creates its own named logger; levels can be tuned per
// module at runtime.
package log

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level defines a log level for logging messages.
type Level int

// Log levels.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

//nolint:gochecknoglobals
var (
	levelsMtx    sync.RWMutex
	moduleLevels = map[string]Level{}
	defaultLevel = INFO

	backendOnce sync.Once
	backend     *logrus.Logger
)

// Log is a module based logger backed by logrus.
type Log struct {
	module string
}

// New creates a logger implementation based on given module name.
func New(module string) *Log {
	return &Log{module: module}
}

// SetLevel sets the log level for given module.
func SetLevel(module string, level Level) {
	levelsMtx.Lock()
	defer levelsMtx.Unlock()

	moduleLevels[module] = level
}

// SetDefaultLevel sets the log level used by modules without an explicit
// level.
func SetDefaultLevel(level Level) {
	levelsMtx.Lock()
	defer levelsMtx.Unlock()

	defaultLevel = level
}

// GetLevel returns the log level for given module.
func GetLevel(module string) Level {
	levelsMtx.RLock()
	defer levelsMtx.RUnlock()

	if level, ok := moduleLevels[module]; ok {
		return level
	}

	return defaultLevel
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(level) {
	case "CRITICAL":
		return CRITICAL, nil
	case "ERROR":
		return ERROR, nil
	case "WARNING", "WARN":
		return WARNING, nil
	case "INFO":
		return INFO, nil
	case "DEBUG":
		return DEBUG, nil
	}

	return ERROR, errors.New("invalid log level: " + level)
}

// Fatalf logs a message at CRITICAL level and exits.
func (l *Log) Fatalf(msg string, args ...interface{}) {
	logger().WithField("module", l.module).Fatalf(msg, args...)
}

// Panicf logs a message at CRITICAL level and panics.
func (l *Log) Panicf(msg string, args ...interface{}) {
	logger().WithField("module", l.module).Panicf(msg, args...)
}

// Errorf logs a message at ERROR level.
func (l *Log) Errorf(msg string, args ...interface{}) {
	if GetLevel(l.module) >= ERROR {
		logger().WithField("module", l.module).Errorf(msg, args...)
	}
}

// Warnf logs a message at WARNING level.
func (l *Log) Warnf(msg string, args ...interface{}) {
	if GetLevel(l.module) >= WARNING {
		logger().WithField("module", l.module).Warnf(msg, args...)
	}
}

// Infof logs a message at INFO level.
func (l *Log) Infof(msg string, args ...interface{}) {
	if GetLevel(l.module) >= INFO {
		logger().WithField("module", l.module).Infof(msg, args...)
	}
}

// Debugf logs a message at DEBUG level.
func (l *Log) Debugf(msg string, args ...interface{}) {
	if GetLevel(l.module) >= DEBUG {
		logger().WithField("module", l.module).Debugf(msg, args...)
	}
}

func logger() *logrus.Logger {
	backendOnce.Do(func() {
		backend = logrus.New()
		backend.SetOutput(os.Stderr)
		// module levels are enforced by this package, the backend passes
		// everything through
		backend.SetLevel(logrus.DebugLevel)
	})

	return backend
}
