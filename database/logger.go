/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/tabula/utils"
)

// Logger is the structured logger used by the store and the repository.
// fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

var (
	defaultLogger   Logger
	defaultLoggerMu sync.RWMutex
)

// SetDefaultLogger replaces the process-wide logger returned by GetLogger.
// A nil logger restores the logrus-backed default.
func SetDefaultLogger(log Logger) {
	defaultLoggerMu.Lock()
	defaultLogger = log
	defaultLoggerMu.Unlock()
}

// GetLogger returns the process-wide logger, creating the DATABASE logrus
// logger on first use.
func GetLogger() Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	if l != nil {
		return l
	}

	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogrusLogger("DATABASE")
	}
	return defaultLogger
}

// LogrusLogger writes through a named logger from utils.NewLogger.
type LogrusLogger struct {
	logger *utils.Logger
}

func NewLogrusLogger(name string) *LogrusLogger {
	return &LogrusLogger{logger: utils.NewLogger(name)}
}

func (l *LogrusLogger) Debug(msg string, fields ...interface{}) { l.with(fields).Debug(msg) }

func (l *LogrusLogger) Info(msg string, fields ...interface{}) { l.with(fields).Info(msg) }

func (l *LogrusLogger) Warn(msg string, fields ...interface{}) { l.with(fields).Warn(msg) }

func (l *LogrusLogger) Error(msg string, fields ...interface{}) { l.with(fields).Error(msg) }

// with pairs up fields; a trailing key without value and non-string keys are
// dropped.
func (l *LogrusLogger) with(fields []interface{}) *logrus.Entry {
	data := make(logrus.Fields, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			data[key] = fields[i+1]
		}
	}
	return l.logger.WithFields(data)
}
