// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wflog defines the narrow structured-logging surface the compiler
// uses to narrate coalesce rewrites, merge decisions, and shape promotions.
// The interface shape follows the teacher's mongo/mongolog package
// (Trace/Debug/Info/Warn/Error plus structured Field values); the default
// implementation is backed by logrus instead of mongolog's hand-rolled
// formatter.
package wflog

import "github.com/sirupsen/logrus"

// Level is a log severity, ordered from most to least verbose.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field inline at a call site: wflog.F("rule", "match-after-match").
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Logger is the structured logging surface the compiler depends on.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Nop is a Logger that discards everything; it is the default when no
// logger is configured, so the compiler never has to nil-check.
type Nop struct{}

func (Nop) Trace(string, ...Field) {}
func (Nop) Debug(string, ...Field) {}
func (Nop) Info(string, ...Field)  {}
func (Nop) Warn(string, ...Field)  {}
func (Nop) Error(string, ...Field) {}

// logrusLogger adapts a *logrus.Logger to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus wraps a *logrus.Logger (or nil, for logrus's standard logger)
// as a Logger.
func NewLogrus(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) with(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return l.entry.WithFields(data)
}

func (l *logrusLogger) Trace(msg string, fields ...Field) { l.with(fields).Trace(msg) }
func (l *logrusLogger) Debug(msg string, fields ...Field) { l.with(fields).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields ...Field)  { l.with(fields).Info(msg) }
func (l *logrusLogger) Warn(msg string, fields ...Field)  { l.with(fields).Warn(msg) }
func (l *logrusLogger) Error(msg string, fields ...Field) { l.with(fields).Error(msg) }
