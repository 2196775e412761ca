// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wflog

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNopDiscardsEverything(t *testing.T) {
	var n Nop
	// None of these should panic; Nop has nothing else to assert on.
	n.Trace("t", F("k", "v"))
	n.Debug("d")
	n.Info("i")
	n.Warn("w")
	n.Error("e")
}

func TestNewLogrusWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	base.SetLevel(logrus.InfoLevel)

	l := NewLogrus(base)
	l.Info("merge decision", F("rule", "project-after-group"))

	out := buf.String()
	assert.Contains(t, out, "merge decision")
	assert.Contains(t, out, "rule=project-after-group")
}

func TestNewLogrusNilUsesStandardLogger(t *testing.T) {
	l := NewLogrus(nil)
	assert.NotNil(t, l)
}
