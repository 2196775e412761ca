// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import "github.com/wfcompiler/mongowf/internal/wflog"

// logger is package-level because it instruments the compiler's own
// internals (rewrite narration), not domain state; swapping it never
// affects what a workflow computes. Defaults to a no-op so callers never
// have to nil-check.
var logger wflog.Logger = wflog.Nop{}

// SetLogger installs the Logger the coalesce rewriter and merge planner
// narrate their decisions to.
func SetLogger(l wflog.Logger) {
	if l == nil {
		l = wflog.Nop{}
	}
	logger = l
}
