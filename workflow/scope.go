// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"sort"

	"github.com/wfcompiler/mongowf/internal/bsonval"
)

// Scope maps free JavaScript identifiers used inside a map-reduce body to
// the BSON values shipped alongside it.
type Scope map[string]bsonval.Value

// MergeScope left-biased-unions two scopes. It fails (returns ok=false) if
// the same identifier maps to two different values in the two scopes, and
// the caller then declines the rewrite that needed the merged scope.
func MergeScope(a, b Scope) (Scope, bool) {
	out := make(Scope, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok {
			if !existing.Equal(v) {
				return nil, false
			}
			continue
		}
		out[k] = v
	}
	return out, true
}

// Keys returns the scope's identifiers in sorted order, used anywhere a
// scope needs a deterministic rendering (BSON serialization, debug output).
func (s Scope) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
