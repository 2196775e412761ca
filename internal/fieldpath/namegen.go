// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package fieldpath

import "strconv"

// DefaultTempPrefix is the reserved prefix for synthesized field names, so
// they never collide with a user-visible field in downstream rendering.
const DefaultTempPrefix = "__sd_tmp_"

// NameGen produces the deterministic, infinite lazy sequence
// `<prefix>0, <prefix>1, ...`, skipping any name in its collision set. It is
// explicit, mutable state threaded by the caller (merge, most notably) —
// never a package-level generator — so output stays reproducible across
// runs and test snapshots.
type NameGen struct {
	prefix     string
	counter    uint64
	collisions map[string]struct{}
}

// NewNameGen builds a generator seeded with an explicit collision set.
func NewNameGen(prefix string, collisions ...string) *NameGen {
	g := &NameGen{prefix: prefix, collisions: make(map[string]struct{}, len(collisions))}
	for _, c := range collisions {
		g.collisions[c] = struct{}{}
	}
	return g
}

// Next returns the next fresh name, skipping collisions.
func (g *NameGen) Next() string {
	for {
		candidate := g.prefix + strconv.FormatUint(g.counter, 10)
		g.counter++
		if _, bad := g.collisions[candidate]; !bad {
			g.collisions[candidate] = struct{}{}
			return candidate
		}
	}
}

// NextN returns n distinct fresh names, none of which collide with the
// generator's collision set (including names it has already produced).
func (g *NameGen) NextN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// NextPath is a convenience wrapper producing a single-leaf Path.
func (g *NameGen) NextPath() Path {
	return NewNamed(g.Next())
}

// IndexGen produces the deterministic sequence 0, 1, 2, ..., skipping any
// index in its collision set.
type IndexGen struct {
	counter    int
	collisions map[int]struct{}
}

// NewIndexGen builds an index generator seeded with a collision set.
func NewIndexGen(collisions ...int) *IndexGen {
	g := &IndexGen{collisions: make(map[int]struct{}, len(collisions))}
	for _, c := range collisions {
		g.collisions[c] = struct{}{}
	}
	return g
}

// Next returns the next fresh index.
func (g *IndexGen) Next() int {
	for {
		candidate := g.counter
		g.counter++
		if _, bad := g.collisions[candidate]; !bad {
			g.collisions[candidate] = struct{}{}
			return candidate
		}
	}
}
