// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNameGenDistinctAndFresh is invariant 7 of spec §8:
// genUniqNames(n, S) returns n distinct names, none of which are in S.
func TestNameGenDistinctAndFresh(t *testing.T) {
	collisions := []string{"__sd_tmp_1", "__sd_tmp_3"}
	gen := NewNameGen(DefaultTempPrefix, collisions...)

	names := gen.NextN(5)

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		assert.False(t, seen[n], "name %q produced twice", n)
		seen[n] = true
		for _, c := range collisions {
			assert.NotEqual(t, c, n, "generator must skip seeded collisions")
		}
	}
}

func TestNameGenNeverRepeatsAcrossCalls(t *testing.T) {
	gen := NewNameGen("p_")
	first := gen.Next()
	second := gen.Next()
	assert.NotEqual(t, first, second)
}

func TestIndexGenSkipsCollisions(t *testing.T) {
	gen := NewIndexGen(0, 1)
	assert.Equal(t, 2, gen.Next())
	assert.Equal(t, 3, gen.Next())
}
