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

func TestPathString(t *testing.T) {
	p := New(Name("a"), Name("b"), Index(3))
	assert.Equal(t, "a.b.3", p.String())
	assert.Equal(t, "$a.b.3", p.FieldRef())
}

func TestPathConcatAssociative(t *testing.T) {
	a := NewNamed("a")
	b := NewNamed("b")
	c := NewNamed("c")

	left := a.Concat(b).Concat(c)
	right := a.Concat(b.Concat(c))
	assert.True(t, left.Equal(right), "path concat must be associative")
}

// TestPathConcatFlattens is invariant 7 of spec §8: (a \ b).flatten == a.flatten ++ b.flatten.
func TestPathConcatFlattens(t *testing.T) {
	a := New(Name("x"), Name("y"))
	b := New(Name("z"), Index(1))
	got := a.Concat(b).Leaves()

	want := append(append([]Leaf{}, a.Leaves()...), b.Leaves()...)
	assert.Equal(t, len(want), len(got))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]))
	}
}

func TestPathStartsWith(t *testing.T) {
	p := NewNamed("a", "b", "c")
	assert.True(t, p.StartsWith(NewNamed("a", "b")))
	assert.True(t, p.StartsWith(NewNamed("a", "b", "c")))
	assert.False(t, p.StartsWith(NewNamed("a", "x")))
	assert.False(t, p.StartsWith(NewNamed("a", "b", "c", "d")))
}

func TestPathParent(t *testing.T) {
	p := NewNamed("a", "b")
	parent, ok := p.Parent()
	assert.True(t, ok)
	assert.Equal(t, "a", parent.String())

	_, ok = NewNamed("a").Parent()
	assert.False(t, ok, "a single-leaf path has no parent")
}

func TestLeafToName(t *testing.T) {
	idx := Index(3)
	assert.True(t, idx.IsIndex())
	named := idx.ToName()
	assert.True(t, named.IsName())
	assert.Equal(t, "3", named.NameValue())

	// ToName on an already-named leaf is a no-op.
	assert.Equal(t, Name("x"), Name("x").ToName())
}

func TestPathJSExpr(t *testing.T) {
	p := New(Name("a"), Name("b"), Index(3))
	assert.Equal(t, "doc.a.b[3]", p.JSExpr("doc"))
}
