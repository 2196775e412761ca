// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfcompiler/mongowf/internal/bsonval"
	"github.com/wfcompiler/mongowf/internal/fieldpath"
)

func eqField(name string, v bsonval.Value, op string) Selector {
	return FieldSelector{Field: Field(fieldpath.NewNamed(name)), Op: op, Value: v}
}

// TestAdjacentMatchCoalesce is scenario S1 of spec §8: two adjacent Match
// stages collapse into a single Match with a conjoined selector.
func TestAdjacentMatchCoalesce(t *testing.T) {
	w := Match(Match(Read("c"), eqField("a", bsonval.NewInt32(1), "$eq")), eqField("b", bsonval.NewInt32(2), "$eq"))

	m, ok := w.(*MatchOp)
	require.True(t, ok, "coalesce must collapse to a single MatchOp, got %T", w)
	_, isMatch := m.Src.(*MatchOp)
	assert.False(t, isMatch, "no nested MatchOp should remain")

	and, ok := m.Selector.(AndSelector)
	require.True(t, ok)
	assert.Len(t, and.Clauses, 2)
}

// TestCoalesceIdempotent is invariant 1 of spec §8: coalesce(coalesce(w)) == coalesce(w).
// Every constructor already runs Coalesce once, so re-running it on an
// already-built term must return an identical tree.
func TestCoalesceIdempotent(t *testing.T) {
	w := Limit(Skip(Match(Read("c"), eqField("a", bsonval.NewInt32(1), "$eq")), 10), 5)
	again := Coalesce(w)
	assert.Equal(t, String(w), String(again))
}

func TestLimitAfterLimitTakesMinimum(t *testing.T) {
	w := Limit(Limit(Read("c"), 10), 5)
	lim, ok := w.(*LimitOp)
	require.True(t, ok)
	assert.Equal(t, int64(5), lim.N)
	_, nested := lim.Src.(*LimitOp)
	assert.False(t, nested)
}

func TestSkipAfterSkipSums(t *testing.T) {
	w := Skip(Skip(Read("c"), 3), 4)
	sk, ok := w.(*SkipOp)
	require.True(t, ok)
	assert.Equal(t, int64(7), sk.N)
}

func TestOutAfterReadIsNoop(t *testing.T) {
	w := Out(Read("c"), "c")
	// rule 13: an Out whose target matches its Read source degenerates to
	// that bare Read — writing a collection's own contents back over itself
	// is a no-op, so there is no OutOp left to run.
	r, ok := w.(*ReadOp)
	require.True(t, ok, "Out(Read(c), c) should degenerate to a bare ReadOp, got %T", w)
	assert.Equal(t, "c", r.Collection)
}

func TestProjectAfterProjectMergesDisjointShapes(t *testing.T) {
	inner := Project(Read("c"), Reshape{Entries: []ReshapeEntry{
		{Name: "a", Expr: FieldExpr{Var: Field(fieldpath.NewNamed("a"))}},
	}}, ExcludeId)
	outer := Project(inner, Reshape{Entries: []ReshapeEntry{
		{Name: "b", Expr: FieldExpr{Var: Field(fieldpath.NewNamed("b"))}},
	}}, ExcludeId)

	p, ok := outer.(*ProjectOp)
	require.True(t, ok)
	_, nested := p.Src.(*ProjectOp)
	assert.False(t, nested, "disjoint project/project should merge into one stage")
}
