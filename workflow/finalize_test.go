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
)

// TestFoldLeftNormalization is scenario S5 of spec §8: Finalize wraps a
// FoldLeft's head in Project({value: ROOT}, IncludeId) and appends a default
// Reduce to any tail entry lacking one.
func TestFoldLeftNormalization(t *testing.T) {
	w := &FoldLeftOp{Head: Read("a"), Tail: []Op{Read("b")}}

	finalized := Finalize(w)
	fl, ok := finalized.(*FoldLeftOp)
	require.True(t, ok)

	headProj, ok := fl.Head.(*ProjectOp)
	require.True(t, ok, "head must be wrapped in a Project, got %T", fl.Head)
	assert.Equal(t, IncludeId, headProj.Id)
	require.Len(t, headProj.Shape.Entries, 1)
	assert.Equal(t, ExprLabel, headProj.Shape.Entries[0].Name)
	fe, ok := headProj.Shape.Entries[0].Expr.(FieldExpr)
	require.True(t, ok)
	assert.True(t, fe.Var.IsRoot())

	require.Len(t, fl.Tail, 1)
	_, isReduce := fl.Tail[0].(*ReduceOp)
	assert.True(t, isReduce, "a reduce-less tail entry must gain a default Reduce")
}

// TestFinalizeIdempotent is invariant 5 of spec §8: finalize(finalize(w)) == finalize(w).
func TestFinalizeIdempotent(t *testing.T) {
	w := &FoldLeftOp{Head: Read("a"), Tail: []Op{Read("b")}}
	once := Finalize(w)
	twice := Finalize(once)
	assert.Equal(t, String(once), String(twice))
}

func TestFinalizeTrimsUnusedProjectFields(t *testing.T) {
	shape := Reshape{Entries: []ReshapeEntry{
		{Name: "keep", Expr: FieldExpr{Var: Field(mustPath("keep"))}},
		{Name: "drop", Expr: FieldExpr{Var: Field(mustPath("drop"))}},
	}}
	inner := Project(Read("c"), shape, ExcludeId)
	outer := Match(inner, eqField("keep", mustLit(1), "$eq"))

	finalized := Finalize(outer)
	m, ok := finalized.(*MatchOp)
	require.True(t, ok)
	p, ok := m.Src.(*ProjectOp)
	require.True(t, ok)

	_, hasDrop := p.Shape.Lookup("drop")
	assert.False(t, hasDrop, "a field referenced by nothing above should be trimmed")
	_, hasKeep := p.Shape.Lookup("keep")
	assert.True(t, hasKeep)
}

func TestPromoteShapeAppendsIdentityProjection(t *testing.T) {
	shape := Reshape{Entries: []ReshapeEntry{
		{Name: "a", Expr: FieldExpr{Var: Field(mustPath("a"))}},
	}}
	w := Group(Read("c"), Grouped{Entries: []GroupEntry{
		{Name: "a", Expr: GroupExpr{Accumulator: "$sum", Arg: LiteralExpr{Value: mustLit(1)}}},
	}}, LiteralExpr{Value: bsonval.Null()})
	_ = shape

	finalized := Finalize(w)
	p, ok := finalized.(*ProjectOp)
	require.True(t, ok, "a Group's statically-known shape should be promoted into a trailing Project, got %T", finalized)
	assert.Equal(t, IgnoreId, p.Id)
}
