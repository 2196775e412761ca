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

// TestMergeIdenticalTerms is invariant 3 of spec §8: merge(w, w) returns
// ((ROOT, ROOT), w) without consuming any fresh names.
func TestMergeIdenticalTerms(t *testing.T) {
	w := Match(Read("c"), eqField("a", bsonval.NewInt32(1), "$eq"))
	gen := fieldpath.NewNameGen(fieldpath.DefaultTempPrefix)

	lb, rb, unified := Merge(gen, w, w)

	assert.True(t, lb.IsRoot())
	assert.True(t, rb.IsRoot())
	assert.Equal(t, String(w), String(unified))
	assert.Equal(t, "__sd_tmp_0", gen.Next(), "no fresh name should have been consumed by merging identical terms")
}

// TestMergePureOfPure is scenario S3 of spec §8.
func TestMergePureOfPure(t *testing.T) {
	gen := fieldpath.NewNameGen(fieldpath.DefaultTempPrefix)
	l := Pure(bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "x", Value: bsonval.NewInt32(1)})))
	r := Pure(bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "y", Value: bsonval.NewInt32(2)})))

	lb, rb, unified := Merge(gen, l, r)

	lp, ok := lb.Path()
	require.True(t, ok)
	assert.Equal(t, "__sd_tmp_0", lp.String())
	rp, ok := rb.Path()
	require.True(t, ok)
	assert.Equal(t, "__sd_tmp_1", rp.String())

	pure, ok := unified.(*PureOp)
	require.True(t, ok)
	require.Equal(t, bsonval.KindDocument, pure.Value.Kind())

	sub, ok := pure.Value.Document().Lookup("__sd_tmp_0")
	require.True(t, ok)
	assert.Equal(t, bsonval.KindDocument, sub.Kind())
	xv, ok := sub.Document().Lookup("x")
	require.True(t, ok)
	assert.Equal(t, int32(1), xv.Int32())
}

// TestMergeRecoversBothSides is invariant 4 of spec §8, checked structurally:
// projecting the unified term by lBase (rBase) yields a term whose shape
// corresponds to l (r) — here asserted on the FoldLeft-of-projections
// fallback, whose head and tail projections must carry lBase and rBase,
// since a full document-stream equivalence check needs an executor this
// compiler does not provide.
func TestMergeRecoversBothSides(t *testing.T) {
	gen := fieldpath.NewNameGen(fieldpath.DefaultTempPrefix)
	l := Read("left")
	r := Read("right")

	lb, rb, unified := Merge(gen, l, r)

	// Neither Read has a child to merge against the other; the only
	// always-succeeding path is the foldLeft-of-projections fallback.
	fl, ok := unified.(*FoldLeftOp)
	require.True(t, ok, "two unrelated sources fall back to FoldLeft, got %T", unified)
	require.Len(t, fl.Tail, 1)

	headProj, ok := fl.Head.(*ProjectOp)
	require.True(t, ok)
	_, hasLB := headProj.Shape.Lookup(mustLeaf(lb))
	assert.True(t, hasLB)

	tailProj, ok := fl.Tail[0].(*ProjectOp)
	require.True(t, ok)
	_, hasRB := tailProj.Shape.Lookup(mustLeaf(rb))
	assert.True(t, hasRB)
}

// TestMergeProjectPipelineReconcilesActualChild is a regression test: merging
// a Project against a pipeline stage must reconcile the Project's source
// against the stage's own child, not assume the two are already identical.
// l sources from "c", r's child sources from the distinct collection "d";
// a correct merge keeps both sources instead of silently reattaching r onto
// l's source.
func TestMergeProjectPipelineReconcilesActualChild(t *testing.T) {
	gen := fieldpath.NewNameGen(fieldpath.DefaultTempPrefix)
	l := Project(Read("c"), Reshape{Entries: []ReshapeEntry{
		{Name: "a", Expr: FieldExpr{Var: Field(fieldpath.NewNamed("a"))}},
	}}, ExcludeId)
	r := Match(Read("d"), eqField("b", bsonval.NewInt32(1), "$eq"))

	_, rb, unified := Merge(gen, l, r)

	m, ok := unified.(*MatchOp)
	require.True(t, ok, "expected the rewritten right-hand Match on top, got %T", unified)
	proj, ok := m.Src.(*ProjectOp)
	require.True(t, ok, "expected the reconciled Project beneath it, got %T", m.Src)
	fl, ok := proj.Src.(*FoldLeftOp)
	require.True(t, ok, "merging two unrelated sources must fall back to FoldLeft, got %T", proj.Src)

	headProj, ok := fl.Head.(*ProjectOp)
	require.True(t, ok)
	headSrc, ok := headProj.Src.(*ReadOp)
	require.True(t, ok)
	assert.Equal(t, "c", headSrc.Collection, "l's original source must survive the merge")

	require.Len(t, fl.Tail, 1)
	tailProj, ok := fl.Tail[0].(*ProjectOp)
	require.True(t, ok)
	tailSrc, ok := tailProj.Src.(*ReadOp)
	require.True(t, ok)
	assert.Equal(t, "d", tailSrc.Collection, "r's own child must be reconciled, not discarded, by the merge")

	_, hasRB := proj.Shape.Lookup(mustLeaf(rb))
	assert.True(t, hasRB, "r's recovered base must be a field of the reconciled Project's shape")
}

func mustLeaf(d DocVar) string {
	p, ok := d.Path()
	if !ok {
		return ""
	}
	return p.String()
}
