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
	"github.com/wfcompiler/mongowf/internal/wfconfig"
	"github.com/wfcompiler/mongowf/workflow/task"
)

// TestSkipLimitCrushesInOrder is scenario S2 of spec §8: rule 6 rewrites
// Skip(10) then Limit(5) into the semantically equivalent Limit(15) then
// Skip(10) — sinking the skip below a widened limit — and crush preserves
// that execution order in the rendered pipeline.
func TestSkipLimitCrushesInOrder(t *testing.T) {
	w := Limit(Skip(Read("c"), 10), 5)

	tk := Compile(w)
	pt, ok := tk.(task.PipelineTask)
	require.True(t, ok, "a pure pipeline chain should crush to a single PipelineTask, got %T", tk)
	require.Len(t, pt.Stages, 2)

	limitKey := pt.Stages[0].Document().Keys()
	require.Equal(t, []string{"$limit"}, limitKey)
	v, _ := pt.Stages[0].Document().Lookup("$limit")
	assert.Equal(t, int64(15), v.Int64())

	skipKey := pt.Stages[1].Document().Keys()
	require.Equal(t, []string{"$skip"}, skipKey)
	v, _ = pt.Stages[1].Document().Lookup("$skip")
	assert.Equal(t, int64(10), v.Int64())
}

// TestWhereForcesMapReduce is scenario S4 of spec §8: a Match carrying a
// Where selector cannot run in a pipeline, so it crushes to a MapReduceTask
// with identity map/reduce and the Where clause pushed down as selection.
func TestWhereForcesMapReduce(t *testing.T) {
	w := Match(Read("c"), WhereSelector{JS: "true"})

	tk := Compile(w)
	mr, ok := tk.(task.MapReduceTask)
	require.True(t, ok, "a $where selector must force map-reduce, got %T", tk)

	require.NotNil(t, mr.Spec.Selection)
	sel := *mr.Spec.Selection
	v, ok := sel.Document().Lookup("$where")
	require.True(t, ok)
	assert.Equal(t, "true", v.JavaScript())

	assert.Equal(t, KindOf(mr.Spec.Map), bsonval.KindJavaScript)
	assert.Equal(t, KindOf(mr.Spec.Reduce), bsonval.KindJavaScript)

	_, isRead := mr.Source.(task.ReadTask)
	assert.True(t, isRead)
}

func KindOf(v bsonval.Value) bsonval.Kind { return v.Kind() }

// TestMapReduceNestedSelectorIsNotDropped is a regression test: a Match
// sitting beneath a Map stage (a shape Finalize's MapOp lowering never
// rewrites away) was previously peeled only off the top of the crushed
// term, so its selector never reached the compiled job at all.
func TestMapReduceNestedSelectorIsNotDropped(t *testing.T) {
	fn := JSFunc{Params: []string{"key", "value"}, Body: "return [key, value];"}
	w := Map(Match(Read("c"), WhereSelector{JS: "this.a > 1"}), fn, nil)

	tk := Compile(w)
	mr, ok := tk.(task.MapReduceTask)
	require.True(t, ok, "a Map over a non-pipelineable Match must still crush to a MapReduceTask, got %T", tk)

	require.NotNil(t, mr.Spec.Selection, "the Match beneath the Map stage must surface as the job's selection")
	sel := *mr.Spec.Selection
	v, ok := sel.Document().Lookup("$where")
	require.True(t, ok)
	assert.Equal(t, "this.a > 1", v.JavaScript())

	_, isRead := mr.Source.(task.ReadTask)
	assert.True(t, isRead)
}

// TestMapReduceChainsWhenSourceIsItselfMapReduce is a regression test: when
// the input beneath a Map stage is itself a separate map-reduce job (here a
// FlatMap that Match/Sort/Limit peeling can't flatten away), nesting it as
// this job's Source would silently discard it, since MapReduceTask.BSON
// never reads Source. The two jobs must chain instead.
func TestMapReduceChainsWhenSourceIsItselfMapReduce(t *testing.T) {
	innerFn := JSFunc{Params: []string{"key", "value"}, Body: "return [[key, value]];"}
	outerFn := JSFunc{Params: []string{"key", "value"}, Body: "return [key, value];"}
	w := Map(FlatMap(Read("c"), innerFn, nil), outerFn, nil)

	tk := Compile(w)
	fl, ok := tk.(task.FoldLeftTask)
	require.True(t, ok, "chaining two map-reduce jobs must produce a FoldLeftTask, got %T", tk)

	head, ok := fl.Head.(task.MapReduceTask)
	require.True(t, ok)
	_, isRead := head.Source.(task.ReadTask)
	assert.True(t, isRead)

	require.Len(t, fl.Tail, 1)
	_, ok = fl.Tail[0].(task.MapReduceTask)
	assert.True(t, ok)
}

func TestPipelineBatchLimitChunksStages(t *testing.T) {
	w := Limit(Skip(Match(Read("c"), eqField("a", mustLit(1), "$eq")), 1), 5)

	opts := wfconfig.Default()
	opts.PipelineBatchLimit = 1
	tk := CompileWithOptions(w, opts)

	// With a batch limit of 1, three chained stages should produce a chain
	// of PipelineTasks, each wrapping exactly one stage.
	count := 0
	cur := tk
	for {
		pt, ok := cur.(task.PipelineTask)
		if !ok {
			break
		}
		assert.Len(t, pt.Stages, 1)
		count++
		cur = pt.Source
	}
	assert.Equal(t, 3, count)
}

func TestFoldLeftCrushesToFoldLeftTask(t *testing.T) {
	w := FoldLeft(Read("a"), Read("b"))
	tk := Compile(w)
	fl, ok := tk.(task.FoldLeftTask)
	require.True(t, ok)
	assert.Len(t, fl.Tail, 1)
}
