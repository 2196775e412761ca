// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfcompiler/mongowf/internal/bsonval"
)

func TestPipelineTaskBSONIsStageArray(t *testing.T) {
	stage := bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "$limit", Value: bsonval.NewInt64(5)}))
	pt := PipelineTask{Source: ReadTask{Collection: "c"}, Stages: []bsonval.Value{stage}}

	v := pt.BSON()
	require.Equal(t, bsonval.KindArray, v.Kind())
	assert.Len(t, v.Array(), 1)
}

func TestMapReduceInlineOutputDefault(t *testing.T) {
	mr := MapReduce{
		Map:    bsonval.NewJavaScript("function(){}"),
		Reduce: bsonval.NewJavaScript("function(){}"),
		Scope:  bsonval.NewDocument(bsonval.NewDoc()),
	}
	tk := MapReduceTask{Source: ReadTask{Collection: "c"}, Spec: mr}

	doc := tk.BSON().Document()
	out, ok := doc.Lookup("out")
	require.True(t, ok)
	inline, ok := out.Document().Lookup("inline")
	require.True(t, ok)
	assert.Equal(t, int32(1), inline.Int32())
}

func TestMapReduceNamedOutputNonAtomic(t *testing.T) {
	mr := MapReduce{
		Map:    bsonval.NewJavaScript("function(){}"),
		Reduce: bsonval.NewJavaScript("function(){}"),
		Scope:  bsonval.NewDocument(bsonval.NewDoc()),
		Out:    Output{Named: true, Collection: "out_coll", Action: ActionMerge, NonAtomic: true},
	}
	tk := MapReduceTask{Source: ReadTask{Collection: "c"}, Spec: mr}

	doc := tk.BSON().Document()
	out, ok := doc.Lookup("out")
	require.True(t, ok)
	merge, ok := out.Document().Lookup("merge")
	require.True(t, ok)
	assert.Equal(t, "out_coll", merge.Text())
	nonAtomic, ok := out.Document().Lookup("nonAtomic")
	require.True(t, ok)
	assert.True(t, nonAtomic.Bool())
}

func TestFoldLeftTaskBSONOrdersHeadThenTail(t *testing.T) {
	fl := FoldLeftTask{
		Head: ReadTask{Collection: "a"},
		Tail: []Task{ReadTask{Collection: "b"}, ReadTask{Collection: "c"}},
	}
	v := fl.BSON()
	require.Equal(t, bsonval.KindArray, v.Kind())
	assert.Len(t, v.Array(), 3)
}

func TestJoinTaskBSONIsUnion(t *testing.T) {
	j := JoinTask{Set: []Task{ReadTask{Collection: "a"}, ReadTask{Collection: "b"}}}
	v := j.BSON()
	assert.Len(t, v.Array(), 2)
}
