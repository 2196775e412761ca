// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package task defines the executable task tree that crush (Component G)
// lowers a workflow into: the shape the driver actually consumes. It knows
// nothing about the workflow IR — crush hands it already-rendered BSON
// stage bodies and JavaScript source — so there is no import cycle back to
// package workflow.
package task

import "github.com/wfcompiler/mongowf/internal/bsonval"

// Task is a node of the executable task tree.
type Task interface {
	// BSON renders the task as the document (or array, for a pipeline) the
	// driver would send over the wire.
	BSON() bsonval.Value
	taskNode()
}

// PureTask is a constant document source.
type PureTask struct{ Value bsonval.Value }

func (PureTask) taskNode()          {}
func (t PureTask) BSON() bsonval.Value { return t.Value }

// ReadTask reads an entire collection.
type ReadTask struct{ Collection string }

func (ReadTask) taskNode() {}
func (t ReadTask) BSON() bsonval.Value {
	return bsonval.NewDocument(bsonval.NewDoc(
		bsonval.Elem{Key: "$collection", Value: bsonval.NewText(t.Collection)},
	))
}

// PipelineTask runs Stages, in order, against Source's output within a
// single aggregation request. Stages are already-rendered one-key stage
// documents (`{"$match": {...}}`, etc.) — crush is responsible for that
// rendering, since only it knows how to turn an Op's Expr/Selector/Reshape
// trees into wire BSON.
type PipelineTask struct {
	Source Task
	Stages []bsonval.Value
}

func (PipelineTask) taskNode() {}
func (t PipelineTask) BSON() bsonval.Value {
	return bsonval.NewArray(t.Stages...)
}

// OutputAction names the merge behavior of a map-reduce job that writes to
// a named output collection.
type OutputAction int

const (
	ActionReplace OutputAction = iota
	ActionMerge
	ActionReduce
)

func (a OutputAction) String() string {
	switch a {
	case ActionReplace:
		return "replace"
	case ActionMerge:
		return "merge"
	case ActionReduce:
		return "reduce"
	default:
		return "replace"
	}
}

// Output describes where a map-reduce job's results land: in-memory
// (Named=false, the default), or merged/reduced/replaced into a named
// collection.
type Output struct {
	Named      bool
	Collection string
	Action     OutputAction
	NonAtomic  bool
}

// MapReduce is the full spec of one map-reduce job: map/reduce/optional
// finalize functions, optional selection/sort/limit to push down as query
// constraints, the scope shipped alongside the JS, and where the output
// lands.
type MapReduce struct {
	Map       bsonval.Value // KindJavaScript
	Reduce    bsonval.Value // KindJavaScript
	Finalize  *bsonval.Value
	Selection *bsonval.Value // KindDocument, a $match-style query
	InputSort *bsonval.Value // KindDocument
	Limit     *int64
	Scope     bsonval.Value // KindDocument
	Out       Output
}

func (mr MapReduce) doc() *bsonval.Document {
	d := bsonval.NewDoc(
		bsonval.Elem{Key: "map", Value: mr.Map},
		bsonval.Elem{Key: "reduce", Value: mr.Reduce},
	)
	if mr.Finalize != nil {
		d.Set("finalize", *mr.Finalize)
	}
	if mr.Selection != nil {
		d.Set("query", *mr.Selection)
	}
	if mr.InputSort != nil {
		d.Set("sort", *mr.InputSort)
	}
	if mr.Limit != nil {
		d.Set("limit", bsonval.NewInt64(*mr.Limit))
	}
	d.Set("scope", mr.Scope)
	if mr.Out.Named {
		outDoc := bsonval.NewDoc(
			bsonval.Elem{Key: mr.Out.Action.String(), Value: bsonval.NewText(mr.Out.Collection)},
		)
		if mr.Out.NonAtomic {
			outDoc.Set("nonAtomic", bsonval.NewBool(true))
		}
		d.Set("out", bsonval.NewDocument(outDoc))
	} else {
		d.Set("out", bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "inline", Value: bsonval.NewInt32(1)})))
	}
	return d
}

// MapReduceTask runs a map-reduce job whose input is Source's output.
type MapReduceTask struct {
	Source Task
	Spec   MapReduce
}

func (MapReduceTask) taskNode() {}
func (t MapReduceTask) BSON() bsonval.Value {
	return bsonval.NewDocument(t.Spec.doc())
}

// FoldLeftTask runs Head, then each Tail entry in order against the shared,
// growing output Head produced.
type FoldLeftTask struct {
	Head Task
	Tail []Task
}

func (FoldLeftTask) taskNode() {}
func (t FoldLeftTask) BSON() bsonval.Value {
	docs := make([]bsonval.Value, 0, 1+len(t.Tail))
	docs = append(docs, t.Head.BSON())
	for _, tail := range t.Tail {
		docs = append(docs, tail.BSON())
	}
	return bsonval.NewArray(docs...)
}

// JoinTask unions a set of independently-executed tasks.
type JoinTask struct{ Set []Task }

func (JoinTask) taskNode() {}
func (t JoinTask) BSON() bsonval.Value {
	docs := make([]bsonval.Value, len(t.Set))
	for i, s := range t.Set {
		docs[i] = s.BSON()
	}
	return bsonval.NewArray(docs...)
}
