// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"github.com/wfcompiler/mongowf/internal/bsonval"
	"github.com/wfcompiler/mongowf/internal/wfconfig"
	"github.com/wfcompiler/mongowf/workflow/task"
)

// Compile runs the full Finalize-then-Crush pipeline (Components F and G)
// under the default options: it lowers a coalesced, merged workflow into the
// executable task tree the driver sends over the wire.
func Compile(op Op) task.Task {
	return CompileWithOptions(op, wfconfig.Default())
}

// CompileWithOptions is Compile with an explicit wfconfig.Options, most
// notably controlling whether a FoldLeft's tail stages write non-atomically.
func CompileWithOptions(op Op, opts wfconfig.Options) task.Task {
	return crush(Finalize(op), opts)
}

// Crush is the paramorphism of Component G under default options; see
// CompileWithOptions for the configurable entry point.
func Crush(op Op) task.Task {
	return crush(op, wfconfig.Default())
}

// crush folds a finalized Op term into a task.Task, choosing a single
// aggregation pipeline request wherever every stage in the chain is
// pipelineable, and falling back to a map-reduce job — pushing down a
// leading Match/Sort/Limit prefix as the job's query/sort/limit — wherever
// it isn't.
func crush(op Op, opts wfconfig.Options) task.Task {
	switch o := op.(type) {
	case *PureOp:
		return task.PureTask{Value: o.Value}
	case *ReadOp:
		return task.ReadTask{Collection: o.Collection}
	case *FoldLeftOp:
		return crushFoldLeft(o, opts)
	case *JoinOp:
		set := make([]task.Task, len(o.Set))
		for i, s := range o.Set {
			set[i] = crush(s, opts)
		}
		return task.JoinTask{Set: set}
	}
	if isPipelineStage(op) && pipelineSelectorOK(op) {
		return crushPipeline(op, opts)
	}
	return crushMapReduce(op, opts)
}

// --- pipeline ---

func isPipelineStage(op Op) bool {
	switch op.(type) {
	case *MatchOp, *LimitOp, *SkipOp, *SortOp, *OutOp, *ProjectOp, *RedactOp, *UnwindOp, *GroupOp, *GeoNearOp:
		return true
	default:
		return false
	}
}

// pipelineSelectorOK reports whether op, if it is a Match, can run inside an
// aggregation pipeline — a $where clause forces map-reduce lowering instead.
func pipelineSelectorOK(op Op) bool {
	m, ok := op.(*MatchOp)
	if !ok {
		return true
	}
	return Pipelineable(m.Selector)
}

func crushPipeline(op Op, opts wfconfig.Options) task.Task {
	stages, boundary := collectPipelineStages(op)
	source := crush(boundary, opts)
	if pt, ok := source.(task.PipelineTask); ok {
		source = pt.Source
		stages = append(pt.Stages, stages...)
	}
	return batchPipeline(source, stages, opts.PipelineBatchLimit)
}

// batchPipeline chunks stages into successive PipelineTasks of at most
// limit stages each, chaining each batch's Source to the previous batch's
// output. limit <= 0 means unbounded — the common case, a single
// PipelineTask. Splitting only affects how the task tree is chunked, never
// the pipeline's result, per wfconfig.Options.PipelineBatchLimit's contract.
func batchPipeline(source task.Task, stages []bsonval.Value, limit int) task.Task {
	if limit <= 0 || len(stages) <= limit {
		return task.PipelineTask{Source: source, Stages: stages}
	}
	for len(stages) > 0 {
		n := limit
		if n > len(stages) {
			n = len(stages)
		}
		source = task.PipelineTask{Source: source, Stages: stages[:n]}
		stages = stages[n:]
	}
	return source
}

// collectPipelineStages walks down from op through consecutive pipelineable
// stages, rendering each to its wire form, and returns them innermost-first
// (execution order) alongside the first node that isn't itself a
// pipelineable stage.
func collectPipelineStages(op Op) ([]bsonval.Value, Op) {
	var rendered []bsonval.Value
	cur := op
	for isPipelineStage(cur) && pipelineSelectorOK(cur) {
		rendered = append(rendered, renderStage(cur))
		child, _ := childOf(cur)
		cur = child
	}
	stages := make([]bsonval.Value, len(rendered))
	for i, s := range rendered {
		stages[len(rendered)-1-i] = s
	}
	return stages, cur
}

func renderStage(op Op) bsonval.Value {
	switch o := op.(type) {
	case *MatchOp:
		return stageDoc("$match", renderSelector(o.Selector))
	case *LimitOp:
		return stageDoc("$limit", bsonval.NewInt64(o.N))
	case *SkipOp:
		return stageDoc("$skip", bsonval.NewInt64(o.N))
	case *SortOp:
		return stageDoc("$sort", renderSort(o.Keys))
	case *OutOp:
		return stageDoc("$out", bsonval.NewText(o.Collection))
	case *ProjectOp:
		return stageDoc("$project", renderReshape(o.Shape, o.Id))
	case *RedactOp:
		return stageDoc("$redact", renderExpr(o.Expr))
	case *UnwindOp:
		return stageDoc("$unwind", bsonval.NewText(o.Field.FieldRef()))
	case *GroupOp:
		return renderGroupStage(o)
	case *GeoNearOp:
		return stageDoc("$geoNear", renderGeoNear(o.Params))
	default:
		return bsonval.NewDocument(bsonval.NewDoc())
	}
}

func stageDoc(key string, v bsonval.Value) bsonval.Value {
	return bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: key, Value: v}))
}

func renderSort(keys []SortKey) bsonval.Value {
	d := bsonval.NewDoc()
	for _, k := range keys {
		dir := int32(1)
		if !k.Ascending {
			dir = -1
		}
		d.Set(fieldKey(k.Field), bsonval.NewInt32(dir))
	}
	return bsonval.NewDocument(d)
}

func renderGroupStage(o *GroupOp) bsonval.Value {
	d := bsonval.NewDoc(bsonval.Elem{Key: "_id", Value: renderExpr(o.By)})
	for _, e := range o.Grouped.Entries {
		d.Set(e.Name, bsonval.NewDocument(bsonval.NewDoc(
			bsonval.Elem{Key: e.Expr.Accumulator, Value: renderExpr(e.Expr.Arg)},
		)))
	}
	return stageDoc("$group", bsonval.NewDocument(d))
}

func renderGeoNear(p GeoNearParams) bsonval.Value {
	d := bsonval.NewDoc(bsonval.Elem{Key: "near", Value: p.Near})
	d.Set("distanceField", bsonval.NewText(fieldKey(p.DistanceField)))
	if p.Limit != nil {
		d.Set("limit", bsonval.NewInt64(*p.Limit))
	}
	if p.MaxDistance != nil {
		d.Set("maxDistance", bsonval.NewDouble(*p.MaxDistance))
	}
	if p.Query != nil {
		d.Set("query", renderSelector(p.Query))
	}
	d.Set("spherical", bsonval.NewBool(p.Spherical))
	if p.DistanceMultiplier != nil {
		d.Set("distanceMultiplier", bsonval.NewDouble(*p.DistanceMultiplier))
	}
	if p.IncludeLocs != nil {
		d.Set("includeLocs", bsonval.NewText(fieldKey(*p.IncludeLocs)))
	}
	if p.UniqueDocs != nil {
		d.Set("uniqueDocs", bsonval.NewBool(*p.UniqueDocs))
	}
	return bsonval.NewDocument(d)
}

func renderSelector(s Selector) bsonval.Value {
	switch v := s.(type) {
	case FieldSelector:
		return bsonval.NewDocument(bsonval.NewDoc(
			bsonval.Elem{Key: fieldKey(v.Field), Value: bsonval.NewDocument(bsonval.NewDoc(
				bsonval.Elem{Key: v.Op, Value: v.Value},
			))},
		))
	case AndSelector:
		arr := make([]bsonval.Value, len(v.Clauses))
		for i, c := range v.Clauses {
			arr[i] = renderSelector(c)
		}
		return bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "$and", Value: bsonval.NewArray(arr...)}))
	case OrSelector:
		arr := make([]bsonval.Value, len(v.Clauses))
		for i, c := range v.Clauses {
			arr[i] = renderSelector(c)
		}
		return bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "$or", Value: bsonval.NewArray(arr...)}))
	case WhereSelector:
		return bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "$where", Value: bsonval.NewJavaScript(v.JS)}))
	default:
		return bsonval.NewDocument(bsonval.NewDoc())
	}
}

func renderExpr(e Expr) bsonval.Value {
	switch v := e.(type) {
	case FieldExpr:
		return bsonval.NewText(v.Var.FieldRef())
	case LiteralExpr:
		return v.Value
	case OpExpr:
		args := make([]bsonval.Value, len(v.Args))
		for i, a := range v.Args {
			args[i] = renderExpr(a)
		}
		return bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: v.Op, Value: bsonval.NewArray(args...)}))
	default:
		return bsonval.NA()
	}
}

func renderReshape(r Reshape, id IdHandling) bsonval.Value {
	d := bsonval.NewDoc()
	for _, e := range r.Entries {
		if e.Nested != nil {
			d.Set(e.Name, renderReshape(*e.Nested, IgnoreId))
		} else {
			d.Set(e.Name, renderExpr(e.Expr))
		}
	}
	switch id {
	case ExcludeId:
		d.Set("_id", bsonval.NewInt32(0))
	case IncludeId:
		d.Set("_id", bsonval.NewInt32(1))
	}
	return bsonval.NewDocument(d)
}

func fieldKey(d DocVar) string {
	p, ok := d.Path()
	if !ok {
		return ""
	}
	return p.String()
}

// --- map-reduce ---

// peelQueryPrefix walks down from op through a leading chain of Match/
// Sort/Limit stages, combining them into a single selection/sort/limit
// triple, and returns the first node that is none of those three.
func peelQueryPrefix(op Op) (selection *bsonval.Value, inputSort *bsonval.Value, limit *int64, rest Op) {
	cur := op
	for {
		switch o := cur.(type) {
		case *MatchOp:
			sel := renderSelector(o.Selector)
			selection = combineSelection(selection, sel)
			cur = o.Src
			continue
		case *SortOp:
			if inputSort == nil {
				s := renderSort(o.Keys)
				inputSort = &s
			}
			cur = o.Src
			continue
		case *LimitOp:
			if limit == nil {
				n := o.N
				limit = &n
			}
			cur = o.Src
			continue
		}
		break
	}
	return selection, inputSort, limit, cur
}

// mergeSelections ANDs two optional selection documents together, the same
// way combineSelection folds successive Match stages at a single level.
func mergeSelections(a, b *bsonval.Value) *bsonval.Value {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return combineSelection(a, *b)
}

// crushMapReduce handles every non-pipelineable chain: it peels off a
// leading Match/Sort/Limit prefix as query/sort/limit pushdown, then
// compiles the map/reduce pair underneath. compileMapReduceCore's own
// source may itself carry a further Match/Sort/Limit prefix (a Map/FlatMap
// stage built directly on one, say) that was never visible at the top of
// op, so the same peel runs again there. Whatever remains below that is
// crushed as the job's input — unless it itself crushes to a MapReduceTask,
// in which case nesting it as this job's Source would silently drop its
// selection and functions, since MapReduceTask.BSON never reads Source; the
// two jobs are chained instead.
func crushMapReduce(op Op, opts wfconfig.Options) task.Task {
	selection, inputSort, limit, cur := peelQueryPrefix(op)

	mapFn, reduceFn, scope, rawSrc := compileMapReduceCore(cur)
	innerSelection, innerSort, innerLimit, src := peelQueryPrefix(rawSrc)
	selection = mergeSelections(selection, innerSelection)
	if inputSort == nil {
		inputSort = innerSort
	}
	if limit == nil {
		limit = innerLimit
	}

	spec := task.MapReduce{
		Map:       bsonval.NewJavaScript(mapFn.String()),
		Reduce:    bsonval.NewJavaScript(reduceFn.String()),
		Selection: selection,
		InputSort: inputSort,
		Limit:     limit,
		Scope:     renderScope(scope),
	}

	crushedSrc := crush(src, opts)
	if inner, ok := crushedSrc.(task.MapReduceTask); ok {
		return task.FoldLeftTask{Head: inner, Tail: []task.Task{task.MapReduceTask{Spec: spec}}}
	}
	return task.MapReduceTask{Source: crushedSrc, Spec: spec}
}

// compileMapReduceCore takes an optional Reduce and the single
// Map/FlatMap/SimpleMap stage beneath it (adjacent map stages have already
// been composed by Coalesce), yields one map function and one reduce
// function (identity where none is supplied), and returns the node beneath
// them — the job's input.
func compileMapReduceCore(op Op) (mapFn, reduceFn JSFunc, scope Scope, src Op) {
	switch o := op.(type) {
	case *ReduceOp:
		innerMap, _, innerScope, innerSrc := compileMapReduceCore(o.Src)
		merged, ok := MergeScope(innerScope, o.Scope)
		if !ok {
			// Declinable merge: prefer the reduce stage's own scope over a
			// colliding inherited binding rather than fail the whole crush.
			merged = o.Scope
		}
		return innerMap, o.Fn, merged, innerSrc
	case *MapOp:
		return o.Fn, identityReduce(), o.Scope, o.Src
	case *FlatMapOp:
		return o.Fn, identityReduce(), o.Scope, o.Src
	case *SimpleMapOp:
		// Finalize (§4.3) lowers every SimpleMap into a raw Map/FlatMap
		// before crush runs; this case only guards against Crush being
		// called directly on a term that skipped Finalize.
		return o.Expr, identityReduce(), o.Scope, o.Src
	default:
		return identityMap(), identityReduce(), nil, op
	}
}

func identityMap() JSFunc {
	return JSFunc{Params: []string{"key", "value"}, Body: "return [key, value];"}
}

func identityReduce() JSFunc {
	return JSFunc{Params: []string{"key", "values"}, Body: "return values[0];"}
}

func combineSelection(existing *bsonval.Value, next bsonval.Value) *bsonval.Value {
	if existing == nil {
		return &next
	}
	combined := bsonval.NewDocument(bsonval.NewDoc(bsonval.Elem{Key: "$and", Value: bsonval.NewArray(*existing, next)}))
	return &combined
}

func renderScope(s Scope) bsonval.Value {
	d := bsonval.NewDoc()
	for _, k := range s.Keys() {
		d.Set(k, s[k])
	}
	return bsonval.NewDocument(d)
}

// --- fold-left ---

func crushFoldLeft(o *FoldLeftOp, opts wfconfig.Options) task.Task {
	tail := make([]task.Task, len(o.Tail))
	for i, t := range o.Tail {
		tail[i] = applyNonAtomic(crush(t, opts), opts.NonAtomicFoldLeft)
	}
	return task.FoldLeftTask{Head: crush(o.Head, opts), Tail: tail}
}

// applyNonAtomic marks a fold-left tail stage's output as non-atomic: it
// writes into the same growing collection the next tail stage reads from,
// which a plain atomic out would serialize against the whole job. Controlled
// by wfconfig.Options.NonAtomicFoldLeft rather than hard-coded, since it
// only affects write concurrency, never the result.
func applyNonAtomic(t task.Task, nonAtomic bool) task.Task {
	if mr, ok := t.(task.MapReduceTask); ok {
		mr.Spec.Out.NonAtomic = nonAtomic
		return mr
	}
	return t
}
