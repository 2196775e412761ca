// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wfcompiler/mongowf/internal/bsonval"
	"github.com/wfcompiler/mongowf/internal/fieldpath"
)

// ExprLabel and IdLabel are the reserved field names synthesized stages use
// for a folded intermediate value and the document id, respectively. They
// must never collide with a user-visible field name.
const (
	ExprLabel = "value"
	IdLabel   = "_id"
)

// Finalize is the entry point of Component F: it runs finish
// (deleteUnusedFields), then finalize0's irreversible shape normalizations,
// then shape promotion. Finalize is idempotent (§8, invariant 5): a second
// call finds nothing left to delete, nothing left to lower, and a top-level
// IgnoreId projection left by an earlier promotion is not promoted again.
func Finalize(op Op) Op {
	return promoteShape(finalize0(deleteUnusedFields(op)))
}

// --- finish / deleteUnusedFields ---

// deleteUnusedFields trims a Project's shape down to the fields actually
// referenced by the stages built on top of it, recursing top-down with an
// accumulating "what does anything above need from here" requirement. A
// nil requirement means the whole document is needed (the usual case once
// a node references `$$ROOT` or is itself a map-reduce body, whose JS we
// cannot statically analyze).
func deleteUnusedFields(op Op) Op {
	return trimFields(op, nil)
}

func trimFields(op Op, keep map[string]bool) Op {
	switch o := op.(type) {
	case *ProjectOp:
		shape := o.Shape
		if keep != nil {
			shape = filterShape(shape, keep)
		}
		refs, usesRoot := collectShapeRefs(shape)
		childKeep := map[string]bool(nil)
		if !usesRoot {
			childKeep = refs
		}
		return Project(trimFields(o.Src, childKeep), shape, o.Id)
	case *GroupOp:
		refs, usesRoot := collectTopLevelFieldNames(op)
		childKeep := map[string]bool(nil)
		if !usesRoot {
			childKeep = refs
		}
		return Group(trimFields(o.Src, childKeep), o.Grouped, o.By)
	case *MatchOp, *LimitOp, *SkipOp, *SortOp, *OutOp, *RedactOp, *UnwindOp, *GeoNearOp:
		refs, usesRoot := collectTopLevelFieldNames(op)
		child, _ := childOf(op)
		return withSrc(op, trimFields(child, unionKeep(keep, refs, usesRoot)))
	case *MapOp, *FlatMapOp, *SimpleMapOp, *ReduceOp:
		// Map-reduce bodies are opaque JS; assume the whole document is read.
		child, _ := childOf(op)
		return withSrc(op, trimFields(child, nil))
	case *FoldLeftOp:
		tail := make([]Op, len(o.Tail))
		for i, t := range o.Tail {
			tail[i] = trimFields(t, nil)
		}
		return &FoldLeftOp{Head: trimFields(o.Head, nil), Tail: tail}
	case *JoinOp:
		set := make([]Op, len(o.Set))
		for i, s := range o.Set {
			set[i] = trimFields(s, nil)
		}
		return &JoinOp{Set: set}
	default:
		return op
	}
}

func filterShape(shape Reshape, keep map[string]bool) Reshape {
	out := make([]ReshapeEntry, 0, len(shape.Entries))
	for _, e := range shape.Entries {
		if keep[e.Name] {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		// A $project may never drop to zero fields; better to keep an
		// apparently-unused shape than emit one the server would reject.
		return shape
	}
	return Reshape{Entries: out}
}

func collectShapeRefs(shape Reshape) (map[string]bool, bool) {
	return collectTopLevelFieldNames(&ProjectOp{Shape: shape})
}

// collectTopLevelFieldNames gathers the top-level field names op directly
// references against its own child (not recursing past op), via the same
// RewriteRefs primitive the merge planner uses to rebase stages.
func collectTopLevelFieldNames(op Op) (map[string]bool, bool) {
	names := make(map[string]bool)
	usesRoot := false
	fn := func(d DocVar) DocVar {
		if d.IsRoot() {
			usesRoot = true
			return d
		}
		if p, ok := d.Path(); ok && p.Len() > 0 {
			names[p.Head().String()] = true
		}
		return d
	}
	RewriteRefs(op, fn)
	return names, usesRoot
}

func unionKeep(keep map[string]bool, refs map[string]bool, usesRoot bool) map[string]bool {
	if keep == nil || usesRoot {
		return nil
	}
	out := make(map[string]bool, len(keep)+len(refs))
	for k := range keep {
		out[k] = true
	}
	for k := range refs {
		out[k] = true
	}
	return out
}

// --- finalize0 ---

func finalize0(op Op) Op {
	switch o := op.(type) {
	case *MapOp:
		src := finalize0(o.Src)
		return lowerMapReduceSource(src, func(s Op) Op { return Map(s, o.Fn, o.Scope) })
	case *FlatMapOp:
		src := finalize0(o.Src)
		return lowerMapReduceSource(src, func(s Op) Op { return FlatMap(s, o.Fn, o.Scope) })
	case *SimpleMapOp:
		src := finalize0(o.Src)
		lowered := lowerMapReduceSource(src, func(s Op) Op { return SimpleMap(s, o.Expr, o.Flatten, o.Scope) })
		if sm, ok := lowered.(*SimpleMapOp); ok {
			return simpleMapToRaw(sm)
		}
		return lowered
	case *ReduceOp:
		src := finalize0(o.Src)
		return lowerMapReduceSource(src, func(s Op) Op { return Reduce(s, o.Fn, o.Scope) })
	case *FoldLeftOp:
		tail := make([]Op, len(o.Tail))
		for i, t := range o.Tail {
			tail[i] = ensureReduceTail(finalize0(t))
		}
		return &FoldLeftOp{Head: wrapFoldLeftHead(finalize0(o.Head)), Tail: tail}
	case *JoinOp:
		set := make([]Op, len(o.Set))
		for i, s := range o.Set {
			set[i] = finalize0(s)
		}
		return &JoinOp{Set: set}
	default:
		if child, ok := childOf(op); ok {
			return withSrc(op, finalize0(child))
		}
		return op
	}
}

// lowerMapReduceSource repeatedly lowers src — a Project, Unwind, or
// SimpleMap sitting directly under a map-reduce stage — into an equivalent
// SimpleMap and then into its raw Map/FlatMap form until none of those
// cases apply, then hands the
// result to build, the caller's already-finalized map-reduce constructor
// closed over its own Fn/Scope.
func lowerMapReduceSource(src Op, build func(Op) Op) Op {
	for {
		switch s := src.(type) {
		case *ProjectOp:
			src = projectToSimpleMap(s)
			continue
		case *UnwindOp:
			src = unwindToSimpleMap(s)
			continue
		case *SimpleMapOp:
			src = simpleMapToRaw(s)
			continue
		}
		return build(src)
	}
}

// shapeToJS renders a Reshape as a JS object-literal expression reading
// property accesses off argVar, the parameter name the enclosing JSFunc
// binds its input document to.
func shapeToJS(shape Reshape, argVar string) string {
	parts := make([]string, len(shape.Entries))
	for i, e := range shape.Entries {
		var val string
		if e.Nested != nil {
			val = shapeToJS(*e.Nested, argVar)
		} else {
			val = exprToJS(e.Expr, argVar)
		}
		parts[i] = strconv.Quote(e.Name) + ": " + val
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func exprToJS(e Expr, argVar string) string {
	switch v := e.(type) {
	case FieldExpr:
		if v.Var.IsRoot() {
			return argVar
		}
		p, _ := v.Var.Path()
		return p.JSExpr(argVar)
	case LiteralExpr:
		return v.Value.JSExpr()
	case OpExpr:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = exprToJS(a, argVar)
		}
		return v.Op + "(" + strings.Join(args, ", ") + ")"
	default:
		return "undefined"
	}
}

func projectToSimpleMap(p *ProjectOp) Op {
	body := fmt.Sprintf("return [key, %s];", shapeToJS(p.Shape, "value"))
	fn := JSFunc{Params: []string{"key", "value"}, Body: body}
	return SimpleMap(p.Src, fn, nil, nil)
}

func unwindToSimpleMap(u *UnwindOp) Op {
	fn := JSFunc{Params: []string{"key", "value"}, Body: "return [key, value];"}
	return SimpleMap(u.Src, fn, []DocVar{u.Field}, nil)
}

func simpleMapToRaw(sm *SimpleMapOp) Op {
	if len(sm.Flatten) == 0 {
		return Map(sm.Src, sm.Expr, sm.Scope)
	}
	paths := make([]string, len(sm.Flatten))
	for i, f := range sm.Flatten {
		paths[i] = strconv.Quote(docVarPathString(f))
	}
	body := fmt.Sprintf("return __sd_flattenSimpleMap([%s], %s, key, value);",
		strings.Join(paths, ", "), sm.Expr.String())
	return FlatMap(sm.Src, JSFunc{Params: []string{"key", "value"}, Body: body}, sm.Scope)
}

func docVarPathString(d DocVar) string {
	if d.IsRoot() {
		return ""
	}
	p, _ := d.Path()
	return p.String()
}

func wrapFoldLeftHead(head Op) Op {
	shape := Reshape{Entries: []ReshapeEntry{{Name: ExprLabel, Expr: FieldExpr{Var: ROOT}}}}
	return Project(head, shape, IncludeId)
}

func ensureReduceTail(op Op) Op {
	if _, ok := op.(*ReduceOp); ok {
		return op
	}
	return Reduce(op, defaultFoldLeftReducer(), nil)
}

func defaultFoldLeftReducer() JSFunc {
	return JSFunc{
		Params: []string{"key", "values"},
		Body:   "return __sd_reduceFoldLeft(values);",
	}
}

// --- shape promotion ---

// simpleShape reports the field names op is statically known to produce,
// propagating through shape-preserving stages. The zero value (nil, false)
// means the shape isn't known without running the JS.
func simpleShape(op Op) ([]string, bool) {
	switch o := op.(type) {
	case *PureOp:
		if o.Value.Kind() != bsonval.KindDocument {
			return nil, false
		}
		return o.Value.Document().Keys(), true
	case *ProjectOp:
		names := make([]string, len(o.Shape.Entries))
		for i, e := range o.Shape.Entries {
			names[i] = e.Name
		}
		return names, true
	case *GroupOp:
		names := make([]string, 0, len(o.Grouped.Entries)+1)
		names = append(names, IdLabel)
		for _, e := range o.Grouped.Entries {
			names = append(names, e.Name)
		}
		return names, true
	case *MatchOp, *LimitOp, *SkipOp, *SortOp, *OutOp:
		child, _ := childOf(op)
		return simpleShape(child)
	default:
		// SimpleMap's object-literal case is deliberately not recognized
		// here: telling an arbitrary JS object literal's keys apart from a
		// computed one would need to parse the body, which this model
		// doesn't carry (see DESIGN.md).
		return nil, false
	}
}

func promoteShape(op Op) Op {
	if p, isProject := op.(*ProjectOp); isProject && p.Id == IgnoreId {
		// Already a promoted projection (or one equivalent to it).
		return op
	}
	names, ok := simpleShape(op)
	if !ok {
		return op
	}
	entries := make([]ReshapeEntry, len(names))
	for i, n := range names {
		entries[i] = ReshapeEntry{Name: n, Expr: FieldExpr{Var: Field(fieldpath.NewNamed(n))}}
	}
	logger.Debug("finalize: promoting statically-known shape to a trailing projection")
	// Built directly rather than through Project, whose coalesce rules would
	// fold this projection back into the node beneath it.
	return &ProjectOp{Src: op, Shape: Reshape{Entries: entries}, Id: IgnoreId}
}
