// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"github.com/wfcompiler/mongowf/internal/bsonval"
	"github.com/wfcompiler/mongowf/internal/fieldpath"
	"github.com/wfcompiler/mongowf/internal/wflog"
)

// Coalesce applies the local algebraic simplification ruleset of §4.1 to
// op, inspecting only op and its single child. It is called by every smart
// constructor immediately after building a node, so the resulting tree is
// always locally in normal form with respect to these rules; it is not
// applied recursively into existing children. A rule that fires recurses
// into Coalesce once more so construction reaches a two-level fixpoint
// before returning, which is what makes Coalesce idempotent.
func Coalesce(op Op) Op {
	switch o := op.(type) {
	case *MatchOp:
		return coalesceMatch(o)
	case *LimitOp:
		return coalesceLimit(o)
	case *SkipOp:
		return coalesceSkip(o)
	case *ProjectOp:
		return coalesceProject(o)
	case *GroupOp:
		return coalesceGroup(o)
	case *MapOp:
		return coalesceMap(o)
	case *FlatMapOp:
		return coalesceFlatMap(o)
	case *SimpleMapOp:
		return coalesceSimpleMap(o)
	case *FoldLeftOp:
		return coalesceFoldLeft(o)
	case *OutOp:
		return coalesceOut(o)
	default:
		return op
	}
}

// --- rule 1, 2: match-after-match, match-after-sort ---

func coalesceMatch(o *MatchOp) Op {
	switch src := o.Src.(type) {
	case *MatchOp:
		logger.Debug("coalesce: match-after-match", wflog.F("rule", 1))
		return Coalesce(&MatchOp{Src: src.Src, Selector: And(src.Selector, o.Selector)})
	case *SortOp:
		logger.Debug("coalesce: match-after-sort reorders selection before sort", wflog.F("rule", 2))
		inner := Coalesce(&MatchOp{Src: src.Src, Selector: o.Selector})
		return Coalesce(&SortOp{Src: inner, Keys: src.Keys})
	}
	return o
}

// --- rule 5, 6: limit-after-limit, limit-after-skip ---

func coalesceLimit(o *LimitOp) Op {
	switch src := o.Src.(type) {
	case *LimitOp:
		n := o.N
		if src.N < n {
			n = src.N
		}
		logger.Debug("coalesce: limit-after-limit", wflog.F("rule", 5))
		return Coalesce(&LimitOp{Src: src.Src, N: n})
	case *SkipOp:
		logger.Debug("coalesce: limit-after-skip sinks skip below, widens limit", wflog.F("rule", 6))
		widened := Coalesce(&LimitOp{Src: src.Src, N: src.N + o.N})
		return Coalesce(&SkipOp{Src: widened, N: src.N})
	}
	return o
}

// --- rule 7: skip-after-skip ---

func coalesceSkip(o *SkipOp) Op {
	if src, ok := o.Src.(*SkipOp); ok {
		logger.Debug("coalesce: skip-after-skip sums counts", wflog.F("rule", 7))
		return Coalesce(&SkipOp{Src: src.Src, N: src.N + o.N})
	}
	return o
}

// --- rule 3, 4: project-after-project, project-after-group ---

func coalesceProject(o *ProjectOp) Op {
	switch src := o.Src.(type) {
	case *ProjectOp:
		if merged, ok := MergeReshapes(src.Shape, o.Shape); ok {
			logger.Debug("coalesce: project-after-project inlines inner shape", wflog.F("rule", 3))
			return Coalesce(&ProjectOp{Src: src.Src, Shape: merged, Id: src.Id.Coalesce(o.Id)})
		}
		// Inline always succeeds when keys collide too: the outer entry
		// simply replaces the inner one of the same name.
		logger.Debug("coalesce: project-after-project with overlapping keys, outer wins", wflog.F("rule", 3))
		return Coalesce(&ProjectOp{Src: src.Src, Shape: overlayReshape(src.Shape, o.Shape), Id: src.Id.Coalesce(o.Id)})
	case *GroupOp:
		if o.Id != ExcludeId {
			if g, ok := inlineProjectIntoGroup(o.Shape, src); ok {
				logger.Debug("coalesce: project-after-group inlines shape into group", wflog.F("rule", 4))
				return Coalesce(g)
			}
		}
	case *UnwindOp:
		if grp, ok := src.Src.(*GroupOp); ok && o.Id != ExcludeId {
			if g, renames, ok := inlineProjectIntoGroupRenames(o.Shape, grp); ok {
				newField := renameDocVarHead(src.Field, renames)
				logger.Debug("coalesce: project-after-unwind-of-group inlines shape", wflog.F("rule", 4))
				return Coalesce(&UnwindOp{Src: Coalesce(g), Field: newField})
			}
		}
	}
	return o
}

// overlayReshape appends b's entries after a's, letting a later entry with
// the same name replace an earlier one's effective value. Used only when
// MergeReshapes declines due to a name collision; the resulting shape is
// normalized by deduplicating to the last occurrence, preserving the first
// occurrence's position, matching how a real $project would be read.
func overlayReshape(a, b Reshape) Reshape {
	order := make([]string, 0, len(a.Entries)+len(b.Entries))
	byName := make(map[string]ReshapeEntry, len(a.Entries)+len(b.Entries))
	for _, e := range a.Entries {
		if _, ok := byName[e.Name]; !ok {
			order = append(order, e.Name)
		}
		byName[e.Name] = e
	}
	for _, e := range b.Entries {
		if _, ok := byName[e.Name]; !ok {
			order = append(order, e.Name)
		}
		byName[e.Name] = e
	}
	out := make([]ReshapeEntry, len(order))
	for i, n := range order {
		out[i] = byName[n]
	}
	return Reshape{Entries: out}
}

// inlineProjectIntoGroup implements rule 4: it renames a Group's output
// fields (and passes _id through unchanged) according to a following
// Project's shape, eliminating the Project. It returns ok=false (declining
// the rewrite) unless every Project entry is a pure rename of a top-level
// Group output field.
func inlineProjectIntoGroup(shape Reshape, grp *GroupOp) (*GroupOp, bool) {
	g, _, ok := inlineProjectIntoGroupRenames(shape, grp)
	return g, ok
}

func inlineProjectIntoGroupRenames(shape Reshape, grp *GroupOp) (*GroupOp, map[string]string, bool) {
	newGrouped := make([]GroupEntry, 0, len(shape.Entries))
	renames := make(map[string]string, len(shape.Entries))
	for _, e := range shape.Entries {
		if e.Nested != nil {
			return nil, nil, false
		}
		fe, ok := e.Expr.(FieldExpr)
		if !ok {
			return nil, nil, false
		}
		p, ok := fe.Var.Path()
		if !ok || p.Len() != 1 {
			return nil, nil, false
		}
		refName := p.Head().String()
		if refName == "_id" {
			if e.Name != "_id" {
				return nil, nil, false
			}
			continue
		}
		ge, found := grp.Grouped.Lookup(refName)
		if !found {
			return nil, nil, false
		}
		newGrouped = append(newGrouped, GroupEntry{Name: e.Name, Expr: ge.Expr})
		renames[refName] = e.Name
	}
	return &GroupOp{Src: grp.Src, Grouped: Grouped{Entries: newGrouped}, By: grp.By}, renames, true
}

func renameDocVarHead(d DocVar, renames map[string]string) DocVar {
	p, ok := d.Path()
	if !ok || p.Len() == 0 {
		return d
	}
	leaves := p.Leaves()
	if !leaves[0].IsName() {
		return d
	}
	newName, found := renames[leaves[0].NameValue()]
	if !found {
		return d
	}
	leaves[0] = fieldpath.Name(newName)
	return Field(fieldpath.New(leaves[0], leaves[1:]...))
}

// --- rule 8, 9: group literal-by normalization, group-after-inlineable-project ---

func coalesceGroup(o *GroupOp) Op {
	if lit, isLit := o.By.(LiteralExpr); isLit && !lit.Value.IsNull() {
		logger.Debug("coalesce: group with literal non-null by replaced with null", wflog.F("rule", 8))
		return Coalesce(&GroupOp{Src: o.Src, Grouped: o.Grouped, By: LiteralExpr{Value: bsonval.Null()}})
	}
	if p, ok := o.Src.(*ProjectOp); ok {
		if g, ok := inlineGroupProjects(o, p); ok {
			logger.Debug("coalesce: group-after-inlineable-project pulls expressions in", wflog.F("rule", 9))
			return Coalesce(g)
		}
	}
	return o
}

// inlineGroupProjects implements rule 9: every FieldExpr the group
// references that points at a field produced by an immediately preceding
// Project is replaced by that Project's own expression for the field,
// letting the Group re-parent directly onto the Project's source.
func inlineGroupProjects(o *GroupOp, p *ProjectOp) (*GroupOp, bool) {
	newGrouped := make([]GroupEntry, len(o.Grouped.Entries))
	for i, e := range o.Grouped.Entries {
		arg, ok := substituteFromShape(e.Expr.Arg, p.Shape)
		if !ok {
			return nil, false
		}
		newGrouped[i] = GroupEntry{Name: e.Name, Expr: GroupExpr{Accumulator: e.Expr.Accumulator, Arg: arg}}
	}
	by, ok := substituteFromShape(o.By, p.Shape)
	if !ok {
		return nil, false
	}
	return &GroupOp{Src: p.Src, Grouped: Grouped{Entries: newGrouped}, By: by}, true
}

func substituteFromShape(e Expr, shape Reshape) (Expr, bool) {
	switch v := e.(type) {
	case FieldExpr:
		path, isField := v.Var.Path()
		if !isField {
			return e, true // a $$ROOT reference passes through unchanged
		}
		if path.Len() != 1 {
			return nil, false
		}
		entry, found := shape.Lookup(path.Head().String())
		if !found || entry.Nested != nil {
			return nil, false
		}
		return entry.Expr, true
	case LiteralExpr:
		return e, true
	case OpExpr:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			sub, ok := substituteFromShape(a, shape)
			if !ok {
				return nil, false
			}
			args[i] = sub
		}
		return OpExpr{Op: v.Op, Args: args}, true
	default:
		return nil, false
	}
}

// --- rule 10, 11: map/flatMap/simpleMap composition ---

func coalesceMap(o *MapOp) Op {
	if src, ok := o.Src.(*MapOp); ok {
		scope, merged := MergeScope(src.Scope, o.Scope)
		if !merged {
			logger.Trace("coalesce: map-after-map declined, scope conflict", wflog.F("rule", 10))
			return o
		}
		logger.Debug("coalesce: map-after-map composed", wflog.F("rule", 10))
		return Coalesce(&MapOp{Src: src.Src, Fn: ComposeMapMap(o.Fn, src.Fn), Scope: scope})
	}
	return o
}

func coalesceFlatMap(o *FlatMapOp) Op {
	switch src := o.Src.(type) {
	case *MapOp:
		scope, merged := MergeScope(src.Scope, o.Scope)
		if !merged {
			logger.Trace("coalesce: flatMap-after-map declined, scope conflict", wflog.F("rule", 10))
			return o
		}
		logger.Debug("coalesce: flatMap-after-map composed", wflog.F("rule", 10))
		return Coalesce(&FlatMapOp{Src: src.Src, Fn: ComposeFlatMapMap(FlatMapLike{JS: o.Fn}, src.Fn), Scope: scope})
	case *FlatMapOp:
		scope, merged := MergeScope(src.Scope, o.Scope)
		if !merged {
			logger.Trace("coalesce: flatMap-after-flatMap declined, scope conflict", wflog.F("rule", 10))
			return o
		}
		logger.Debug("coalesce: flatMap-after-flatMap Kleisli-composed", wflog.F("rule", 10))
		return Coalesce(&FlatMapOp{Src: src.Src, Fn: ComposeFlatMapFlatMap(o.Fn, src.Fn), Scope: scope})
	}
	return o
}

func coalesceSimpleMap(o *SimpleMapOp) Op {
	if src, ok := o.Src.(*SimpleMapOp); ok {
		scope, merged := MergeScope(src.Scope, o.Scope)
		if !merged {
			logger.Trace("coalesce: simpleMap-after-simpleMap declined, scope conflict", wflog.F("rule", 11))
			return o
		}
		flatten := make([]DocVar, 0, len(src.Flatten)+len(o.Flatten))
		flatten = append(flatten, src.Flatten...)
		flatten = append(flatten, o.Flatten...)
		logger.Debug("coalesce: simpleMap-after-simpleMap composed", wflog.F("rule", 11))
		return Coalesce(&SimpleMapOp{
			Src:     src.Src,
			Expr:    ComposeMapMap(o.Expr, src.Expr),
			Flatten: flatten,
			Scope:   scope,
		})
	}
	return o
}

// --- rule 12: foldLeft-after-foldLeft ---

func coalesceFoldLeft(o *FoldLeftOp) Op {
	if head, ok := o.Head.(*FoldLeftOp); ok {
		logger.Debug("coalesce: foldLeft-after-foldLeft flattened", wflog.F("rule", 12))
		tail := make([]Op, 0, len(head.Tail)+len(o.Tail))
		tail = append(tail, head.Tail...)
		tail = append(tail, o.Tail...)
		return Coalesce(&FoldLeftOp{Head: head.Head, Tail: tail})
	}
	return o
}

// --- rule 13: out-after-read ---

func coalesceOut(o *OutOp) Op {
	if src, ok := o.Src.(*ReadOp); ok && src.Collection == o.Collection {
		logger.Debug("coalesce: out-after-read degenerates to read", wflog.F("rule", 13))
		return src
	}
	return o
}

// Rule 14 (GeoNear-after-GeoNear) is intentionally absent: two adjacent
// GeoNear stages are left untouched. Merging their parameters is an open
// question (see DESIGN.md); the semantics-preserving default is a no-op.
