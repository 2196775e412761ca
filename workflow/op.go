// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package workflow implements the recursive workflow IR (Component C), its
// coalesce rewriter (D), the merge planner (E), and the finalize/crush
// lowering to an executable task tree (F, G).
package workflow

import (
	"fmt"
	"strings"

	"github.com/wfcompiler/mongowf/internal/bsonval"
)

// Op is a node in the workflow IR. The IR is a fixed point over this node
// set: it is acyclic by construction, since every constructor only ever
// wraps an already-built term.
type Op interface {
	// Children returns the node's child operators in evaluation order
	// (empty for sources).
	Children() []Op
	opNode()
}

// ---- sources ----

// PureOp is a constant document, the base case for an in-memory literal
// workflow.
type PureOp struct{ Value bsonval.Value }

func (*PureOp) opNode()          {}
func (o *PureOp) Children() []Op { return nil }

// ReadOp reads an entire collection.
type ReadOp struct{ Collection string }

func (*ReadOp) opNode()          {}
func (o *ReadOp) Children() []Op { return nil }

// ---- shape-preserving pipeline stages ----

// MatchOp is $match.
type MatchOp struct {
	Src      Op
	Selector Selector
}

func (*MatchOp) opNode()          {}
func (o *MatchOp) Children() []Op { return []Op{o.Src} }

// SortKey is one key of a $sort stage.
type SortKey struct {
	Field     DocVar
	Ascending bool
}

// LimitOp is $limit.
type LimitOp struct {
	Src Op
	N   int64
}

func (*LimitOp) opNode()          {}
func (o *LimitOp) Children() []Op { return []Op{o.Src} }

// SkipOp is $skip.
type SkipOp struct {
	Src Op
	N   int64
}

func (*SkipOp) opNode()          {}
func (o *SkipOp) Children() []Op { return []Op{o.Src} }

// SortOp is $sort.
type SortOp struct {
	Src  Op
	Keys []SortKey
}

func (*SortOp) opNode()          {}
func (o *SortOp) Children() []Op { return []Op{o.Src} }

// OutOp is $out.
type OutOp struct {
	Src        Op
	Collection string
}

func (*OutOp) opNode()          {}
func (o *OutOp) Children() []Op { return []Op{o.Src} }

// ---- reshaping pipeline stages ----

// ProjectOp is $project.
type ProjectOp struct {
	Src   Op
	Shape Reshape
	Id    IdHandling
}

func (*ProjectOp) opNode()          {}
func (o *ProjectOp) Children() []Op { return []Op{o.Src} }

// RedactOp is $redact.
type RedactOp struct {
	Src  Op
	Expr Expr
}

func (*RedactOp) opNode()          {}
func (o *RedactOp) Children() []Op { return []Op{o.Src} }

// UnwindOp is $unwind.
type UnwindOp struct {
	Src   Op
	Field DocVar
}

func (*UnwindOp) opNode()          {}
func (o *UnwindOp) Children() []Op { return []Op{o.Src} }

// GroupOp is $group.
type GroupOp struct {
	Src     Op
	Grouped Grouped
	By      Expr
}

func (*GroupOp) opNode()          {}
func (o *GroupOp) Children() []Op { return []Op{o.Src} }

// GeoNearParams carries every optional field of $geoNear, serialized in the
// fixed order documented in §6.
type GeoNearParams struct {
	Near               bsonval.Value
	DistanceField      DocVar
	Limit              *int64
	MaxDistance        *float64
	Query              Selector
	Spherical          bool
	DistanceMultiplier *float64
	IncludeLocs        *DocVar
	UniqueDocs         *bool
}

// GeoNearOp is $geoNear.
type GeoNearOp struct {
	Src    Op
	Params GeoNearParams
}

func (*GeoNearOp) opNode()          {}
func (o *GeoNearOp) Children() []Op { return []Op{o.Src} }

// ---- map-reduce stages ----

// MapOp is a map-reduce `map` stage of arity (key, value) -> [key', value'].
type MapOp struct {
	Src   Op
	Fn    JSFunc
	Scope Scope
}

func (*MapOp) opNode()          {}
func (o *MapOp) Children() []Op { return []Op{o.Src} }

// FlatMapOp is a map-reduce `map` stage that may emit zero or more pairs.
type FlatMapOp struct {
	Src   Op
	Fn    JSFunc
	Scope Scope
}

func (*FlatMapOp) opNode()          {}
func (o *FlatMapOp) Children() []Op { return []Op{o.Src} }

// SimpleMapOp is the restricted, JS-expressible subset of FlatMap: a single
// expression producing the output document, plus a list of fields to
// flatten (unwind-like) before applying it.
type SimpleMapOp struct {
	Src     Op
	Expr    JSFunc
	Flatten []DocVar
	Scope   Scope
}

func (*SimpleMapOp) opNode()          {}
func (o *SimpleMapOp) Children() []Op { return []Op{o.Src} }

// ReduceOp is the map-reduce `reduce` stage.
type ReduceOp struct {
	Src   Op
	Fn    JSFunc
	Scope Scope
}

func (*ReduceOp) opNode()          {}
func (o *ReduceOp) Children() []Op { return []Op{o.Src} }

// ---- composers ----

// FoldLeftOp sequentially feeds Head's output into each Tail entry, which
// reads from and writes into that shared, growing output. Tail must be
// non-empty.
type FoldLeftOp struct {
	Head Op
	Tail []Op
}

func (*FoldLeftOp) opNode() {}
func (o *FoldLeftOp) Children() []Op {
	out := make([]Op, 0, 1+len(o.Tail))
	out = append(out, o.Head)
	out = append(out, o.Tail...)
	return out
}

// JoinOp unions a set of independently-sourced workflows.
type JoinOp struct{ Set []Op }

func (*JoinOp) opNode()          {}
func (o *JoinOp) Children() []Op { return o.Set }

// String renders an indented view of the term, one node per line. Tests
// compare terms through it, and opEqual uses it as merge's structural
// equality check.
func String(op Op) string {
	var sb strings.Builder
	writeOp(&sb, op, 0)
	return sb.String()
}

func writeOp(sb *strings.Builder, op Op, depth int) {
	indent := strings.Repeat("  ", depth)
	switch o := op.(type) {
	case *PureOp:
		fmt.Fprintf(sb, "%sPure(%s)\n", indent, o.Value.JSExpr())
	case *ReadOp:
		fmt.Fprintf(sb, "%sRead(%q)\n", indent, o.Collection)
	case *MatchOp:
		fmt.Fprintf(sb, "%sMatch(%s)\n", indent, selectorString(o.Selector))
		writeOp(sb, o.Src, depth+1)
	case *LimitOp:
		fmt.Fprintf(sb, "%sLimit(%d)\n", indent, o.N)
		writeOp(sb, o.Src, depth+1)
	case *SkipOp:
		fmt.Fprintf(sb, "%sSkip(%d)\n", indent, o.N)
		writeOp(sb, o.Src, depth+1)
	case *SortOp:
		fmt.Fprintf(sb, "%sSort(%s)\n", indent, renderSort(o.Keys).JSExpr())
		writeOp(sb, o.Src, depth+1)
	case *OutOp:
		fmt.Fprintf(sb, "%sOut(%q)\n", indent, o.Collection)
		writeOp(sb, o.Src, depth+1)
	case *ProjectOp:
		fmt.Fprintf(sb, "%sProject(%s, %s)\n", indent, reshapeString(o.Shape), o.Id)
		writeOp(sb, o.Src, depth+1)
	case *RedactOp:
		fmt.Fprintf(sb, "%sRedact(%s)\n", indent, exprString(o.Expr))
		writeOp(sb, o.Src, depth+1)
	case *UnwindOp:
		fmt.Fprintf(sb, "%sUnwind(%s)\n", indent, o.Field.FieldRef())
		writeOp(sb, o.Src, depth+1)
	case *GroupOp:
		fmt.Fprintf(sb, "%sGroup(%s, by=%s)\n", indent, groupedString(o.Grouped), exprString(o.By))
		writeOp(sb, o.Src, depth+1)
	case *GeoNearOp:
		fmt.Fprintf(sb, "%sGeoNear(%s)\n", indent, renderGeoNear(o.Params).JSExpr())
		writeOp(sb, o.Src, depth+1)
	case *MapOp:
		fmt.Fprintf(sb, "%sMap(%s, scope=%s)\n", indent, o.Fn, renderScope(o.Scope).JSExpr())
		writeOp(sb, o.Src, depth+1)
	case *FlatMapOp:
		fmt.Fprintf(sb, "%sFlatMap(%s, scope=%s)\n", indent, o.Fn, renderScope(o.Scope).JSExpr())
		writeOp(sb, o.Src, depth+1)
	case *SimpleMapOp:
		flatten := make([]string, len(o.Flatten))
		for i, f := range o.Flatten {
			flatten[i] = f.FieldRef()
		}
		fmt.Fprintf(sb, "%sSimpleMap(%s, flatten=[%s], scope=%s)\n", indent, o.Expr, strings.Join(flatten, ", "), renderScope(o.Scope).JSExpr())
		writeOp(sb, o.Src, depth+1)
	case *ReduceOp:
		fmt.Fprintf(sb, "%sReduce(%s, scope=%s)\n", indent, o.Fn, renderScope(o.Scope).JSExpr())
		writeOp(sb, o.Src, depth+1)
	case *FoldLeftOp:
		fmt.Fprintf(sb, "%sFoldLeft\n", indent)
		writeOp(sb, o.Head, depth+1)
		for _, t := range o.Tail {
			writeOp(sb, t, depth+1)
		}
	case *JoinOp:
		fmt.Fprintf(sb, "%sJoin\n", indent)
		for _, s := range o.Set {
			writeOp(sb, s, depth+1)
		}
	default:
		fmt.Fprintf(sb, "%s<unknown op>\n", indent)
	}
}
