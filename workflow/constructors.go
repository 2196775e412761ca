// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import "github.com/wfcompiler/mongowf/internal/bsonval"

// Every constructor here builds the node
// and immediately runs it through Coalesce, so any term built exclusively
// through these functions is always in local normal form (Component C's
// "smart constructor" discipline).

// Pure wraps a constant document as a source.
func Pure(v bsonval.Value) Op { return Coalesce(&PureOp{Value: v}) }

// Read sources an entire collection.
func Read(collection string) Op { return Coalesce(&ReadOp{Collection: collection}) }

// Match applies $match.
func Match(src Op, sel Selector) Op {
	return Coalesce(&MatchOp{Src: src, Selector: sel})
}

// Limit applies $limit.
func Limit(src Op, n int64) Op {
	return Coalesce(&LimitOp{Src: src, N: n})
}

// Skip applies $skip.
func Skip(src Op, n int64) Op {
	return Coalesce(&SkipOp{Src: src, N: n})
}

// Sort applies $sort.
func Sort(src Op, keys ...SortKey) Op {
	return Coalesce(&SortOp{Src: src, Keys: keys})
}

// Out applies $out.
func Out(src Op, collection string) Op {
	return Coalesce(&OutOp{Src: src, Collection: collection})
}

// Project applies $project.
func Project(src Op, shape Reshape, id IdHandling) Op {
	return Coalesce(&ProjectOp{Src: src, Shape: shape, Id: id})
}

// Redact applies $redact.
func Redact(src Op, expr Expr) Op {
	return Coalesce(&RedactOp{Src: src, Expr: expr})
}

// Unwind applies $unwind.
func Unwind(src Op, field DocVar) Op {
	return Coalesce(&UnwindOp{Src: src, Field: field})
}

// Group applies $group.
func Group(src Op, grouped Grouped, by Expr) Op {
	return Coalesce(&GroupOp{Src: src, Grouped: grouped, By: by})
}

// GeoNear applies $geoNear.
func GeoNear(src Op, params GeoNearParams) Op {
	return Coalesce(&GeoNearOp{Src: src, Params: params})
}

// Map builds a map-reduce `map` stage of fixed output arity.
func Map(src Op, fn JSFunc, scope Scope) Op {
	return Coalesce(&MapOp{Src: src, Fn: fn, Scope: scope})
}

// FlatMap builds a map-reduce `map` stage that may emit any number of pairs.
func FlatMap(src Op, fn JSFunc, scope Scope) Op {
	return Coalesce(&FlatMapOp{Src: src, Fn: fn, Scope: scope})
}

// SimpleMap builds the restricted, JS-expressible single-expression
// map-reduce stage, unwinding flatten first.
func SimpleMap(src Op, expr JSFunc, flatten []DocVar, scope Scope) Op {
	return Coalesce(&SimpleMapOp{Src: src, Expr: expr, Flatten: flatten, Scope: scope})
}

// Reduce builds a map-reduce `reduce` stage.
func Reduce(src Op, fn JSFunc, scope Scope) Op {
	return Coalesce(&ReduceOp{Src: src, Fn: fn, Scope: scope})
}

// FoldLeft sequences head then tail, tail reading and writing the same
// growing output. tail must be non-empty; FoldLeft panics otherwise, since
// an empty tail has no meaning in the IR (it would just be head).
func FoldLeft(head Op, tail ...Op) Op {
	if len(tail) == 0 {
		panic("workflow: FoldLeft requires at least one tail stage")
	}
	return Coalesce(&FoldLeftOp{Head: head, Tail: tail})
}

// Join unions a set of independently-sourced workflows. Join is not
// coalesced: no local rewrite rule in §4.1 touches it directly.
func Join(set ...Op) Op {
	return &JoinOp{Set: set}
}
