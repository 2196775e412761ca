// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

// RewriteRefs applies fn to every field/variable reference held directly by
// op — the selector of a Match, the shape of a Project, the expressions and
// by-key of a Group, the redact expression, the unwind target, sort keys,
// and geoNear's distance field and query. It does not recurse into op's
// children; missing cases return op unchanged. This is the primitive the
// merge planner uses (via PrefixBase) to rebase a stage transplanted onto a
// new source.
func RewriteRefs(op Op, fn RewriteFn) Op {
	switch o := op.(type) {
	case *MatchOp:
		return &MatchOp{Src: o.Src, Selector: o.Selector.RewriteRefs(fn)}
	case *SortOp:
		keys := make([]SortKey, len(o.Keys))
		for i, k := range o.Keys {
			keys[i] = SortKey{Field: fn(k.Field), Ascending: k.Ascending}
		}
		return &SortOp{Src: o.Src, Keys: keys}
	case *ProjectOp:
		return &ProjectOp{Src: o.Src, Shape: o.Shape.RewriteRefs(fn), Id: o.Id}
	case *RedactOp:
		return &RedactOp{Src: o.Src, Expr: o.Expr.RewriteRefs(fn)}
	case *UnwindOp:
		return &UnwindOp{Src: o.Src, Field: fn(o.Field)}
	case *GroupOp:
		return &GroupOp{Src: o.Src, Grouped: o.Grouped.RewriteRefs(fn), By: o.By.RewriteRefs(fn)}
	case *GeoNearOp:
		p := o.Params
		p.DistanceField = fn(p.DistanceField)
		if p.Query != nil {
			p.Query = p.Query.RewriteRefs(fn)
		}
		if p.IncludeLocs != nil {
			rewritten := fn(*p.IncludeLocs)
			p.IncludeLocs = &rewritten
		}
		return &GeoNearOp{Src: o.Src, Params: p}
	default:
		// Limit, Skip, Out, Pure, Read, Map/FlatMap/SimpleMap/Reduce (whose
		// references live inside opaque JS bodies, not Expr/Selector
		// trees), FoldLeft and Join hold no directly rewritable reference.
		return op
	}
}
