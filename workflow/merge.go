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

// Merge unifies l and r into a single workflow that a common downstream
// consumer can read from, returning the field-path bases through which the
// caller recovers what would have been l's (respectively r's) output. gen
// supplies every fresh name the merge needs; it is explicit, caller-owned
// state (never a package global), so runs over identically seeded
// generators produce reproducible output.
//
// Merge never fails: every branch either unifies the terms directly or
// falls back to FoldLeft(Project(l), Project(r)), which always type-checks
// regardless of l and r's shapes (§7, "merge inconsistencies").
func Merge(gen *fieldpath.NameGen, l, r Op) (lBase, rBase DocVar, unified Op) {
	return mergeOp(gen, l, r, true)
}

func mergeOp(gen *fieldpath.NameGen, l, r Op, allowDelegate bool) (DocVar, DocVar, Op) {
	if opEqual(l, r) {
		return ROOT, ROOT, l
	}

	if lp, ok := l.(*PureOp); ok {
		if rp, ok := r.(*PureOp); ok {
			lName := gen.NextPath()
			rName := gen.NextPath()
			doc := bsonval.NewDoc(
				bsonval.Elem{Key: lName.String(), Value: lp.Value},
				bsonval.Elem{Key: rName.String(), Value: rp.Value},
			)
			logger.Trace("merge: pure/pure", wflog.F("lName", lName.String()), wflog.F("rName", rName.String()))
			return Field(lName), Field(rName), Pure(bsonval.NewDocument(doc))
		}
		// Pure(a), R: keep R's term, project a's literal alongside it.
		lName, rName := gen.NextPath(), gen.NextPath()
		shape := Reshape{Entries: []ReshapeEntry{
			{Name: lName.String(), Expr: LiteralExpr{Value: lp.Value}},
			{Name: rName.String(), Expr: FieldExpr{Var: ROOT}},
		}}
		logger.Trace("merge: pure/other", wflog.F("lName", lName.String()))
		return Field(lName), Field(rName), Project(r, shape, IncludeId)
	}

	if lg, ok := l.(*GroupOp); ok {
		if rg, ok := r.(*GroupOp); ok && ExprEqual(lg.By, rg.By) {
			return mergeGroupGroup(gen, lg, rg)
		}
		if child, hasChild := childOf(r); hasChild {
			if _, isSource := r.(*PureOp); !isSource {
				return mergeGroupPipelineStage(gen, lg, r, child)
			}
		}
	}
	if rg, ok := r.(*GroupOp); ok {
		if _, isSource := l.(*PureOp); !isSource {
			if child, hasChild := childOf(l); hasChild {
				rb, lb, u := mergeGroupPipelineStage(gen, rg, l, child)
				return lb, rb, u
			}
		}
	}

	if lgn, ok := l.(*GeoNearOp); ok {
		if child, hasChild := childOf(r); hasChild {
			return mergeGeoNearPipelineStage(gen, lgn, r, child)
		}
	}
	if rgn, ok := r.(*GeoNearOp); ok {
		if child, hasChild := childOf(l); hasChild {
			rb, lb, u := mergeGeoNearPipelineStage(gen, rgn, l, child)
			return lb, rb, u
		}
	}

	if lp, ok := l.(*ProjectOp); ok {
		if opEqual(lp.Src, r) {
			lName, rName := gen.NextPath(), gen.NextPath()
			shape := Reshape{Entries: []ReshapeEntry{
				{Name: lName.String(), Nested: &lp.Shape},
				{Name: rName.String(), Expr: FieldExpr{Var: ROOT}},
			}}
			logger.Trace("merge: project(lsrc=R)", wflog.F("lName", lName.String()))
			return Field(lName), Field(rName), Project(r, shape, lp.Id.Merge(IncludeId))
		}
	}

	if lu, ok := l.(*UnwindOp); ok {
		if ru, ok := r.(*UnwindOp); ok {
			if lu.Field.Equal(ru.Field) {
				srcLB, srcRB, src := mergeOp(gen, lu.Src, ru.Src, true)
				field := PrefixBase(srcLB)(lu.Field)
				logger.Trace("merge: unwind/unwind same field")
				return srcLB, srcRB, Unwind(src, field)
			}
			srcLB, srcRB, src := mergeOp(gen, lu.Src, ru.Src, true)
			withL := Unwind(src, PrefixBase(srcLB)(lu.Field))
			withBoth := Unwind(withL, PrefixBase(srcRB)(ru.Field))
			logger.Trace("merge: unwind/unwind distinct fields")
			return srcLB, srcRB, withBoth
		}
	}

	if lsm, ok := l.(*SimpleMapOp); ok {
		if rsm, ok := r.(*SimpleMapOp); ok && len(lsm.Flatten) == 0 && len(rsm.Flatten) == 0 {
			return mergeSimpleMapSimpleMap(gen, lsm, rsm)
		}
		return mergeSimpleMapOther(gen, lsm, r)
	}
	if rsm, ok := r.(*SimpleMapOp); ok {
		rb, lb, u := mergeSimpleMapOther(gen, rsm, l)
		return lb, rb, u
	}

	if lp, ok := l.(*ProjectOp); ok {
		if rp, ok := r.(*ProjectOp); ok {
			return mergeProjectProject(gen, lp, rp)
		}
		if rChild, hasChild := childOf(r); hasChild {
			return mergeProjectPipelineStage(gen, lp, r, rChild)
		}
	}

	if lr, ok := l.(*RedactOp); ok {
		if rr, ok := r.(*RedactOp); ok {
			srcLB, srcRB, src := mergeOp(gen, lr.Src, rr.Src, true)
			withL := Redact(src, rewriteExpr(lr.Expr, PrefixBase(srcLB)))
			withBoth := Redact(withL, rewriteExpr(rr.Expr, PrefixBase(srcRB)))
			logger.Trace("merge: redact/redact")
			return srcLB, srcRB, withBoth
		}
	}

	if lu, ok := l.(*UnwindOp); ok {
		srcLB, srcRB, src := mergeOp(gen, lu.Src, r, true)
		if srcLB.Equal(srcRB) {
			lName, rName := gen.NextPath(), gen.NextPath()
			shape := Reshape{Entries: []ReshapeEntry{
				{Name: lName.String(), Expr: FieldExpr{Var: srcLB}},
				{Name: rName.String(), Expr: FieldExpr{Var: srcRB}},
			}}
			src = Project(src, shape, IncludeId)
			srcLB, srcRB = Field(lName), Field(rName)
		}
		logger.Trace("merge: unwind/other")
		return srcLB, srcRB, Unwind(src, PrefixBase(srcLB)(lu.Field))
	}
	if ru, ok := r.(*UnwindOp); ok && allowDelegate {
		rb, lb, u := mergeOp(gen, ru, l, false)
		return lb, rb, u
	}

	if isShapePreserving(l) {
		if child, hasChild := childOf(l); hasChild {
			srcLB, srcRB, src := mergeOp(gen, child, r, true)
			rewritten := RewriteRefs(l, PrefixBase(srcLB))
			rewritten = withSrc(rewritten, src)
			logger.Trace("merge: shape-preserving/other")
			return srcLB, srcRB, rewritten
		}
	}
	if isShapePreserving(r) && allowDelegate {
		rb, lb, u := mergeOp(gen, r, l, false)
		return lb, rb, u
	}

	// Merge inconsistency: no pattern applies. Always-succeeding fallback.
	lName, rName := gen.NextPath(), gen.NextPath()
	logger.Debug("merge: no pattern matched, falling back to foldLeft-of-projections")
	headShape := Reshape{Entries: []ReshapeEntry{{Name: lName.String(), Expr: FieldExpr{Var: ROOT}}}}
	tailShape := Reshape{Entries: []ReshapeEntry{{Name: rName.String(), Expr: FieldExpr{Var: ROOT}}}}
	return Field(lName), Field(rName), FoldLeft(Project(l, headShape, IncludeId), Project(r, tailShape, IncludeId))
}

func mergeGroupGroup(gen *fieldpath.NameGen, lg, rg *GroupOp) (DocVar, DocVar, Op) {
	srcLB, srcRB, src := mergeOp(gen, lg.Src, rg.Src, true)
	lGrouped := rewriteGrouped(lg.Grouped, PrefixBase(srcLB))
	rGrouped := rewriteGrouped(rg.Grouped, PrefixBase(srcRB))
	if lGrouped.Disjoint(rGrouped) {
		logger.Trace("merge: group/group disjoint")
		return ROOT, ROOT, Group(src, lGrouped.Merge(rGrouped), lg.By.RewriteRefs(PrefixBase(srcLB)))
	}
	lName, rName := gen.NextPath(), gen.NextPath()
	renamedL := GroupEntry{Name: lName.String(), Expr: GroupExpr{Accumulator: "$push", Arg: FieldExpr{Var: ROOT}}}
	renamedR := GroupEntry{Name: rName.String(), Expr: GroupExpr{Accumulator: "$push", Arg: FieldExpr{Var: ROOT}}}
	grouped := Grouped{Entries: []GroupEntry{renamedL, renamedR}}
	g := Group(src, grouped, lg.By.RewriteRefs(PrefixBase(srcLB)))
	shape := Reshape{Entries: []ReshapeEntry{
		{Name: lName.String(), Expr: FieldExpr{Var: Field(lName)}},
		{Name: rName.String(), Expr: FieldExpr{Var: Field(rName)}},
	}}
	logger.Trace("merge: group/group overlapping values renamed")
	return Field(lName), Field(rName), Project(g, shape, IgnoreId)
}

func mergeGroupPipelineStage(gen *fieldpath.NameGen, lg *GroupOp, r Op, rChild Op) (DocVar, DocVar, Op) {
	srcLB, srcRB, src := mergeOp(gen, lg, rChild, true)
	lName, rName := gen.NextPath(), gen.NextPath()
	shape := Reshape{Entries: []ReshapeEntry{
		{Name: lName.String(), Expr: FieldExpr{Var: srcLB}},
		{Name: rName.String(), Expr: FieldExpr{Var: srcRB}},
	}}
	projected := Project(src, shape, IgnoreId)
	newRBase := Field(rName)
	rewritten := RewriteRefs(r, PrefixBase(newRBase))
	reparented := withSrc(rewritten, projected)
	logger.Trace("merge: group/pipeline-stage")
	return Field(lName), newRBase, reparented
}

func mergeGeoNearPipelineStage(gen *fieldpath.NameGen, lgn *GeoNearOp, r Op, rChild Op) (DocVar, DocVar, Op) {
	srcLB, srcRB, src := mergeOp(gen, lgn, rChild, true)
	rewritten := RewriteRefs(r, PrefixBase(srcRB))
	reparented := withSrc(rewritten, src)
	logger.Trace("merge: geoNear/pipeline-stage")
	return srcLB, srcRB, reparented
}

func mergeProjectPipelineStage(gen *fieldpath.NameGen, lp *ProjectOp, r Op, rChild Op) (DocVar, DocVar, Op) {
	srcLB, srcRB, src := mergeOp(gen, lp.Src, rChild, true)
	lName, rName := gen.NextPath(), gen.NextPath()
	rewrittenShape := lp.Shape.RewriteRefs(PrefixBase(srcLB))
	shape := Reshape{Entries: []ReshapeEntry{
		{Name: lName.String(), Nested: &rewrittenShape},
		{Name: rName.String(), Expr: FieldExpr{Var: srcRB}},
	}}
	projected := Project(src, shape, lp.Id.Merge(IncludeId))
	newRBase := Field(rName)
	rewritten := RewriteRefs(r, PrefixBase(newRBase))
	reparented := withSrc(rewritten, projected)
	logger.Trace("merge: project/pipeline-stage")
	return Field(lName), newRBase, reparented
}

func mergeSimpleMapSimpleMap(gen *fieldpath.NameGen, lsm, rsm *SimpleMapOp) (DocVar, DocVar, Op) {
	_, _, src := mergeOp(gen, lsm.Src, rsm.Src, true)
	scope, ok := MergeScope(lsm.Scope, rsm.Scope)
	if !ok {
		logger.Debug("merge: simpleMap/simpleMap scope conflict, falling back")
		lName, rName := gen.NextPath(), gen.NextPath()
		headShape := Reshape{Entries: []ReshapeEntry{{Name: lName.String(), Expr: FieldExpr{Var: ROOT}}}}
		tailShape := Reshape{Entries: []ReshapeEntry{{Name: rName.String(), Expr: FieldExpr{Var: ROOT}}}}
		return Field(lName), Field(rName), FoldLeft(Project(lsm, headShape, IncludeId), Project(rsm, tailShape, IncludeId))
	}
	lName, rName := gen.NextPath(), gen.NextPath()
	fn := JSFunc{
		Params: []string{"key", "value"},
		Body: "var __sd_l = (" + lsm.Expr.String() + ").apply(null, [key, value]);" +
			" var __sd_r = (" + rsm.Expr.String() + ").apply(null, [key, value]);" +
			" return [__sd_l[0], {" + lName.String() + ": __sd_l[1], " + rName.String() + ": __sd_r[1]}];",
	}
	logger.Trace("merge: simpleMap/simpleMap")
	return Field(lName), Field(rName), SimpleMap(src, fn, nil, scope)
}

// mergeSimpleMapOther implements "SimpleMap, *": the merged SimpleMap emits
// {lName: lsm's transformed value, rName: the merged source document}, so
// lsm's base becomes lName and the other operand's base is its base in the
// merged source, nested under rName.
func mergeSimpleMapOther(gen *fieldpath.NameGen, lsm *SimpleMapOp, r Op) (DocVar, DocVar, Op) {
	_, srcRB, src := mergeOp(gen, lsm.Src, r, true)
	lName, rName := gen.NextPath(), gen.NextPath()
	fn := JSFunc{
		Params: []string{"key", "value"},
		Body: "var __sd_l = (" + lsm.Expr.String() + ").apply(null, [key, value]);" +
			" return [__sd_l[0], {" + lName.String() + ": __sd_l[1], " + rName.String() + ": value}];",
	}
	logger.Trace("merge: simpleMap/other")
	return Field(lName), PrefixBase(Field(rName))(srcRB), SimpleMap(src, fn, lsm.Flatten, lsm.Scope)
}

func mergeProjectProject(gen *fieldpath.NameGen, lp, rp *ProjectOp) (DocVar, DocVar, Op) {
	srcLB, srcRB, src := mergeOp(gen, lp.Src, rp.Src, true)
	lShape := lp.Shape.RewriteRefs(PrefixBase(srcLB))
	rShape := rp.Shape.RewriteRefs(PrefixBase(srcRB))
	if merged, ok := MergeReshapes(lShape, rShape); ok {
		logger.Trace("merge: project/project disjoint")
		return ROOT, ROOT, Project(src, merged, lp.Id.Merge(rp.Id))
	}
	lName, rName := gen.NextPath(), gen.NextPath()
	shape := Reshape{Entries: []ReshapeEntry{
		{Name: lName.String(), Nested: &lShape},
		{Name: rName.String(), Nested: &rShape},
	}}
	logger.Trace("merge: project/project renamed via sub-reshapes")
	return Field(lName), Field(rName), Project(src, shape, IgnoreId)
}

// --- helpers shared with the crush/finalize pass ---

func isShapePreserving(op Op) bool {
	switch op.(type) {
	case *MatchOp, *LimitOp, *SkipOp, *SortOp, *OutOp:
		return true
	}
	return false
}

func childOf(op Op) (Op, bool) {
	switch o := op.(type) {
	case *MatchOp:
		return o.Src, true
	case *LimitOp:
		return o.Src, true
	case *SkipOp:
		return o.Src, true
	case *SortOp:
		return o.Src, true
	case *OutOp:
		return o.Src, true
	case *ProjectOp:
		return o.Src, true
	case *RedactOp:
		return o.Src, true
	case *UnwindOp:
		return o.Src, true
	case *GroupOp:
		return o.Src, true
	case *GeoNearOp:
		return o.Src, true
	case *MapOp:
		return o.Src, true
	case *FlatMapOp:
		return o.Src, true
	case *SimpleMapOp:
		return o.Src, true
	case *ReduceOp:
		return o.Src, true
	}
	return nil, false
}

// withSrc rebuilds op with its child replaced by newSrc, via the matching
// smart constructor, so the result is coalesced.
func withSrc(op Op, newSrc Op) Op {
	switch o := op.(type) {
	case *MatchOp:
		return Match(newSrc, o.Selector)
	case *LimitOp:
		return Limit(newSrc, o.N)
	case *SkipOp:
		return Skip(newSrc, o.N)
	case *SortOp:
		return Sort(newSrc, o.Keys...)
	case *OutOp:
		return Out(newSrc, o.Collection)
	case *ProjectOp:
		return Project(newSrc, o.Shape, o.Id)
	case *RedactOp:
		return Redact(newSrc, o.Expr)
	case *UnwindOp:
		return Unwind(newSrc, o.Field)
	case *GroupOp:
		return Group(newSrc, o.Grouped, o.By)
	case *GeoNearOp:
		p := o.Params
		return GeoNear(newSrc, p)
	case *MapOp:
		return Map(newSrc, o.Fn, o.Scope)
	case *FlatMapOp:
		return FlatMap(newSrc, o.Fn, o.Scope)
	case *SimpleMapOp:
		return SimpleMap(newSrc, o.Expr, o.Flatten, o.Scope)
	case *ReduceOp:
		return Reduce(newSrc, o.Fn, o.Scope)
	}
	return op
}

func rewriteExpr(e Expr, fn RewriteFn) Expr { return e.RewriteRefs(fn) }

func rewriteGrouped(g Grouped, fn RewriteFn) Grouped { return g.RewriteRefs(fn) }

// opEqual is a structural-equality check over two IR terms, used by merge's
// `L = R` fast path. The debug tree rendering is already a canonical,
// whitespace-stable form of a term, so comparing it is sufficient here and
// avoids a second traversal implementation to keep in sync with Op's node
// set.
func opEqual(a, b Op) bool {
	return String(a) == String(b)
}
