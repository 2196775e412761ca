// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"strings"

	"github.com/wfcompiler/mongowf/internal/bsonval"
)

// Expr is an aggregation-pipeline expression: a field reference, a literal,
// or an operator applied to sub-expressions. This deliberately does not
// model the full aggregation expression language; it carries just enough
// shape (field references that can be rebased, and a generic n-ary
// operator node) for the coalesce and merge rules to reason about.
type Expr interface {
	// RewriteRefs returns a copy of the expression with every field/var
	// reference rebased through fn.
	RewriteRefs(fn RewriteFn) Expr
	// IsPureRename reports whether the expression is exactly a single
	// field reference with no operators applied — the kind of entry coalesce
	// rule 4 needs before it can inline a projection into a group.
	IsPureRename() bool
	exprNode()
}

// FieldExpr is a `$field.path` (or `$$ROOT`) reference.
type FieldExpr struct{ Var DocVar }

func (FieldExpr) exprNode()              {}
func (e FieldExpr) IsPureRename() bool    { return true }
func (e FieldExpr) RewriteRefs(fn RewriteFn) Expr {
	return FieldExpr{Var: fn(e.Var)}
}

// LiteralExpr wraps a constant BSON value.
type LiteralExpr struct{ Value bsonval.Value }

func (LiteralExpr) exprNode()                        {}
func (e LiteralExpr) IsPureRename() bool              { return false }
func (e LiteralExpr) RewriteRefs(fn RewriteFn) Expr   { return e }

// OpExpr is a generic aggregation operator applied to arguments, e.g.
// OpExpr{Op: "$add", Args: []Expr{...}}.
type OpExpr struct {
	Op   string
	Args []Expr
}

func (OpExpr) exprNode()           {}
func (e OpExpr) IsPureRename() bool { return false }
func (e OpExpr) RewriteRefs(fn RewriteFn) Expr {
	args := make([]Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.RewriteRefs(fn)
	}
	return OpExpr{Op: e.Op, Args: args}
}

// ExprEqual is a structural equality check that recurses through operator
// arguments; merge uses it to tell whether two Groups share the same `by`.
func ExprEqual(a, b Expr) bool {
	switch av := a.(type) {
	case FieldExpr:
		bv, ok := b.(FieldExpr)
		return ok && av.Var.Equal(bv.Var)
	case LiteralExpr:
		bv, ok := b.(LiteralExpr)
		return ok && av.Value.Equal(bv.Value)
	case OpExpr:
		bv, ok := b.(OpExpr)
		if !ok || av.Op != bv.Op || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !ExprEqual(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// exprString renders an Expr for the String(op) tree rendering.
func exprString(e Expr) string {
	switch v := e.(type) {
	case FieldExpr:
		return v.Var.FieldRef()
	case LiteralExpr:
		return v.Value.JSExpr()
	case OpExpr:
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = exprString(a)
		}
		return v.Op + "(" + strings.Join(parts, ", ") + ")"
	default:
		return "<expr>"
	}
}
