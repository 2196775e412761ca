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

// Selector is a $match condition. Compound selectors (And/Or) nest;
// FieldSelector is a leaf comparison; WhereSelector wraps arbitrary
// JavaScript and is the only case that forces map-reduce lowering.
type Selector interface {
	RewriteRefs(fn RewriteFn) Selector
	// HasWhere reports whether this selector or any of its sub-selectors
	// contains a Where clause.
	HasWhere() bool
	selectorNode()
}

// FieldSelector compares a field against a literal using a comparison
// operator name such as "$eq", "$gt", "$in".
type FieldSelector struct {
	Field DocVar
	Op    string
	Value bsonval.Value
}

func (FieldSelector) selectorNode() {}
func (s FieldSelector) HasWhere() bool { return false }
func (s FieldSelector) RewriteRefs(fn RewriteFn) Selector {
	return FieldSelector{Field: fn(s.Field), Op: s.Op, Value: s.Value}
}

// AndSelector is the conjunction of its clauses.
type AndSelector struct{ Clauses []Selector }

func (AndSelector) selectorNode() {}
func (s AndSelector) HasWhere() bool {
	for _, c := range s.Clauses {
		if c.HasWhere() {
			return true
		}
	}
	return false
}
func (s AndSelector) RewriteRefs(fn RewriteFn) Selector {
	out := make([]Selector, len(s.Clauses))
	for i, c := range s.Clauses {
		out[i] = c.RewriteRefs(fn)
	}
	return AndSelector{Clauses: out}
}

// OrSelector is the disjunction of its clauses.
type OrSelector struct{ Clauses []Selector }

func (OrSelector) selectorNode() {}
func (s OrSelector) HasWhere() bool {
	for _, c := range s.Clauses {
		if c.HasWhere() {
			return true
		}
	}
	return false
}
func (s OrSelector) RewriteRefs(fn RewriteFn) Selector {
	out := make([]Selector, len(s.Clauses))
	for i, c := range s.Clauses {
		out[i] = c.RewriteRefs(fn)
	}
	return OrSelector{Clauses: out}
}

// WhereSelector wraps a raw JavaScript predicate ($where). Its presence
// anywhere in a selector tree forces map-reduce lowering, since $where
// cannot run inside an aggregation pipeline.
type WhereSelector struct{ JS string }

func (WhereSelector) selectorNode()                       {}
func (s WhereSelector) HasWhere() bool                    { return true }
func (s WhereSelector) RewriteRefs(fn RewriteFn) Selector { return s }

// And combines two selectors into one conjunction, flattening nested
// AndSelectors so repeated coalescing doesn't build a deepening chain.
func And(a, b Selector) Selector {
	var clauses []Selector
	if av, ok := a.(AndSelector); ok {
		clauses = append(clauses, av.Clauses...)
	} else {
		clauses = append(clauses, a)
	}
	if bv, ok := b.(AndSelector); ok {
		clauses = append(clauses, bv.Clauses...)
	} else {
		clauses = append(clauses, b)
	}
	return AndSelector{Clauses: clauses}
}

// Pipelineable reports whether s can run inside an aggregation pipeline: it
// contains no Where clause anywhere in its tree.
func Pipelineable(s Selector) bool { return !s.HasWhere() }

func selectorString(s Selector) string {
	switch v := s.(type) {
	case FieldSelector:
		return v.Field.FieldRef() + " " + v.Op + " " + v.Value.JSExpr()
	case AndSelector:
		parts := make([]string, len(v.Clauses))
		for i, c := range v.Clauses {
			parts[i] = selectorString(c)
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	case OrSelector:
		parts := make([]string, len(v.Clauses))
		for i, c := range v.Clauses {
			parts[i] = selectorString(c)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	case WhereSelector:
		return "$where(" + v.JS + ")"
	default:
		return "<selector>"
	}
}
