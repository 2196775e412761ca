// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import "github.com/wfcompiler/mongowf/internal/fieldpath"

// DocVar is a reference to a location in the document a stage sees as its
// input: either the document root itself, or a field path within it. It is
// the "base" the merge planner hands back to callers, and the thing
// rewriteRefs rebases when a stage is transplanted onto a new source.
type DocVar struct {
	path *fieldpath.Path
}

// ROOT refers to the whole input document (rendered as $$ROOT).
var ROOT = DocVar{}

// Field builds a DocVar referring to a field path off the document root.
func Field(p fieldpath.Path) DocVar { return DocVar{path: &p} }

// IsRoot reports whether d refers to the whole document.
func (d DocVar) IsRoot() bool { return d.path == nil }

// Path returns the field path d refers to, if it is not ROOT.
func (d DocVar) Path() (fieldpath.Path, bool) {
	if d.path == nil {
		return fieldpath.Path{}, false
	}
	return *d.path, true
}

// Concat rebases a path off of d: ROOT.Concat(p) == Field(p), and
// Field(a).Concat(b) == Field(a \ b).
func (d DocVar) Concat(p fieldpath.Path) DocVar {
	if d.path == nil {
		return Field(p)
	}
	np := d.path.Concat(p)
	return Field(np)
}

// FieldRef renders the reference as a `$`-prefixed aggregation expression.
func (d DocVar) FieldRef() string {
	if d.path == nil {
		return "$$ROOT"
	}
	return "$" + d.path.String()
}

// Equal compares two DocVars.
func (d DocVar) Equal(o DocVar) bool {
	if d.path == nil || o.path == nil {
		return d.path == nil && o.path == nil
	}
	return d.path.Equal(*o.path)
}

// RewriteFn rebases a single DocVar; RewriteRefs applies one to every
// reference nested inside a stage, expression, or selector.
type RewriteFn func(DocVar) DocVar

// PrefixBase returns the RewriteFn that prefixes every reference with base:
// a reference to ROOT becomes base itself, and a reference to a field f
// becomes base \ f. This is the helper transplanted stages use to rebase
// the references they held against their old source.
func PrefixBase(base DocVar) RewriteFn {
	return func(d DocVar) DocVar {
		if p, ok := d.Path(); ok {
			return base.Concat(p)
		}
		return base
	}
}

// Identity is the no-op RewriteFn.
func Identity(d DocVar) DocVar { return d }
