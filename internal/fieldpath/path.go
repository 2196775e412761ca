// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package fieldpath implements the ordered, non-empty field-path algebra:
// leaves, concatenation, prefix tests, and deterministic fresh-name
// generation, used throughout the workflow compiler to name and rebase
// document fields.
package fieldpath

import (
	"strconv"
	"strings"
)

// LeafKind distinguishes a named field from a positional array index.
type LeafKind byte

const (
	LeafName LeafKind = iota
	LeafIndex
)

// Leaf is a single segment of a Path: either a field name or an array
// index. The two never compare equal except through the explicit ToName
// coercion.
type Leaf struct {
	kind  LeafKind
	name  string
	index int
}

// Name builds a name leaf.
func Name(s string) Leaf { return Leaf{kind: LeafName, name: s} }

// Index builds an index leaf.
func Index(i int) Leaf { return Leaf{kind: LeafIndex, index: i} }

func (l Leaf) Kind() LeafKind { return l.kind }
func (l Leaf) IsName() bool   { return l.kind == LeafName }
func (l Leaf) IsIndex() bool  { return l.kind == LeafIndex }

// NameValue returns the leaf's name; it panics if the leaf is an index.
func (l Leaf) NameValue() string {
	if l.kind != LeafName {
		panic("fieldpath: NameValue on an index leaf")
	}
	return l.name
}

// IndexValue returns the leaf's index; it panics if the leaf is a name.
func (l Leaf) IndexValue() int {
	if l.kind != LeafIndex {
		panic("fieldpath: IndexValue on a name leaf")
	}
	return l.index
}

// ToName coerces an index leaf to its decimal-string name form. Name leaves
// are returned unchanged. This is the only direction in which a Name and an
// Index ever compare equal.
func (l Leaf) ToName() Leaf {
	if l.kind == LeafName {
		return l
	}
	return Name(strconv.Itoa(l.index))
}

func (l Leaf) String() string {
	if l.kind == LeafName {
		return l.name
	}
	return strconv.Itoa(l.index)
}

// Equal compares leaves semantically: indices only ever compare equal to
// indices, names only to names.
func (l Leaf) Equal(o Leaf) bool {
	if l.kind != o.kind {
		return false
	}
	if l.kind == LeafName {
		return l.name == o.name
	}
	return l.index == o.index
}

// Path is a non-empty, ordered sequence of leaves.
type Path struct {
	leaves []Leaf
}

// New builds a Path from at least one leaf.
func New(first Leaf, rest ...Leaf) Path {
	ls := make([]Leaf, 0, 1+len(rest))
	ls = append(ls, first)
	ls = append(ls, rest...)
	return Path{leaves: ls}
}

// NewNamed is a convenience constructor for a path of plain field names,
// e.g. NewNamed("a", "b", "c") for `a.b.c`.
func NewNamed(first string, rest ...string) Path {
	leaves := make([]Leaf, 0, 1+len(rest))
	leaves = append(leaves, Name(first))
	for _, r := range rest {
		leaves = append(leaves, Name(r))
	}
	return Path{leaves: leaves}
}

// Leaves returns the path's leaves.
func (p Path) Leaves() []Leaf {
	out := make([]Leaf, len(p.leaves))
	copy(out, p.leaves)
	return out
}

// Head returns the first leaf.
func (p Path) Head() Leaf { return p.leaves[0] }

// Len returns the number of leaves.
func (p Path) Len() int { return len(p.leaves) }

// String renders the path dot-separated; an index at any position renders
// as its decimal value, same as a name would.
func (p Path) String() string {
	parts := make([]string, len(p.leaves))
	for i, l := range p.leaves {
		parts[i] = l.String()
	}
	return strings.Join(parts, ".")
}

// FieldRef renders the path as a `$`-prefixed field reference.
func (p Path) FieldRef() string { return "$" + p.String() }

// VarRef renders the path as a `$$`-prefixed variable reference.
func (p Path) VarRef() string { return "$$" + p.String() }

// Concat appends another path's leaves to this one (the `\` operator).
func (p Path) Concat(o Path) Path {
	out := make([]Leaf, 0, len(p.leaves)+len(o.leaves))
	out = append(out, p.leaves...)
	out = append(out, o.leaves...)
	return Path{leaves: out}
}

// Extend appends a bare list of leaves (the `\\` operator).
func (p Path) Extend(ls ...Leaf) Path {
	out := make([]Leaf, 0, len(p.leaves)+len(ls))
	out = append(out, p.leaves...)
	out = append(out, ls...)
	return Path{leaves: out}
}

// Parent drops the last leaf. It returns false if p has only one leaf (a
// path's parent must remain non-empty... a single-leaf path has no parent).
func (p Path) Parent() (Path, bool) {
	if len(p.leaves) <= 1 {
		return Path{}, false
	}
	out := make([]Leaf, len(p.leaves)-1)
	copy(out, p.leaves[:len(p.leaves)-1])
	return Path{leaves: out}, true
}

// StartsWith reports whether prefix is a leading, leaf-wise subsequence of p.
func (p Path) StartsWith(prefix Path) bool {
	if len(prefix.leaves) > len(p.leaves) {
		return false
	}
	for i, l := range prefix.leaves {
		if !p.leaves[i].Equal(l) {
			return false
		}
	}
	return true
}

// Equal compares two paths leaf-wise.
func (p Path) Equal(o Path) bool {
	if len(p.leaves) != len(o.leaves) {
		return false
	}
	for i := range p.leaves {
		if !p.leaves[i].Equal(o.leaves[i]) {
			return false
		}
	}
	return true
}

// JSExpr compiles a property-access expression against an argument
// expression, e.g. JSExpr("doc") on path `a.b[3]` (leaves Name("a"),
// Name("b"), Index(3)) yields `doc.a.b[3]`.
func (p Path) JSExpr(arg string) string {
	var sb strings.Builder
	sb.WriteString(arg)
	for _, l := range p.leaves {
		if l.kind == LeafIndex {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(l.index))
			sb.WriteByte(']')
		} else {
			sb.WriteByte('.')
			sb.WriteString(l.name)
		}
	}
	return sb.String()
}
