// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsonval implements the tagged-variant BSON value model: wire type
// codes, an ordered Document, and the dual wire/JS-expression rendering
// every value supports.
package bsonval

import (
	"bytes"
	"time"
)

// Kind is a BSON wire type tag. Values are preserved verbatim for
// compatibility with the on-the-wire codes MongoDB itself uses.
type Kind byte

const (
	KindDouble          Kind = 1
	KindText            Kind = 2
	KindDocument        Kind = 3
	KindArray           Kind = 4
	KindBinary          Kind = 5
	KindObjectID        Kind = 7
	KindBool            Kind = 8
	KindDate            Kind = 9
	KindNull            Kind = 10
	KindRegex           Kind = 11
	KindJavaScript      Kind = 13
	KindSymbol          Kind = 14
	KindJavaScriptScope Kind = 15
	KindInt32           Kind = 16
	KindTimestamp       Kind = 17
	KindInt64           Kind = 18
	KindMinKey          Kind = 255
	KindMaxKey          Kind = 127

	// KindNA has no wire code: it is a placeholder for a value this model
	// cannot represent. It renders in JS as the literal `undefined`.
	KindNA Kind = 0
)

func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindText:
		return "text"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	case KindBinary:
		return "binary"
	case KindObjectID:
		return "objectId"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindNull:
		return "null"
	case KindRegex:
		return "regex"
	case KindJavaScript:
		return "javascript"
	case KindSymbol:
		return "symbol"
	case KindJavaScriptScope:
		return "javascriptWithScope"
	case KindInt32:
		return "int32"
	case KindTimestamp:
		return "timestamp"
	case KindInt64:
		return "int64"
	case KindMinKey:
		return "minKey"
	case KindMaxKey:
		return "maxKey"
	default:
		return "na"
	}
}

// Timestamp is a BSON internal timestamp: an ordinal within a given second.
type Timestamp struct {
	T uint32 // epoch seconds
	I uint32 // ordinal
}

// Binary is an immutable byte sequence tagged with a BSON binary subtype.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Equal compares two Binary values by content, not identity.
func (b Binary) Equal(o Binary) bool {
	return b.Subtype == o.Subtype && bytes.Equal(b.Data, o.Data)
}

// Regex is a BSON regular expression: a pattern plus its option flags.
type Regex struct {
	Pattern string
	Options string
}

// Value is a tagged-variant BSON value. The zero Value is NA (KindNA is
// 0); use one of the New* constructors or the Null/MinKey/MaxKey/NA
// singletons for anything else.
type Value struct {
	kind Kind

	double float64
	text   string // Text, JavaScript code, Symbol name
	doc    *Document
	arr    []Value
	bin    Binary
	oid    ObjectID
	b      bool
	date   time.Time
	rx     Regex
	scope  *Document // JavaScriptScope's scope document
	i32    int32
	ts     Timestamp
	i64    int64
}

// Kind reports the tagged variant of v.
func (v Value) Kind() Kind { return v.kind }

func NewDouble(f float64) Value        { return Value{kind: KindDouble, double: f} }
func NewText(s string) Value           { return Value{kind: KindText, text: s} }
func NewDocument(d *Document) Value    { return Value{kind: KindDocument, doc: d} }
func NewArray(vs ...Value) Value       { return Value{kind: KindArray, arr: vs} }
func NewBinary(subtype byte, b []byte) Value {
	return Value{kind: KindBinary, bin: Binary{Subtype: subtype, Data: b}}
}
func NewObjectID(id ObjectID) Value { return Value{kind: KindObjectID, oid: id} }
func NewBool(b bool) Value          { return Value{kind: KindBool, b: b} }
func NewDate(t time.Time) Value     { return Value{kind: KindDate, date: t.Round(time.Millisecond)} }
func NewRegex(pattern, options string) Value {
	return Value{kind: KindRegex, rx: Regex{Pattern: pattern, Options: options}}
}
func NewJavaScript(code string) Value { return Value{kind: KindJavaScript, text: code} }
func NewSymbol(s string) Value        { return Value{kind: KindSymbol, text: s} }
func NewJavaScriptScope(code string, scope *Document) Value {
	return Value{kind: KindJavaScriptScope, text: code, scope: scope}
}
func NewInt32(i int32) Value         { return Value{kind: KindInt32, i32: i} }
func NewTimestamp(t, i uint32) Value { return Value{kind: KindTimestamp, ts: Timestamp{T: t, I: i}} }
func NewInt64(i int64) Value         { return Value{kind: KindInt64, i64: i} }

// Null, MinKey, MaxKey and NA are singleton constructors; they take no
// payload so a function call reads better at call sites than a bare var.
func Null() Value   { return Value{kind: KindNull} }
func MinKey() Value { return Value{kind: KindMinKey} }
func MaxKey() Value { return Value{kind: KindMaxKey} }
func NA() Value     { return Value{kind: KindNA} }

func (v Value) Double() float64        { return v.double }
func (v Value) Text() string           { return v.text }
func (v Value) Document() *Document    { return v.doc }
func (v Value) Array() []Value         { return v.arr }
func (v Value) Binary() Binary         { return v.bin }
func (v Value) ObjectID() ObjectID     { return v.oid }
func (v Value) Bool() bool             { return v.b }
func (v Value) Date() time.Time        { return v.date }
func (v Value) Regex() Regex           { return v.rx }
func (v Value) JavaScript() string     { return v.text }
func (v Value) Symbol() string         { return v.text }
func (v Value) Scope() *Document       { return v.scope }
func (v Value) Int32() int32           { return v.i32 }
func (v Value) TimestampValue() Timestamp { return v.ts }
func (v Value) Int64() int64           { return v.i64 }

// IsNull reports whether v is the BSON Null value (not KindNA, which is a
// different, non-wire-representable placeholder).
func (v Value) IsNull() bool { return v.kind == KindNull }

// Equal compares two values structurally; Binary and ObjectID compare by
// byte content rather than identity, as required by the value model.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindDouble:
		return v.double == o.double
	case KindText, KindJavaScript, KindSymbol:
		return v.text == o.text
	case KindDocument:
		return v.doc.Equal(o.doc)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindBinary:
		return v.bin.Equal(o.bin)
	case KindObjectID:
		return v.oid == o.oid
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.date.Equal(o.date)
	case KindRegex:
		return v.rx == o.rx
	case KindJavaScriptScope:
		return v.text == o.text && v.scope.Equal(o.scope)
	case KindInt32:
		return v.i32 == o.i32
	case KindTimestamp:
		return v.ts == o.ts
	case KindInt64:
		return v.i64 == o.i64
	default: // Null, MinKey, MaxKey, NA
		return true
	}
}
