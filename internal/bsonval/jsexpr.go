// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsonval

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// JSExpr renders v using the shell constructors a mongo shell script would
// use to reproduce it: ObjectId(...), ISODate(...), NumberInt(...),
// NumberLong(...), Timestamp(...), MinKey, MaxKey, and literal syntaxes for
// everything else. NA, which has no wire form, renders as `undefined`.
func (v Value) JSExpr() string {
	switch v.kind {
	case KindDouble:
		return strconv.FormatFloat(v.double, 'g', -1, 64)
	case KindText:
		return quoteJS(v.text)
	case KindDocument:
		return v.doc.JSExpr()
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.JSExpr()
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	case KindBinary:
		return fmt.Sprintf("BinData(%d, %q)", v.bin.Subtype, base64.StdEncoding.EncodeToString(v.bin.Data))
	case KindObjectID:
		return v.oid.String()
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindDate:
		return fmt.Sprintf("ISODate(%q)", v.date.UTC().Format("2006-01-02T15:04:05.000Z"))
	case KindNull:
		return "null"
	case KindRegex:
		return "/" + v.rx.Pattern + "/" + v.rx.Options
	case KindJavaScript:
		return v.text
	case KindSymbol:
		return quoteJS(v.text)
	case KindJavaScriptScope:
		// The scope is dropped here: round-tripping JavaScriptScope through
		// its JS-expression projection is lossy.
		return v.text
	case KindInt32:
		return fmt.Sprintf("NumberInt(%d)", v.i32)
	case KindTimestamp:
		return fmt.Sprintf("Timestamp(%d, %d)", v.ts.T, v.ts.I)
	case KindInt64:
		return fmt.Sprintf("NumberLong(%d)", v.i64)
	case KindMinKey:
		return "MinKey"
	case KindMaxKey:
		return "MaxKey"
	default: // KindNA
		return "undefined"
	}
}

// JSExpr renders a document as a JS object literal, in key order.
func (d *Document) JSExpr() string {
	if d == nil || d.Len() == 0 {
		return "{ }"
	}
	parts := make([]string, 0, d.Len())
	for _, e := range d.Elems() {
		parts = append(parts, jsKey(e.Key)+": "+e.Value.JSExpr())
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func jsKey(k string) string {
	if isJSIdentifier(k) {
		return k
	}
	return quoteJS(k)
}

func isJSIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '$'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isAlpha {
			return false
		}
		if i > 0 && !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

func quoteJS(s string) string {
	return strconv.Quote(s)
}
