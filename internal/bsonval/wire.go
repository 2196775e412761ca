// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0
//
// The appender style here mirrors x/bsonx/bsoncore's AppendXxx functions:
// byte-slice builders rather than an io.Writer, so a full document can be
// assembled with a single final length patch.

package bsonval

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// ErrNotRepresentable is returned by Repr when the tree contains a value
// this model cannot put on the wire (KindNA).
var ErrNotRepresentable = errors.New("bsonval: value has no wire representation")

// Repr returns the BSON wire-format bytes for a document value.
func (d *Document) Repr() ([]byte, error) {
	buf := make([]byte, 4, 64)
	for _, e := range d.Elems() {
		var err error
		buf, err = appendElement(buf, e.Key, e.Value)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, 0)
	binary.LittleEndian.PutUint32(buf, uint32(len(buf)))
	return buf, nil
}

func arrayRepr(vs []Value) ([]byte, error) {
	buf := make([]byte, 4, 64)
	for i, v := range vs {
		var err error
		buf, err = appendElement(buf, itoa(i), v)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, 0)
	binary.LittleEndian.PutUint32(buf, uint32(len(buf)))
	return buf, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(b[pos:])
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

func appendString(buf []byte, s string) []byte {
	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, uint32(len(s)+1))
	buf = append(buf, length...)
	buf = append(buf, s...)
	return append(buf, 0)
}

func appendElement(buf []byte, key string, v Value) ([]byte, error) {
	buf = append(buf, byte(v.kind))
	buf = appendCString(buf, key)
	return appendPayload(buf, v)
}

func appendPayload(buf []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindDouble:
		bits := math.Float64bits(v.double)
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, bits)
		return append(buf, b...), nil
	case KindText, KindSymbol, KindJavaScript:
		return appendString(buf, v.text), nil
	case KindDocument:
		sub, err := v.doc.Repr()
		if err != nil {
			return nil, err
		}
		return append(buf, sub...), nil
	case KindArray:
		sub, err := arrayRepr(v.arr)
		if err != nil {
			return nil, err
		}
		return append(buf, sub...), nil
	case KindBinary:
		length := make([]byte, 4)
		binary.LittleEndian.PutUint32(length, uint32(len(v.bin.Data)))
		buf = append(buf, length...)
		buf = append(buf, v.bin.Subtype)
		return append(buf, v.bin.Data...), nil
	case KindObjectID:
		return append(buf, v.oid[:]...), nil
	case KindBool:
		if v.b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case KindDate:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v.date.UnixMilli()))
		return append(buf, b...), nil
	case KindNull, KindMinKey, KindMaxKey:
		return buf, nil
	case KindRegex:
		buf = appendCString(buf, v.rx.Pattern)
		return appendCString(buf, v.rx.Options), nil
	case KindJavaScriptScope:
		start := len(buf)
		buf = append(buf, 0, 0, 0, 0) // placeholder total length
		buf = appendString(buf, v.text)
		sub, err := v.scope.Repr()
		if err != nil {
			return nil, err
		}
		buf = append(buf, sub...)
		binary.LittleEndian.PutUint32(buf[start:start+4], uint32(len(buf)-start))
		return buf, nil
	case KindInt32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.i32))
		return append(buf, b...), nil
	case KindTimestamp:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint32(b[0:4], v.ts.I)
		binary.LittleEndian.PutUint32(b[4:8], v.ts.T)
		return append(buf, b...), nil
	case KindInt64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v.i64))
		return append(buf, b...), nil
	default:
		return nil, ErrNotRepresentable
	}
}

// FromRepr decodes a BSON wire-format document, the inverse of
// (*Document).Repr. It never produces KindNA values, since NA has no wire
// form.
func FromRepr(b []byte) (*Document, error) {
	d, _, err := readDocument(b)
	return d, err
}

var errTruncated = errors.New("bsonval: truncated document")

func readDocument(b []byte) (*Document, int, error) {
	if len(b) < 5 {
		return nil, 0, errTruncated
	}
	length := int(binary.LittleEndian.Uint32(b))
	if length > len(b) {
		return nil, 0, errTruncated
	}
	d := NewDoc()
	pos := 4
	for pos < length-1 {
		kind := Kind(b[pos])
		pos++
		keyStart := pos
		for pos < len(b) && b[pos] != 0 {
			pos++
		}
		if pos >= len(b) {
			return nil, 0, errTruncated
		}
		key := string(b[keyStart:pos])
		pos++ // skip NUL
		v, n, err := readPayload(kind, b[pos:])
		if err != nil {
			return nil, 0, err
		}
		d.Set(key, v)
		pos += n
	}
	return d, length, nil
}

func readArray(b []byte) ([]Value, int, error) {
	d, n, err := readDocument(b)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Value, d.Len())
	for i, e := range d.Elems() {
		out[i] = e.Value
	}
	return out, n, nil
}

func readCString(b []byte) (string, int, error) {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	if i >= len(b) {
		return "", 0, errTruncated
	}
	return string(b[:i]), i + 1, nil
}

func readPayload(kind Kind, b []byte) (Value, int, error) {
	switch kind {
	case KindDouble:
		if len(b) < 8 {
			return Value{}, 0, errTruncated
		}
		return NewDouble(math.Float64frombits(binary.LittleEndian.Uint64(b))), 8, nil
	case KindText, KindSymbol, KindJavaScript:
		if len(b) < 4 {
			return Value{}, 0, errTruncated
		}
		length := int(binary.LittleEndian.Uint32(b))
		if len(b) < 4+length {
			return Value{}, 0, errTruncated
		}
		s := string(b[4 : 4+length-1])
		switch kind {
		case KindSymbol:
			return NewSymbol(s), 4 + length, nil
		case KindJavaScript:
			return NewJavaScript(s), 4 + length, nil
		default:
			return NewText(s), 4 + length, nil
		}
	case KindDocument:
		sub, n, err := readDocument(b)
		if err != nil {
			return Value{}, 0, err
		}
		return NewDocument(sub), n, nil
	case KindArray:
		vs, n, err := readArray(b)
		if err != nil {
			return Value{}, 0, err
		}
		return NewArray(vs...), n, nil
	case KindBinary:
		if len(b) < 5 {
			return Value{}, 0, errTruncated
		}
		length := int(binary.LittleEndian.Uint32(b))
		subtype := b[4]
		if len(b) < 5+length {
			return Value{}, 0, errTruncated
		}
		data := make([]byte, length)
		copy(data, b[5:5+length])
		return NewBinary(subtype, data), 5 + length, nil
	case KindObjectID:
		if len(b) < 12 {
			return Value{}, 0, errTruncated
		}
		var oid ObjectID
		copy(oid[:], b[:12])
		return NewObjectID(oid), 12, nil
	case KindBool:
		if len(b) < 1 {
			return Value{}, 0, errTruncated
		}
		return NewBool(b[0] != 0), 1, nil
	case KindDate:
		if len(b) < 8 {
			return Value{}, 0, errTruncated
		}
		ms := int64(binary.LittleEndian.Uint64(b))
		return NewDate(time.UnixMilli(ms)), 8, nil
	case KindNull:
		return Null(), 0, nil
	case KindMinKey:
		return MinKey(), 0, nil
	case KindMaxKey:
		return MaxKey(), 0, nil
	case KindRegex:
		pattern, n1, err := readCString(b)
		if err != nil {
			return Value{}, 0, err
		}
		options, n2, err := readCString(b[n1:])
		if err != nil {
			return Value{}, 0, err
		}
		return NewRegex(pattern, options), n1 + n2, nil
	case KindJavaScriptScope:
		if len(b) < 4 {
			return Value{}, 0, errTruncated
		}
		total := int(binary.LittleEndian.Uint32(b))
		code, n1, err := readStringOnly(b[4:])
		if err != nil {
			return Value{}, 0, err
		}
		scope, _, err := readDocument(b[4+n1:])
		if err != nil {
			return Value{}, 0, err
		}
		return NewJavaScriptScope(code, scope), total, nil
	case KindInt32:
		if len(b) < 4 {
			return Value{}, 0, errTruncated
		}
		return NewInt32(int32(binary.LittleEndian.Uint32(b))), 4, nil
	case KindTimestamp:
		if len(b) < 8 {
			return Value{}, 0, errTruncated
		}
		i := binary.LittleEndian.Uint32(b[0:4])
		t := binary.LittleEndian.Uint32(b[4:8])
		return NewTimestamp(t, i), 8, nil
	case KindInt64:
		if len(b) < 8 {
			return Value{}, 0, errTruncated
		}
		return NewInt64(int64(binary.LittleEndian.Uint64(b))), 8, nil
	default:
		return Value{}, 0, ErrNotRepresentable
	}
}

func readStringOnly(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, errTruncated
	}
	length := int(binary.LittleEndian.Uint32(b))
	if len(b) < 4+length {
		return "", 0, errTruncated
	}
	return string(b[4 : 4+length-1]), 4 + length, nil
}
