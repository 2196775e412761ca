// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsonval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEqual(t *testing.T) {
	assert.True(t, NewInt32(1).Equal(NewInt32(1)))
	assert.False(t, NewInt32(1).Equal(NewInt32(2)))
	assert.False(t, NewInt32(1).Equal(NewInt64(1)), "different kinds never compare equal")

	a := NewBinary(0, []byte{1, 2, 3})
	b := NewBinary(0, []byte{1, 2, 3})
	assert.True(t, a.Equal(b), "binary compares by content")

	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(NA()))
}

func TestDocumentOrderPreserved(t *testing.T) {
	d := NewDoc(
		Elem{Key: "b", Value: NewInt32(2)},
		Elem{Key: "a", Value: NewInt32(1)},
	)
	d.Set("b", NewInt32(20)) // replace, should not move position
	assert.Equal(t, []string{"b", "a"}, d.Keys())
	v, ok := d.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, int32(20), v.Int32())
}

func TestDocumentDeletePreservesOrder(t *testing.T) {
	d := NewDoc(
		Elem{Key: "a", Value: NewInt32(1)},
		Elem{Key: "b", Value: NewInt32(2)},
		Elem{Key: "c", Value: NewInt32(3)},
	)
	d.Delete("b")
	assert.Equal(t, []string{"a", "c"}, d.Keys())
	_, ok := d.Lookup("b")
	assert.False(t, ok)
}

// TestBSONRoundTrip is invariant 6 of spec §8: for any BSON value not
// containing JavaScript or JavaScriptScope, fromRepr(b.repr) == b.
func TestBSONRoundTrip(t *testing.T) {
	doc := NewDoc(
		Elem{Key: "str", Value: NewText("hello")},
		Elem{Key: "i32", Value: NewInt32(42)},
		Elem{Key: "i64", Value: NewInt64(1 << 40)},
		Elem{Key: "dbl", Value: NewDouble(3.25)},
		Elem{Key: "bool", Value: NewBool(true)},
		Elem{Key: "null", Value: Null()},
		Elem{Key: "arr", Value: NewArray(NewInt32(1), NewInt32(2), NewText("x"))},
		Elem{Key: "sub", Value: NewDocument(NewDoc(Elem{Key: "k", Value: NewInt32(7)}))},
		Elem{Key: "oid", Value: NewObjectID(NewObjectIDFromTimestamp(time.Now()))},
	)

	repr, err := doc.Repr()
	require.NoError(t, err)

	got, err := FromRepr(repr)
	require.NoError(t, err)

	assert.True(t, doc.Equal(got), "round-tripped document should equal the original")
}

func TestObjectIDHexRoundTrip(t *testing.T) {
	const hex = "507f1f77bcf86cd799439011"
	id, err := ObjectIDFromHex(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, id.Hex())

	repr, err := NewDoc(Elem{Key: "_id", Value: NewObjectID(id)}).Repr()
	require.NoError(t, err)
	got, err := FromRepr(repr)
	require.NoError(t, err)

	v, ok := got.Lookup("_id")
	require.True(t, ok)
	assert.Equal(t, id, v.ObjectID())
}

func TestObjectIDFromHexRejectsBadLength(t *testing.T) {
	_, err := ObjectIDFromHex("abc")
	assert.Equal(t, ErrInvalidHex, err)
}
