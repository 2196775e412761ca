// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsonval

import "github.com/google/uuid"

// UUID is a convenience wrapper so callers round-trip between a standard
// UUID and the Binary encoding this value model preserves for compatibility.
type UUID [16]byte

// NewUUID returns a random (version 4) UUID.
func NewUUID() UUID { return UUID(uuid.New()) }

// ParseUUID decodes any of the standard UUID textual forms.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	return UUID(u), err
}

func (u UUID) String() string { return uuid.UUID(u).String() }

// legacyUUIDSubtype is the historical (non-RFC) BSON binary subtype used by
// the early MongoDB drivers for UUID values.
const legacyUUIDSubtype = 3

// ToBinary converts a UUID to its Binary encoding. Per the value model's
// invariants, the 16 bytes are NOT stored in RFC 4122 order: each 8-byte
// half is byte-reversed (LSB-then-MSB) independently, reproducing the
// legacy driver behavior this model preserves for round-trip fidelity with
// data written by older clients. This is deliberately not "fixed" here.
func (u UUID) ToBinary() Binary {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = u[7-i]
	}
	for i := 0; i < 8; i++ {
		b[8+i] = u[15-i]
	}
	return Binary{Subtype: legacyUUIDSubtype, Data: b[:]}
}

// UUIDFromBinary reverses ToBinary. It returns false if bin is not a
// 16-byte legacy-subtype binary.
func UUIDFromBinary(bin Binary) (UUID, bool) {
	if bin.Subtype != legacyUUIDSubtype || len(bin.Data) != 16 {
		return UUID{}, false
	}
	var u UUID
	for i := 0; i < 8; i++ {
		u[i] = bin.Data[7-i]
	}
	for i := 0; i < 8; i++ {
		u[8+i] = bin.Data[15-i]
	}
	return u, true
}
