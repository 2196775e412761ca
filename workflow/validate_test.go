// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsEmptyFoldLeftTail(t *testing.T) {
	w := &FoldLeftOp{Head: Read("a"), Tail: nil}
	err := Validate(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FoldLeft")
}

func TestValidateRejectsEmptyJoinSet(t *testing.T) {
	w := &JoinOp{Set: nil}
	err := Validate(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Join")
}

func TestValidateRejectsEmptyProjectShape(t *testing.T) {
	w := &ProjectOp{Src: Read("c"), Shape: Reshape{}, Id: IncludeId}
	err := Validate(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Project")
}

func TestValidateRejectsGroupWithNoAccumulators(t *testing.T) {
	w := &GroupOp{Src: Read("c"), Grouped: Grouped{}, By: LiteralExpr{}}
	err := Validate(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Group")
}

func TestValidateAcceptsWellFormedTerm(t *testing.T) {
	w := FoldLeft(Read("a"), Read("b"))
	assert.NoError(t, Validate(w))
}

func TestValidatePropagatesNestedError(t *testing.T) {
	bad := &JoinOp{Set: nil}
	w := Match(bad, eqField("a", mustLit(1), "$eq"))
	err := Validate(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Join")
}
