// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"fmt"
	"strings"
)

// JSFunc is an anonymous JavaScript function declaration used as a
// map/flatMap/reduce body. Only the shape of these expressions matters to
// this compiler (per-parameter names and the composed body text); the
// actual JS AST is an external collaborator's concern.
type JSFunc struct {
	Params []string
	Body   string
}

func (f JSFunc) String() string {
	return fmt.Sprintf("function(%s) { %s }", strings.Join(f.Params, ", "), f.Body)
}

// ComposeMapMap builds the function for Map∘Map: f applied after g, both of
// arity (key, value) -> [key', value'].
func ComposeMapMap(f, g JSFunc) JSFunc {
	return JSFunc{
		Params: []string{"key", "value"},
		Body: fmt.Sprintf(
			"var __sd_tmp = (%s).apply(null, (%s).apply(null, [key, value])); return __sd_tmp;",
			f.String(), g.String(),
		),
	}
}

// ComposeFlatMapMap builds the function for FlatMap∘Map: lift f's single
// result into a one-element list, then concat-map it through g.
func ComposeFlatMapMap(g FlatMapLike, f JSFunc) JSFunc {
	return JSFunc{
		Params: []string{"key", "value"},
		Body: fmt.Sprintf(
			"var __sd_lifted = [(%s).apply(null, [key, value])]; return __sd_concatMap(%s, __sd_lifted);",
			f.String(), g.JS.String(),
		),
	}
}

// FlatMapLike carries the flatMap function being composed into, so
// ComposeFlatMapMap reads as "flatMap g after lifted f".
type FlatMapLike struct{ JS JSFunc }

// ComposeFlatMapFlatMap builds Kleisli composition over the array monad:
// flatMap g . f.
func ComposeFlatMapFlatMap(g, f JSFunc) JSFunc {
	return JSFunc{
		Params: []string{"key", "value"},
		Body: fmt.Sprintf(
			"return __sd_concatMap(%s, (%s).apply(null, [key, value]));",
			g.String(), f.String(),
		),
	}
}
