// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wfconfig holds the compiler's tunable, non-semantic knobs. None
// of these change what a workflow computes; they control naming and task
// chunking.
package wfconfig

import (
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/wfcompiler/mongowf/internal/fieldpath"
)

// Options are the compiler's tunable knobs.
type Options struct {
	// TempFieldPrefix is a prefix for the fresh-name generator a caller
	// hands to merge. Merge takes the generator as an argument and does not
	// read this field itself.
	TempFieldPrefix string `toml:"temp_field_prefix"`

	// GeoNearNoop records that adjacent $geoNear stages are left untouched,
	// per the open question in the design notes: merging their parameters
	// is ambiguous, so the safe, semantics-preserving default is to do
	// nothing. No code reads this field; the coalescer leaves such stages
	// untouched whatever its value.
	GeoNearNoop bool `toml:"geonear_noop"`

	// NonAtomicFoldLeft is threaded into a crushed FoldLeftTask's tail
	// entries as their output action's nonAtomic flag.
	NonAtomicFoldLeft bool `toml:"nonatomic_foldleft"`

	// PipelineBatchLimit caps how many contiguous pipelineable stages
	// crush's pipeline batching puts in one PipelineTask before forcing a
	// split. Zero means
	// unbounded. This only affects how the task tree is chunked, never its
	// semantics: the actual wire-size limit is the driver's concern.
	PipelineBatchLimit int `toml:"pipeline_batch_limit"`
}

// Default returns the zero-config defaults, without touching the
// filesystem.
func Default() Options {
	return Options{
		TempFieldPrefix:   fieldpath.DefaultTempPrefix,
		GeoNearNoop:       true,
		NonAtomicFoldLeft: true,
		PipelineBatchLimit: 0,
	}
}

// Load reads a TOML file and overlays it onto Default(); a field absent
// from the file keeps its default value.
func Load(path string) (Options, error) {
	opts := Default()
	tree, err := toml.LoadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "wfconfig: loading %s", path)
	}
	var parsed Options
	if err := tree.Unmarshal(&parsed); err != nil {
		return Options{}, errors.Wrapf(err, "wfconfig: parsing %s", path)
	}
	if tree.Has("temp_field_prefix") {
		opts.TempFieldPrefix = parsed.TempFieldPrefix
	}
	if tree.Has("geonear_noop") {
		opts.GeoNearNoop = parsed.GeoNearNoop
	}
	if tree.Has("nonatomic_foldleft") {
		opts.NonAtomicFoldLeft = parsed.NonAtomicFoldLeft
	}
	if tree.Has("pipeline_batch_limit") {
		opts.PipelineBatchLimit = parsed.PipelineBatchLimit
	}
	return opts, nil
}
