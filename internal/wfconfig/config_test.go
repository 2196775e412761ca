// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wfconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := Default()
	assert.Equal(t, "__sd_tmp_", opts.TempFieldPrefix)
	assert.True(t, opts.GeoNearNoop)
	assert.True(t, opts.NonAtomicFoldLeft)
	assert.Equal(t, 0, opts.PipelineBatchLimit)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.toml")
	contents := "pipeline_batch_limit = 50\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, opts.PipelineBatchLimit)
	// Fields absent from the file keep their Default() value.
	assert.True(t, opts.NonAtomicFoldLeft)
	assert.Equal(t, "__sd_tmp_", opts.TempFieldPrefix)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
