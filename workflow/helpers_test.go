// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import (
	"github.com/wfcompiler/mongowf/internal/bsonval"
	"github.com/wfcompiler/mongowf/internal/fieldpath"
)

func mustPath(name string) fieldpath.Path { return fieldpath.NewNamed(name) }

func mustLit(i int32) bsonval.Value { return bsonval.NewInt32(i) }
