// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package workflow

import "github.com/pkg/errors"

// Validate walks op checking the structural invariants every constructor in
// this package is supposed to uphold on its own — a non-empty FoldLeft tail,
// a non-empty Join set, a non-empty Reshape, a non-empty Grouped — so that a
// term built by hand (e.g. decoded from a serialized plan rather than built
// through the smart constructors) fails loudly here instead of panicking or
// miscompiling deep inside Crush. This is the structural-impossibility half
// of §7's error model; the declinable half lives entirely in MergeScope and
// the coalesce rules that may leave a term unchanged.
func Validate(op Op) error {
	switch o := op.(type) {
	case *FoldLeftOp:
		if len(o.Tail) == 0 {
			return errors.Errorf("workflow: FoldLeft has an empty tail")
		}
		if err := Validate(o.Head); err != nil {
			return errors.Wrap(err, "FoldLeft head")
		}
		for i, t := range o.Tail {
			if err := Validate(t); err != nil {
				return errors.Wrapf(err, "FoldLeft tail[%d]", i)
			}
		}
		return nil
	case *JoinOp:
		if len(o.Set) == 0 {
			return errors.Errorf("workflow: Join has an empty set")
		}
		for i, s := range o.Set {
			if err := Validate(s); err != nil {
				return errors.Wrapf(err, "Join set[%d]", i)
			}
		}
		return nil
	case *ProjectOp:
		if len(o.Shape.Entries) == 0 {
			return errors.Errorf("workflow: Project has an empty shape")
		}
		return Validate(o.Src)
	case *GroupOp:
		if len(o.Grouped.Entries) == 0 {
			return errors.Errorf("workflow: Group has no accumulators")
		}
		return Validate(o.Src)
	default:
		for _, child := range op.Children() {
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil
	}
}
