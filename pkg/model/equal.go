/*
Copyright 2018 The pdfcpu Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"bytes"
	"fmt"

	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/pkg/errors"
)

// EqualObjects implements the structural equality spec §4.2 requires for
// dedupe: dictionary key order is irrelevant, array element order is
// not, and a stream's raw (undecoded) bytes must match byte-for-byte in
// addition to its dictionary. An indirect reference and the object it
// resolves to compare equal; so do two references to the same (num,gen).
func EqualObjects(o1, o2 types.Object, xt *XRefTable) (bool, error) {
	if ir1, ok := o1.(types.IndirectRef); ok {
		if ir2, ok := o2.(types.IndirectRef); ok && ir1 == ir2 {
			return true, nil
		}
	}

	v1, err := xt.Dereference(o1)
	if err != nil {
		return false, err
	}
	v2, err := xt.Dereference(o2)
	if err != nil {
		return false, err
	}

	if v1 == nil || v2 == nil {
		return v1 == nil && v2 == nil, nil
	}

	if fmt.Sprintf("%T", v1) != fmt.Sprintf("%T", v2) {
		return false, nil
	}

	switch t1 := v1.(type) {

	case types.Name, types.StringLiteral, types.HexLiteral,
		types.Integer, types.Real, types.Boolean:
		return v1 == v2, nil

	case types.Dict:
		return equalDicts(t1, v2.(types.Dict), xt)

	case types.StreamDict:
		// Plain EqualObjects never treats two streams as equal: spec §4.2
		// requires the caller to opt into "aggressive" stream dedupe via
		// EqualStreamDicts explicitly (see pkg/pdfcpu/dedupe.go).
		return false, nil

	case types.Array:
		return equalArrays(t1, v2.(types.Array), xt)

	default:
		return false, errors.Errorf("pdfcpu: EqualObjects: unhandled type %T", v1)
	}
}

func equalDicts(d1, d2 types.Dict, xt *XRefTable) (bool, error) {
	if len(d1) != len(d2) {
		return false, nil
	}
	for k, v1 := range d1 {
		v2, ok := d2[k]
		if !ok {
			return false, nil
		}
		if v1 == nil || v2 == nil {
			if v1 != nil || v2 != nil {
				return false, nil
			}
			continue
		}
		ok2, err := EqualObjects(v1, v2, xt)
		if err != nil || !ok2 {
			return false, err
		}
	}
	return true, nil
}

func equalArrays(a1, a2 types.Array, xt *XRefTable) (bool, error) {
	if len(a1) != len(a2) {
		return false, nil
	}
	for i := range a1 {
		if a1[i] == nil || a2[i] == nil {
			if a1[i] != nil || a2[i] != nil {
				return false, nil
			}
			continue
		}
		ok, err := EqualObjects(a1[i], a2[i], xt)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// EqualStreamDicts compares two streams' dictionaries structurally and,
// additionally, their raw undecoded bytes. Spec §4.2: "Stream vs stream:
// equal only when ... both raw buffers match byte-for-byte."
func EqualStreamDicts(sd1, sd2 *types.StreamDict, xt *XRefTable) (bool, error) {
	ok, err := equalDicts(sd1.Dict, sd2.Dict, xt)
	if err != nil || !ok {
		return false, err
	}
	return bytes.Equal(sd1.Raw, sd2.Raw), nil
}
