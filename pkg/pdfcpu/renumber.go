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

package pdfcpu

import (
	"github.com/gridref/pdfwriter/pkg/log"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// Compact implements spec §4.3's Compact sub-phase: sweep ids ascending,
// assigning a monotone new-id counter. wc.Renumber must already hold
// Dedupe's merge targets (identity for everyone else) and wc.Use must
// already reflect reachability. After Compact, wc.Renumber[i] <= i for
// every i (the invariant spec §3 names).
func Compact(ctx *model.Context) {
	wc := ctx.Write
	newID := 0
	for i := 1; i < ctx.Size(); i++ {
		target := wc.Renumber[i]
		if wc.Use[target] == 0 {
			wc.Renumber[i] = 0
			continue
		}
		if target == i {
			newID++
			wc.Renumber[i] = newID
			continue
		}
		// target < i and was already visited: its new id is final.
		wc.Renumber[i] = wc.Renumber[target]
	}
}

// CompactAndRenumber runs Compact followed by Rewrite: the standard
// garbage>=2 path (spec §4.3).
func CompactAndRenumber(ctx *model.Context) error {
	Compact(ctx)
	return Rewrite(ctx)
}

// Rewrite implements spec §4.3's Rewrite sub-phase: every indirect
// reference in every surviving object is replaced by a reference to
// wc.Renumber[old_num], or null when old_num is out of range or mapped
// to 0 (dropped). A freshly sized xref table is installed where entry
// wc.Renumber[i] receives old entry i's contents, and wc.Use is moved to
// the new numbering the same way. Rewrite is also used
// standalone for the linearization planner's second renumber pass (spec
// §4.5), where wc.Renumber already holds the planned final ids rather
// than a Compact()-computed mapping.
func Rewrite(ctx *model.Context) error {
	wc := ctx.Write
	oldSize := ctx.Size()

	newTable := make(map[int]*model.XRefTableEntry, oldSize)
	newUse := make([]uint32, len(wc.Use))
	maxID := 0

	for i := 1; i < oldSize; i++ {
		entry, ok := ctx.Table[i]
		if !ok {
			continue
		}
		newID := wc.Renumber[i]
		if newID == 0 {
			continue
		}
		if newID > maxID {
			maxID = newID
		}
		if entry.Object != nil {
			if err := rewriteRefsIn(ctx, entry.Object); err != nil {
				return err
			}
		}
		newTable[newID] = entry
		wc.RevRenumber[newID] = i
		newUse[newID] |= wc.Use[i]
	}
	copy(wc.Use, newUse)

	ctx.Table = newTable
	ctx.Table[0] = model.NewFreeHeadXRefTableEntry()
	ctx.Trailer.Size = maxID + 1

	if ctx.Trailer.Root != nil {
		ctx.Trailer.Root = renumberedRef(wc, ctx.Trailer.Root)
	}
	if ctx.Trailer.Info != nil {
		ctx.Trailer.Info = renumberedRef(wc, ctx.Trailer.Info)
	}

	log.Stats.Printf("Rewrite: %d live objects, new size %d\n", len(newTable), ctx.Trailer.Size)
	return nil
}

func renumberedRef(wc *model.WriteContext, ir *types.IndirectRef) *types.IndirectRef {
	old := int(ir.ObjectNumber)
	if old <= 0 || old >= len(wc.Renumber) || wc.Renumber[old] == 0 {
		return nil
	}
	return types.NewIndirectRef(wc.Renumber[old], 0)
}

func rewriteRefsIn(ctx *model.Context, v types.Object) error {
	switch t := v.(type) {
	case types.Dict:
		return rewriteDict(ctx, t)
	case types.StreamDict:
		return rewriteDict(ctx, t.Dict)
	case types.Array:
		return rewriteArray(ctx, t)
	}
	return nil
}

func rewriteDict(ctx *model.Context, d types.Dict) error {
	for _, k := range d.Keys() {
		nv, err := rewriteValue(ctx, d[k])
		if err != nil {
			return err
		}
		d[k] = nv
	}
	return nil
}

func rewriteArray(ctx *model.Context, a types.Array) error {
	for i, v := range a {
		nv, err := rewriteValue(ctx, v)
		if err != nil {
			return err
		}
		a[i] = nv
	}
	return nil
}

func rewriteValue(ctx *model.Context, v types.Object) (types.Object, error) {
	if v == nil {
		return nil, nil
	}
	if ir, ok := v.(types.IndirectRef); ok {
		old := int(ir.ObjectNumber)
		if old <= 0 || old >= ctx.Size() || ctx.Write.Renumber[old] == 0 {
			return nil, nil
		}
		return *types.NewIndirectRef(ctx.Write.Renumber[old], 0), nil
	}
	if err := rewriteRefsIn(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}
