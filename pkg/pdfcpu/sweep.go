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

// Package pdfcpu implements the save pipeline: mark/sweep, dedupe,
// renumber/compact, page classification, linearization planning,
// emission, and xref/trailer/hint-stream writing (spec §4).
package pdfcpu

import (
	"github.com/gridref/pdfwriter/pkg/log"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// MarkAndSweep walks the object graph from ctx.Trailer.Root (and
// Trailer.Info) and sets model.UseReachable on every transitively
// reachable object (spec §4.1). Any reference that resolves to null or
// to an object number outside [1, Size) is a "duff" reference: the slot
// holding it is overwritten with a literal null so later stages never
// have to special-case it.
func MarkAndSweep(ctx *model.Context) error {
	if ctx.Trailer.Root == nil {
		return errCorrupt("MarkAndSweep: missing /Root")
	}
	if err := markObject(ctx, int(ctx.Trailer.Root.ObjectNumber)); err != nil {
		return err
	}
	if ctx.Trailer.Info != nil {
		if err := markObject(ctx, int(ctx.Trailer.Info.ObjectNumber)); err != nil {
			return err
		}
	}
	log.Stats.Printf("MarkAndSweep: %d objects reachable\n", countReachable(ctx))
	return nil
}

func countReachable(ctx *model.Context) int {
	n := 0
	for i := 1; i < ctx.Size(); i++ {
		if model.Flags(ctx.Write.Use[i])&model.UseReachable != 0 {
			n++
		}
	}
	return n
}

// markObject marks object num reachable and recurses into its value. A
// second visit is a no-op: the UseReachable bit itself is the
// cycle-detection guard, so Page<->Parent rings and annotation loops
// terminate.
func markObject(ctx *model.Context, num int) error {
	if num <= 0 || num >= ctx.Size() {
		return nil
	}
	if model.Flags(ctx.Write.Use[num])&model.UseReachable != 0 {
		return nil
	}
	ctx.Write.Use[num] |= model.UseReachable

	entry, ok := ctx.FindTableEntry(num, 0)
	if !ok || entry.Free || entry.Object == nil {
		return nil
	}

	// An object compressed into an ObjStm carries no visible IndirectRef
	// to its container anywhere in the graph; mark the container
	// reachable too so Compact/Renumber keeps and renumbers it alongside
	// its members (spec §4 supplement, grounded on pdf-write.c's
	// sweepobject resolving a compressed object's owning stream number).
	if entry.Compressed && entry.ObjectStream != nil {
		if err := markObject(ctx, *entry.ObjectStream); err != nil {
			return err
		}
	}

	switch v := entry.Object.(type) {
	case types.StreamDict:
		if err := bakeStreamLength(ctx, &v); err != nil {
			if model.IsRetryable(err) {
				return err
			}
			// Non-retryable: leave /Length as-is, duff handling for the
			// dict's other entries still applies below.
		} else {
			entry.Object = v
		}
		return markDict(ctx, v.Dict)
	case types.Dict:
		return markDict(ctx, v)
	case types.Array:
		return markArray(ctx, v)
	}
	return nil
}

// bakeStreamLength inlines sd's /Length entry when it is itself an
// indirect reference: the linearizer needs a stable length before the
// object graph is renumbered and re-walked (spec §4.1).
func bakeStreamLength(ctx *model.Context, sd *types.StreamDict) error {
	lv, ok := sd.Dict["Length"]
	if !ok {
		return nil
	}
	ir, isRef := lv.(types.IndirectRef)
	if !isRef {
		return nil
	}
	val, err := ctx.Dereference(ir)
	if err != nil {
		return err
	}
	if iv, ok := val.(types.Integer); ok {
		sd.Dict["Length"] = iv
		return nil
	}
	if sd.StreamLength != nil {
		sd.Dict["Length"] = types.Integer(*sd.StreamLength)
	}
	return nil
}

func markDict(ctx *model.Context, d types.Dict) error {
	for _, k := range d.Keys() {
		if err := markSlot(ctx, d, k, d[k]); err != nil {
			return err
		}
	}
	return nil
}

func markArray(ctx *model.Context, a types.Array) error {
	for i, v := range a {
		if err := markSlot(ctx, a, i, v); err != nil {
			return err
		}
	}
	return nil
}

// markSlot resolves a single dict entry or array element. slot is a
// types.Dict (keyed by string) or types.Array (keyed by int); container
// and key together identify where to write back a duff null.
func markSlot(ctx *model.Context, container interface{}, key interface{}, v types.Object) error {
	if v == nil {
		return nil
	}

	ir, isRef := v.(types.IndirectRef)
	if !isRef {
		return markValue(ctx, v)
	}

	num := int(ir.ObjectNumber)
	duff := num <= 0 || num >= ctx.Size()
	if !duff {
		resolved, err := ctx.Dereference(ir)
		if err != nil {
			if model.IsRetryable(err) {
				return err
			}
			duff = true
		} else if resolved == nil {
			duff = true
		}
	}

	if duff {
		writeSlot(container, key, nil)
		return nil
	}

	return markObject(ctx, num)
}

func markValue(ctx *model.Context, v types.Object) error {
	switch t := v.(type) {
	case types.Dict:
		return markDict(ctx, t)
	case types.StreamDict:
		return markDict(ctx, t.Dict)
	case types.Array:
		return markArray(ctx, t)
	}
	return nil
}

func writeSlot(container interface{}, key interface{}, v types.Object) {
	switch c := container.(type) {
	case types.Dict:
		c[key.(string)] = v
	case types.Array:
		c[key.(int)] = v
	}
}
