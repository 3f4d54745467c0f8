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

// Package model holds the in-memory PDF document representation (the
// object table and trailer) plus the ephemeral per-save write state the
// pkg/pdfcpu pipeline operates over.
package model

import (
	"fmt"

	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/pkg/errors"
)

// XRefTableEntry represents one entry of the PDF cross reference table:
// a free slot, an object packed inside an object stream ('o'), or an
// in-use object ('n') with a resident parsed representation.
type XRefTableEntry struct {
	Free         bool
	Compressed   bool
	ObjectStream *int // id of the owning ObjStm, when Compressed
	Offset       *int64
	Generation   *int
	Object       types.Object
}

// NewXRefTableEntryGen0 returns a table entry for obj at generation 0.
func NewXRefTableEntryGen0(obj types.Object) *XRefTableEntry {
	zero := 0
	return &XRefTableEntry{Generation: &zero, Object: obj}
}

// NewFreeHeadXRefTableEntry returns the entry for object 0, the
// per-definition head of the free list.
func NewFreeHeadXRefTableEntry() *XRefTableEntry {
	gen := types.FreeHeadGeneration
	offset := int64(0)
	return &XRefTableEntry{Free: true, Generation: &gen, Offset: &offset}
}

// Trailer carries the document-level pointers spec §3 names: Root, Info,
// ID, Encrypt, Size (xref length) and Prev (the startxref of an older
// xref section this one incrementally extends).
type Trailer struct {
	Root    *types.IndirectRef
	Info    *types.IndirectRef
	ID      types.Array
	Encrypt *types.IndirectRef
	Size    int
	Prev    *int64
}

// ObjectResolver is the parser collaborator's contract (spec §6): PDF
// parsing itself is out of scope here, but a save over a partially-loaded
// document needs a blocking call to materialize an object's resident
// representation on first touch. Resolve may return model.ErrRetryable
// for a network-backed source asking the caller to try again later; that
// error must propagate out of mark/sweep unchanged rather than being
// treated as a duff reference.
type ObjectResolver interface {
	Resolve(num, gen int) (types.Object, error)
}

// XRefTable is the numbered object table plus trailer: the in-memory
// document model a save operation serializes. Object numbers live in
// [1, Size).
type XRefTable struct {
	Table    map[int]*XRefTableEntry
	Trailer  Trailer
	Resolver ObjectResolver // optional; nil for a fully in-memory document
}

// NewXRefTable returns an XRefTable with capacity for size-1 live objects
// (object 0 is reserved as the free-list head) and an empty trailer.
func NewXRefTable(size int) *XRefTable {
	xt := &XRefTable{
		Table:   make(map[int]*XRefTableEntry, size),
		Trailer: Trailer{Size: size},
	}
	xt.Table[0] = NewFreeHeadXRefTableEntry()
	return xt
}

// Size returns the xref length (one past the highest valid object number).
func (xt *XRefTable) Size() int { return xt.Trailer.Size }

// FindTableEntry returns the entry for (num, gen), if any.
func (xt *XRefTable) FindTableEntry(num, gen int) (*XRefTableEntry, bool) {
	e, ok := xt.Table[num]
	if !ok || e == nil {
		return nil, false
	}
	if e.Generation != nil && *e.Generation != gen && !e.Free {
		// Stale generation reference; still resolvable, callers may choose
		// to treat this as duff per spec §4.1.
	}
	return e, true
}

// Dereference resolves o down to a non-reference Object. A reference to
// an out-of-range object number, or to a free/nil entry, resolves to nil
// (the spec's "duff" case, §4.1) rather than erroring, so callers can
// replace it with a literal null.
func (xt *XRefTable) Dereference(o types.Object) (types.Object, error) {
	ir, ok := o.(types.IndirectRef)
	if !ok {
		return o, nil
	}
	num := int(ir.ObjectNumber)
	if num <= 0 || num >= xt.Trailer.Size {
		return nil, nil
	}
	e, ok := xt.FindTableEntry(num, int(ir.GenerationNumber))
	if !ok || e.Free {
		return nil, nil
	}
	if e.Object == nil {
		if xt.Resolver == nil {
			return nil, nil
		}
		gen := 0
		if e.Generation != nil {
			gen = *e.Generation
		}
		obj, err := xt.Resolver.Resolve(num, gen)
		if err != nil {
			return nil, err
		}
		e.Object = obj
	}
	return e.Object, nil
}

// DereferenceDict dereferences o and type-asserts the result to a Dict.
func (xt *XRefTable) DereferenceDict(o types.Object) (types.Dict, error) {
	v, err := xt.Dereference(o)
	if err != nil || v == nil {
		return nil, err
	}
	d, ok := v.(types.Dict)
	if !ok {
		return nil, errors.Errorf("pdfcpu: DereferenceDict: expected dict, got %T", v)
	}
	return d, nil
}

// Catalog returns the document catalog dict pointed to by Trailer.Root.
func (xt *XRefTable) Catalog() (types.Dict, error) {
	if xt.Trailer.Root == nil {
		return nil, errors.New("pdfcpu: Catalog: missing /Root")
	}
	return xt.DereferenceDict(*xt.Trailer.Root)
}

func (xt *XRefTable) String() string {
	return fmt.Sprintf("xref table: %d entries, root=%v", len(xt.Table), xt.Trailer.Root)
}
