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
	"fmt"
	"io"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// BuildFreeList implements spec §4.7's free-list chain construction: every
// object number in [0, Size) with Use == 0 (never marked live, or dropped
// by Dedupe/Compact) is threaded into the classic free-list ring, object
// 0 at its head. A free entry's xref "offset" field is repurposed as the
// next-free object number and its generation is bumped by one (capped at
// types.FreeHeadGeneration-1) so a later incremental update that reuses
// the slot gets a fresh generation number. Must run after the final
// renumber pass, once ctx.Write.Use reflects the objects actually being
// written.
func BuildFreeList(ctx *model.Context) {
	wc := ctx.Write
	last := 0
	for num := 1; num < ctx.Size(); num++ {
		if wc.Use[num] != 0 {
			continue
		}
		wc.Ofs[last] = int64(num)
		last = num
		if wc.Gen[num] < int(types.FreeHeadGeneration)-1 {
			wc.Gen[num]++
		}
	}
	wc.Ofs[last] = 0
	wc.Gen[0] = int(types.FreeHeadGeneration)
	wc.LastFree = last
}

// isIncrementalEntry reports whether object num was added or modified
// since the base revision this save incrementally extends: an entry
// carries a resident Offset only when it was located in the prior
// on-disk xref, so its absence marks the object as new/changed in this
// update (spec §4.7's incremental subsection split).
func isIncrementalEntry(ctx *model.Context, num int) bool {
	entry, ok := ctx.Table[num]
	if !ok || entry == nil {
		return false
	}
	return entry.Offset == nil
}

// subsectionRanges splits [from, to) into the maximal runs xref
// subsections cover: a single range for a full (non-incremental) save,
// or, under Incremental, only the runs of objects new/changed since the
// base revision (spec §4.7).
func subsectionRanges(ctx *model.Context, from, to int) [][2]int {
	if !ctx.Incremental {
		return [][2]int{{from, to}}
	}
	var ranges [][2]int
	subfrom := from
	for subfrom < to {
		for subfrom < to && !isIncrementalEntry(ctx, subfrom) {
			subfrom++
		}
		subto := subfrom
		for subto < to && isIncrementalEntry(ctx, subto) {
			subto++
		}
		if subfrom < subto {
			ranges = append(ranges, [2]int{subfrom, subto})
		}
		subfrom = subto
	}
	return ranges
}

// WriteXRefTable implements spec §4.7's classic xref encoding. from/to
// name the object-number range this section covers; first marks the
// section that owns /Root, /Info and /ID (the only section that does, in
// a linearized save's first-page xref); mainXrefOffset, when nonzero,
// becomes the trailer's /Prev. Returns the byte offset the "xref"
// keyword was written at, the value a caller chains into startxref.
func WriteXRefTable(ctx *model.Context, cw *countingWriter, from, to int, first bool, mainXrefOffset int64) (int64, error) {
	startOfs := cw.Offset()

	if _, err := io.WriteString(cw, "xref\n"); err != nil {
		return 0, errIO(err, "WriteXRefTable")
	}

	for _, r := range subsectionRanges(ctx, from, to) {
		if err := writeXRefSubsect(ctx, cw, r[0], r[1]); err != nil {
			return 0, err
		}
	}

	if _, err := io.WriteString(cw, "\n"); err != nil {
		return 0, errIO(err, "WriteXRefTable")
	}

	trailer := buildTrailerDict(ctx, to, first, mainXrefOffset)
	if _, err := io.WriteString(cw, "trailer\n"); err != nil {
		return 0, errIO(err, "WriteXRefTable")
	}
	if _, err := io.WriteString(cw, trailer.PDFString()); err != nil {
		return 0, errIO(err, "WriteXRefTable")
	}
	_, err := io.WriteString(cw, "\n")
	return startOfs, errIO(err, "WriteXRefTable")
}

func writeXRefSubsect(ctx *model.Context, cw *countingWriter, from, to int) error {
	wc := ctx.Write
	if _, err := fmt.Fprintf(cw, "%d %d\n", from, to-from); err != nil {
		return errIO(err, "writeXRefSubsect")
	}
	for num := from; num < to; num++ {
		kind := byte('f')
		if wc.Use[num] != 0 {
			kind = 'n'
		}
		if _, err := fmt.Fprintf(cw, "%010d %05d %c \n", wc.Ofs[num], wc.Gen[num], kind); err != nil {
			return errIO(err, "writeXRefSubsect")
		}
	}
	return nil
}

// buildTrailerDict assembles the trailer dictionary a classic xref
// section is followed by (spec §4.7): /Size always; /Root, /Info, /ID
// (and, incrementally, /Encrypt) only on the section marked first;
// /Prev when this section extends an earlier one.
func buildTrailerDict(ctx *model.Context, to int, first bool, mainXrefOffset int64) types.Dict {
	d := types.NewDict()
	d["Size"] = types.Integer(to)

	if first {
		if ctx.Trailer.Info != nil {
			d["Info"] = renumberedTrailerRef(ctx, ctx.Trailer.Info)
		}
		if ctx.Trailer.Root != nil {
			d["Root"] = renumberedTrailerRef(ctx, ctx.Trailer.Root)
		}
		if ctx.Trailer.ID != nil {
			d["ID"] = ctx.Trailer.ID
		}
		if ctx.Incremental && ctx.Trailer.Encrypt != nil {
			d["Encrypt"] = renumberedTrailerRef(ctx, ctx.Trailer.Encrypt)
		}
	}

	if ctx.Incremental {
		if ctx.Trailer.Prev != nil {
			d["Prev"] = types.Integer(*ctx.Trailer.Prev)
		}
	} else if mainXrefOffset != 0 {
		d["Prev"] = types.Integer(mainXrefOffset)
	}

	return d
}

// renumberedTrailerRef returns ir as-is: by the time the xref/trailer
// writer runs, Rewrite has already replaced ctx.Trailer.Root/Info with
// their final renumbered references (spec §4.3), so no further mapping
// is needed here. The helper exists so buildTrailerDict reads the same
// regardless of which save path populated the trailer.
func renumberedTrailerRef(ctx *model.Context, ir *types.IndirectRef) types.Object {
	return *ir
}

// WriteXRefStream implements spec §4.7's cross-reference stream
// encoding: a fresh XRef-typed stream object, appended one past the
// current table end, carrying a packed (1,4,1)-byte-width entry per
// object plus an /Index array describing which subsections it covers.
// The stream is then serialized through the same emitStream path the
// ordinary emitter uses, so its own byte-for-byte framing matches every
// other stream object. Returns the file offset the object was written
// at (the startxref value a caller chains) and the object number
// assigned to it.
//
// Precondition: to == ctx.Size() at the call site — the stream claims
// the object number one past the current table end for itself, then
// folds its own entry into the subsection range it writes.
func WriteXRefStream(ctx *model.Context, cw *countingWriter, from, to int, first bool, mainXrefOffset int64) (int64, int, error) {
	wc := ctx.Write
	num := ctx.Size()
	if num+1 >= len(wc.Use) {
		return 0, 0, errCorrupt("WriteXRefStream: no headroom for the xref stream object")
	}

	to++ // the xref stream object itself is entry `to`, one past the old range.

	dict := types.NewDict()
	if first {
		if ctx.Trailer.Info != nil {
			dict["Info"] = *ctx.Trailer.Info
		}
		if ctx.Trailer.Root != nil {
			dict["Root"] = *ctx.Trailer.Root
		}
		if ctx.Trailer.ID != nil {
			dict["ID"] = ctx.Trailer.ID
		}
		if ctx.Incremental && ctx.Trailer.Encrypt != nil {
			dict["Encrypt"] = *ctx.Trailer.Encrypt
		}
	}
	dict["Size"] = types.Integer(to)

	if ctx.Incremental {
		if ctx.Trailer.Prev != nil {
			dict["Prev"] = types.Integer(*ctx.Trailer.Prev)
		}
	} else if mainXrefOffset != 0 {
		dict["Prev"] = types.Integer(mainXrefOffset)
	}

	dict["Type"] = types.Name("XRef")
	dict["W"] = types.NewIntegerArray(1, 4, 1)
	index := types.Array{}

	startOfs := cw.Offset()
	wc.Use[num] = 1
	wc.Gen[num] = 0
	wc.Ofs[num] = startOfs

	var buf []byte
	for _, r := range subsectionRanges(ctx, from, to) {
		index = append(index, types.Integer(r[0]), types.Integer(r[1]-r[0]))
		buf = writeXRefStreamSubsect(ctx, buf, r[0], r[1])
	}
	dict["Index"] = index

	sd := types.NewStreamDict(dict, buf, nil)
	ctx.Table[num] = model.NewXRefTableEntryGen0(sd)

	if err := emitStream(ctx, cw, num, 0, sd, false); err != nil {
		return 0, 0, err
	}
	return startOfs, num, nil
}

// writeXRefStreamSubsect appends one subsection's packed entries to buf:
// per spec §4.7's (1,4,1) field widths, a type byte (0 free / 1 in use),
// a 4-byte big-endian offset (or, for a free entry, the next-free object
// number), and a 1-byte generation.
func writeXRefStreamSubsect(ctx *model.Context, buf []byte, from, to int) []byte {
	wc := ctx.Write
	for num := from; num < to; num++ {
		kind := byte(0)
		if wc.Use[num] != 0 {
			kind = 1
		}
		ofs := wc.Ofs[num]
		buf = append(buf, kind,
			byte(ofs>>24), byte(ofs>>16), byte(ofs>>8), byte(ofs),
			byte(wc.Gen[num]))
	}
	return buf
}
