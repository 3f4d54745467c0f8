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
	"bytes"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/gridref/pdfwriter/pkg/log"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// Save implements spec §4.9, the Orchestrator: run the configured
// garbage-collection pipeline, then hand off to the flat or linearized
// write path. w receives the complete serialized file.
func Save(ctx *model.Context, w io.Writer) error {
	if err := ctx.Validate(); err != nil {
		return err
	}

	if ctx.Garbage >= model.GarbageSweepOnly || ctx.Linear {
		if err := MarkAndSweep(ctx); err != nil {
			return err
		}
	} else {
		markAllReachable(ctx)
	}

	if ctx.Garbage >= model.GarbageDedupe {
		if err := Dedupe(ctx, ctx.Garbage >= model.GarbageDedupeStreams); err != nil {
			return err
		}
	}

	if ctx.Garbage >= model.GarbageCompact || ctx.Linear {
		if err := CompactAndRenumber(ctx); err != nil {
			return err
		}
	}

	if (ctx.Linear || ctx.Garbage >= model.GarbageCompact) && len(ctx.Trailer.ID) == 0 {
		ensureID(ctx)
	}

	if ctx.Linear {
		return saveLinearized(ctx, w)
	}
	return saveFlat(ctx, w)
}

// ensureID installs a fresh /ID pair when a linearized or compacted save
// is about to write a trailer with none (spec §4 supplement, grounded
// on pdf_write_document's own id-repair step): an MD5 digest over the
// object count and the root/info references.
func ensureID(ctx *model.Context) {
	h := md5.New()
	fmt.Fprintf(h, "%d", ctx.Size())
	if ctx.Trailer.Root != nil {
		fmt.Fprintf(h, "%d %d", ctx.Trailer.Root.ObjectNumber, ctx.Trailer.Root.GenerationNumber)
	}
	if ctx.Trailer.Info != nil {
		fmt.Fprintf(h, "%d %d", ctx.Trailer.Info.ObjectNumber, ctx.Trailer.Info.GenerationNumber)
	}
	id := types.NewHexLiteral(h.Sum(nil))
	ctx.Trailer.ID = types.Array{id, id}
}

// markAllReachable is the spec §4.9 fallback for GarbageNone: every
// object is treated as live, exactly as if mark/sweep had reached it,
// since no collection was requested.
func markAllReachable(ctx *model.Context) {
	for i := 1; i < ctx.Size(); i++ {
		ctx.Write.Use[i] = model.UseReachable
	}
}

// saveFlat implements the common, non-linearized save: objects in
// ascending id order followed by one xref/trailer section, each offset
// known by the time it is needed because the xref table is always the
// last thing written (spec §4.9).
func saveFlat(ctx *model.Context, w io.Writer) error {
	BuildFreeList(ctx)

	cw := newCountingWriter(w)
	if err := WriteHeader(ctx, cw); err != nil {
		return err
	}
	if err := EmitObjectRange(ctx, cw, 1, ctx.Size()); err != nil {
		return err
	}

	if ctx.WriteXRefStream {
		startOfs, _, err := WriteXRefStream(ctx, cw, 0, ctx.Size(), true, 0)
		if err != nil {
			return err
		}
		return writeFooter(cw, startOfs)
	}
	startOfs, err := WriteXRefTable(ctx, cw, 0, ctx.Size(), true, 0)
	if err != nil {
		return err
	}
	return writeFooter(cw, startOfs)
}

// writeFooter appends the startxref/%%EOF trailer every PDF file must end
// with (spec §4.7), pointing a reader at the byte offset the file's single
// (or, for a linearized save, main) xref section begins at.
func writeFooter(cw *countingWriter, startxref int64) error {
	_, err := fmt.Fprintf(cw, "startxref\n%d\n%%%%EOF\n", startxref)
	return errIO(err, "writeFooter")
}

// saveLinearized implements spec §4.9's linearized path, grounded on
// MuPDF's pass-0/pass-1 split: pass 0 writes the whole file once to a
// throwaway buffer purely to learn every object's provisional offset and
// the length of everything but the not-yet-built hint stream; the hint
// stream is then built from those offsets, and pass 1 writes the file
// with the linearization parameter dict patched in and the hint stream
// carrying its real content.
//
// Unlike MuPDF, which patches pass 0's buffer in place and must therefore
// pad every later object back out to its pass-0 position, pass 1 here is
// a second from-scratch write: every offset it records is the genuine
// final one. The first-page xref sits ahead of most of the objects it
// lists, so within pass 1 it can only carry pass-0 offsets; a last pass,
// identical to pass 1 except for those xref entries, writes it again
// with pass 1's measured offsets. The one place pass-0 offsets remain load-bearing is the
// hint stream's own content (spec §4.8) and the /L, /E and /T estimates
// below, all of which MuPDF itself derives the same way - from
// positions measured before the hint stream's real size is known - and
// are advisory fields a reader tolerates being approximate.
func saveLinearized(ctx *model.Context, w io.Writer) error {
	// Linearize needs ctx.Write.Use/Pages in the post-Compact numbering
	// (spec §2's data flow: ... D -> E -> F -> D(again) ...); CompactAndRenumber
	// left wc sized to the pre-compact object count and carrying only
	// reachability bits, so a fresh WriteContext is required before
	// Classify can populate it.
	ctx.ResetWriteContext()
	if err := Classify(ctx); err != nil {
		return err
	}

	paramsNum, hintNum, err := Linearize(ctx)
	if err != nil {
		return err
	}
	BuildFreeList(ctx)

	var discard bytes.Buffer
	pass0Len, err := runLinearizedPass(ctx, &discard)
	if err != nil {
		return err
	}

	hintBuf, sharedOffset, err := BuildHintStream(ctx)
	if err != nil {
		return err
	}
	hintLen := int64(len(hintBuf))
	estimatedHintLen := hintLen
	if ctx.ASCIIHex {
		// Mirrors spec §4.9's ASCII-hex overhead estimate: two hex digits
		// per byte, plus one newline every 64 output characters, plus one
		// trailing terminator.
		estimatedHintLen = hintLen*2 + 1 + (hintLen*2+63)/64
	}

	patchLinearizationParams(ctx, paramsNum, hintNum, hintBuf, sharedOffset, pass0Len, estimatedHintLen)

	var final bytes.Buffer
	for pass := 1; pass <= 2; pass++ {
		final.Reset()
		if _, err := runLinearizedPass(ctx, &final); err != nil {
			return err
		}
	}
	_, err = w.Write(final.Bytes())
	return errIO(err, "saveLinearized")
}

// runLinearizedPass writes one full pass of the linearized file to dst:
// header, the params object, the first-page xref (classic, covering
// [wc.Start, Size)), the remaining ascending objects (including the
// hint stream), then the wraparound page objects, then the main xref
// (classic, covering [0, wc.Start), carrying the free-list head). Returns
// the total byte length
// written, which on pass 0 (hint stream still a zero-length placeholder)
// is the measurement saveLinearized estimates the real /L from.
func runLinearizedPass(ctx *model.Context, dst io.Writer) (int64, error) {
	wc := ctx.Write
	cw := newCountingWriter(dst)

	if err := WriteHeader(ctx, cw); err != nil {
		return 0, err
	}
	if err := EmitObjectRange(ctx, cw, wc.Start, wc.Start+1); err != nil {
		return 0, err
	}
	firstXrefOffset := cw.Offset()
	if _, err := WriteXRefTable(ctx, cw, wc.Start, ctx.Size(), true, 0); err != nil {
		return 0, err
	}
	if err := EmitObjectRange(ctx, cw, wc.Start+1, ctx.Size()); err != nil {
		return 0, err
	}
	if err := EmitObjectRange(ctx, cw, 1, wc.Start); err != nil {
		return 0, err
	}

	wc.MainXrefOffset = cw.Offset()
	if _, err := WriteXRefTable(ctx, cw, 0, wc.Start, false, firstXrefOffset); err != nil {
		return 0, err
	}
	// A linearized file's trailing startxref still points readers at the
	// main xref section, not the first-page one: the /Linearized dict's own
	// /O and /H fields are what a fast-web-view reader uses to jump to page
	// one without scanning this far (spec §4.9).
	if err := writeFooter(cw, wc.MainXrefOffset); err != nil {
		return 0, err
	}
	return cw.Offset(), nil
}

// patchLinearizationParams fills in the linearization parameter dict's
// /L /H /O /E /N /T placeholders and attaches the hint stream's real
// content, all of which can only be known once pass 0 has measured the
// file and the hint stream has been built (spec §4.9's
// update_linearization_params). pass0Len and estimatedHintLen give /L,
// /E and /T their values the same way MuPDF derives them: from
// positions measured before pass 1's real write, so a multi-byte drift
// in the params dict's own serialized width (placeholder sentinels vs.
// real, usually shorter, numbers) can leave them off by a handful of
// bytes. Readers treat these fields as advisory hints, not a contract.
func patchLinearizationParams(ctx *model.Context, paramsNum, hintNum int, hintBuf []byte, sharedOffset int, pass0Len, estimatedHintLen int64) {
	wc := ctx.Write

	params, _ := ctx.Table[paramsNum].Object.(types.Dict)
	hintEntry := ctx.Table[hintNum]
	hint, _ := hintEntry.Object.(types.StreamDict)
	hint.Dict["S"] = types.Integer(sharedOffset)

	params["L"] = types.Integer(pass0Len + estimatedHintLen)
	params["H"] = types.NewIntegerArray(int(wc.Ofs[hintNum]), int(estimatedHintLen))
	if len(wc.Pages) > 0 && len(wc.Pages[0].Objects) > 0 {
		params["O"] = types.Integer(wc.Pages[0].Objects[0])
	}
	params["E"] = types.Integer(wc.Ofs[1] + estimatedHintLen)
	params["N"] = types.Integer(len(wc.Pages))
	params["T"] = types.Integer(wc.MainXrefOffset + estimatedHintLen)

	ctx.Table[hintNum].Object = types.NewStreamDict(hint.Dict, hintBuf, nil)

	log.Stats.Printf("Linearize: patched params obj %d, hint obj %d, hint len %d\n", paramsNum, hintNum, len(hintBuf))
}
