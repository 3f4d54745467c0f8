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
	"fmt"
	"io"

	"github.com/gridref/pdfwriter/pkg/filter"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// countingWriter wraps an io.Writer, tracking the byte offset written so
// far. Every emitter pass writes through one of these; in a linearized
// save (spec §4.6/§4.9) the earlier passes write into throwaway buffers
// purely to measure offsets, which later passes use for the fields they
// place ahead of the objects those fields describe.
type countingWriter struct {
	w   io.Writer
	off int64
}

func newCountingWriter(w io.Writer) *countingWriter { return &countingWriter{w: w} }

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.off += int64(n)
	return n, err
}

func (cw *countingWriter) Offset() int64 { return cw.off }

// WriteHeader emits the PDF version comment and the mandatory binary
// marker (spec §4.6), skipped entirely for an incremental update, which
// appends to an existing header. Shares cw with EmitObjects/the
// xref/trailer writer so every offset they record is relative to the
// same real stream position, header included.
func WriteHeader(ctx *model.Context, cw *countingWriter) error {
	if ctx.Incremental {
		return nil
	}
	_, err := fmt.Fprintf(cw, "%%PDF-1.7\n%%\xe2\xe3\xcf\xd3\n\n")
	return errIO(err, "WriteHeader")
}

// EmitObjectRange writes every live object in [from, to) once, ascending.
// Used directly by a non-linearized save (from=1, to=Size) and as the
// building block EmitObjects composes for a linearized save's
// wraparound order.
func EmitObjectRange(ctx *model.Context, cw *countingWriter, from, to int) error {
	for num := from; num < to; num++ {
		if err := emitObject(ctx, cw, num); err != nil {
			return err
		}
	}
	return nil
}

// EmitObjects writes every live object once, in the wraparound order
// spec §4.9 names: object wc.Start first (the params object in a
// linearized save, 0/no-op otherwise), then ascending through the end of
// the table, then ascending again from 1 up to wc.Start. For a
// non-linearized save wc.Start is 0 and this degenerates to a single
// ascending pass over [1, Size). Object offsets are recorded into
// wc.Ofs as they are written.
func EmitObjects(ctx *model.Context, cw *countingWriter) error {
	wc := ctx.Write

	if wc.Start > 0 {
		if err := emitObject(ctx, cw, wc.Start); err != nil {
			return err
		}
	}
	if err := EmitObjectRange(ctx, cw, wc.Start+1, ctx.Size()); err != nil {
		return err
	}
	return EmitObjectRange(ctx, cw, 1, wc.Start)
}

func emitObject(ctx *model.Context, cw *countingWriter, num int) error {
	entry, ok := ctx.Table[num]
	if !ok || entry == nil || entry.Free {
		return nil
	}

	gen := 0
	if entry.Generation != nil {
		gen = *entry.Generation
	}
	ctx.Write.Gen[num] = gen

	obj := entry.Object
	if obj == nil {
		return writeNullObject(ctx, cw, num, gen)
	}

	if typeIs(dictOf(obj), "ObjStm") || typeIs(dictOf(obj), "XRef") {
		ctx.Write.Use[num] = 0
		return nil
	}

	ctx.Write.Ofs[num] = cw.Offset()

	sd, isStream := obj.(types.StreamDict)
	if !isStream {
		if _, err := fmt.Fprintf(cw, "%d %d obj\n", num, gen); err != nil {
			return errIO(err, "emitObject %d", num)
		}
		if _, err := io.WriteString(cw, obj.PDFString()); err != nil {
			return errIO(err, "emitObject %d", num)
		}
		_, err := io.WriteString(cw, "\nendobj\n\n")
		return errIO(err, "emitObject %d", num)
	}

	// The hint stream is MuPDF's own construction, stored uncompressed
	// (spec §4.8); everything else follows the configured Deflate policy.
	allowDeflate := ctx.Write.Use[num]&model.UseHints == 0
	return emitStream(ctx, cw, num, gen, sd, allowDeflate)
}

func writeNullObject(ctx *model.Context, cw *countingWriter, num, gen int) error {
	ctx.Write.Ofs[num] = cw.Offset()
	ctx.Write.Errors++
	_, err := fmt.Fprintf(cw, "%d %d obj\nnull\nendobj\n\n", num, gen)
	return errIO(err, "writeNullObject %d", num)
}

// emitStream implements spec §4.6's copy/expand choice: "expand" decodes
// sd back to raw content (dropping its existing filter pipeline) before
// the Deflate/ASCIIHex steps below reapply whatever the configuration
// calls for; "copy" leaves an already-filtered stream's bytes untouched
// unless it has no filter at all, in which case Deflate still applies.
// allowDeflate is false for the two streams the writer builds itself (the
// xref stream and the primary hint stream): MuPDF stores both of those
// uncompressed, so they skip the Deflate step but still pick up ASCIIHex
// like any other stream (spec §4.7/§4.8).
func emitStream(ctx *model.Context, cw *countingWriter, num, gen int, sd types.StreamDict, allowDeflate bool) error {
	raw := sd.Raw
	dict := sd.Dict.Clone().(types.Dict)

	expand := allowDeflate && shouldExpand(ctx, sd)
	if expand {
		if err := sd.Decode(); err != nil {
			if !ctx.ContinueOnError {
				return errCorrupt("emitStream %d: decode: %v", num, err)
			}
			ctx.Write.Errors++
		} else {
			raw = sd.Content
			dict.Delete("Filter")
			dict.Delete("DecodeParms")
		}
	}

	if ctx.Deflate && allowDeflate {
		if _, present := dict["Filter"]; !present {
			fl, _ := filter.NewFilter(filter.Flate, nil)
			r, err := fl.Encode(bytes.NewReader(raw))
			if err != nil {
				return errIO(err, "emitStream %d: deflate", num)
			}
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, r); err != nil {
				return errIO(err, "emitStream %d: deflate", num)
			}
			raw = buf.Bytes()
			dict["Filter"] = types.Name(filter.Flate)
		}
	}

	if ctx.ASCIIHex && isBinary(raw) {
		hx, _ := filter.NewFilter(filter.ASCIIHex, nil)
		r, err := hx.Encode(bytes.NewReader(raw))
		if err != nil {
			return errIO(err, "emitStream %d: asciihex", num)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			return errIO(err, "emitStream %d: asciihex", num)
		}
		raw = buf.Bytes()

		// ASCIIHexDecode must be the first filter applied on decode, so it
		// goes in front of whatever filter chain already produced raw
		// (spec §4.6): the array reads [/ASCIIHexDecode /FlateDecode ...],
		// not the other way around.
		priorFilter := dict["Filter"]
		dict["Filter"] = prependFilterName(priorFilter, filter.ASCIIHex)
		if _, isArray := dict["Filter"].(types.Array); isArray {
			if parms, ok := dict["DecodeParms"]; ok && parms != nil {
				dict["DecodeParms"] = prependDecodeParms(parms)
			}
		}
	}

	dict["Length"] = types.Integer(len(raw))

	if _, err := fmt.Fprintf(cw, "%d %d obj\n", num, gen); err != nil {
		return errIO(err, "emitStream %d", num)
	}
	if _, err := io.WriteString(cw, dict.PDFString()); err != nil {
		return errIO(err, "emitStream %d", num)
	}
	if _, err := io.WriteString(cw, "\nstream\n"); err != nil {
		return errIO(err, "emitStream %d", num)
	}
	if len(raw) > 0 {
		if _, err := cw.Write(raw); err != nil {
			return errIO(err, "emitStream %d", num)
		}
	}
	_, err := io.WriteString(cw, "\nendstream\nendobj\n\n")
	return errIO(err, "emitStream %d", num)
}

// shouldExpand applies spec §4.6's per-class expand policy: ExpandAll
// expands everything; ExpandImages/ExpandFonts expand only streams of
// that class (by /Subtype or by the presence of font-metrics keys);
// ExpandOff never expands.
func shouldExpand(ctx *model.Context, sd types.StreamDict) bool {
	switch ctx.Expand {
	case model.ExpandAll:
		return true
	case model.ExpandImages:
		return subtypeIs(sd.Dict, "Image")
	case model.ExpandFonts:
		return subtypeIs(sd.Dict, "Type1C") || subtypeIs(sd.Dict, "CIDFontType0C") ||
			typeIs(sd.Dict, "Font") || typeIs(sd.Dict, "FontDescriptor") ||
			sd.Dict["Length1"] != nil || sd.Dict["Length2"] != nil || sd.Dict["Length3"] != nil
	default:
		return false
	}
}

func subtypeIs(d types.Dict, name string) bool {
	n, ok := d["Subtype"].(types.Name)
	return ok && string(n) == name
}

func typeIs(d types.Dict, name string) bool {
	if d == nil {
		return false
	}
	n, ok := d["Type"].(types.Name)
	return ok && string(n) == name
}

// dictOf returns the dictionary view of obj, whether it is a bare Dict or
// a stream's Dict, nil otherwise.
func dictOf(obj types.Object) types.Dict {
	switch t := obj.(type) {
	case types.Dict:
		return t
	case types.StreamDict:
		return t.Dict
	}
	return nil
}

// isBinary reports whether b contains a byte outside the printable ASCII
// + common whitespace range, the same heuristic spec §4.6 names for
// deciding whether ASCIIHex encoding is worth applying.
func isBinary(b []byte) bool {
	for _, c := range b {
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c < 0x7f) {
			continue
		}
		return true
	}
	return false
}

// prependFilterName puts name in front of the existing /Filter value,
// forming (or extending) the array a reader applies front-to-back on
// decode: the newest filter added here ran last on encode, so it must
// run first on decode.
func prependFilterName(existing types.Object, name string) types.Object {
	switch t := existing.(type) {
	case nil:
		return types.Name(name)
	case types.Name:
		return types.NewNameArray(name, string(t))
	case types.Array:
		return append(types.Array{types.Name(name)}, t...)
	default:
		return types.Name(name)
	}
}

// prependDecodeParms keeps /DecodeParms aligned with a /Filter array that
// just gained a new first entry with no parameters of its own (spec
// §4.6): a null placeholder takes that slot so the two arrays stay the
// same length and index-paired.
func prependDecodeParms(existing types.Object) types.Object {
	if arr, ok := existing.(types.Array); ok {
		return append(types.Array{nil}, arr...)
	}
	return types.Array{nil, existing}
}
