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

import "github.com/gridref/pdfwriter/pkg/model"

// bitWriter packs unsigned values MSB-first into a byte slice, the
// layout Table F.3-F.6's page-offset and shared-object hint tables use
// (spec §4.8).
type bitWriter struct {
	buf    []byte
	bitPos int // bits already used in the last byte; 0 means "start fresh"
}

// WriteBits appends the low n bits of v, most significant first.
func (bw *bitWriter) WriteBits(v int64, n int) {
	for i := n - 1; i >= 0; i-- {
		if bw.bitPos == 0 {
			bw.buf = append(bw.buf, 0)
		}
		if v&(1<<uint(i)) != 0 {
			bw.buf[len(bw.buf)-1] |= 1 << uint(7-bw.bitPos)
		}
		bw.bitPos = (bw.bitPos + 1) % 8
	}
}

// Pad advances to the next byte boundary, a no-op if already aligned.
func (bw *bitWriter) Pad() { bw.bitPos = 0 }

// log2Ceil implements spec §4.8's my_log2: the number of bits needed to
// hold values in [0, x], i.e. the smallest i with (1<<i) > x. Zero (and
// negative x, which the header deltas can never legitimately produce but
// the source still guards) both need zero bits.
func log2Ceil(x int) int {
	if x <= 0 {
		return 0
	}
	i := 0
	for (1<<uint(i)) <= x && (1<<uint(i)) > 0 {
		i++
	}
	if (1 << uint(i)) <= 0 {
		return 0
	}
	return i
}

// classifyPageBucket mirrors make_page_offset_hints' inline page
// assignment: -1 for shared, catalogue/hints/params or unused objects,
// else the owning page index extracted from the use word's high bits
// (0 for page 1, and also for any other object with no page-index bits,
// such as a UseOther object).
func classifyPageBucket(use uint32) int {
	switch {
	case use&model.UseShared != 0:
		return -1
	case use&(model.UseCatalogue|model.UseHints|model.UseParams) != 0:
		return -1
	case use&model.UsePage1 != 0:
		return 0
	case use == 0:
		return -1
	default:
		return model.PageIndexOf(use)
	}
}

// objectSpan returns the [min, max) byte range object i occupies in the
// output file: its own recorded offset through the start of whatever
// object immediately follows it in write order, wrapping at the
// linearized boundary the same way EmitObjects' write order does.
func objectSpan(wc *model.WriteContext, i, xrefLen int) (min, max int64) {
	min = wc.Ofs[i]
	switch {
	case i == wc.Start-1 || (wc.Start == 1 && i == xrefLen-1):
		max = wc.MainXrefOffset
	case i == xrefLen-1:
		max = wc.Ofs[1]
	default:
		max = wc.Ofs[i+1]
	}
	return min, max
}

// BuildHintStream implements spec §4.8: the page-offset hint table
// (Table F.3/F.4) followed by the shared-object hint table (Table
// F.5/F.6), bit-packed per the widths each table's own header computes.
// Must run after pass 0 of the emitter has populated wc.Ofs and after
// wc.MainXrefOffset is known. Returns the assembled stream bytes and the
// byte offset within them the shared-object table begins at (the value
// patched into the hint stream dict's /S entry).
func BuildHintStream(ctx *model.Context) ([]byte, int, error) {
	wc := ctx.Write
	xrefLen := ctx.Size()
	pages := wc.Pages
	if len(pages) == 0 {
		return nil, 0, errCorrupt("BuildHintStream: no pages classified")
	}

	for _, p := range pages {
		p.NumObjects, p.MinOffset, p.MaxOffset = 0, 0, 0
	}

	minSharedObject, maxSharedObject := xrefLen, 1
	minSharedLength, maxSharedLength := 0, 0
	sharedLenInit := false

	for i := 1; i < xrefLen; i++ {
		min, max := objectSpan(wc, i, xrefLen)
		use := wc.Use[i]
		page := classifyPageBucket(use)

		if use&model.UseShared != 0 {
			if i < minSharedObject {
				minSharedObject = i
			}
			if i > maxSharedObject {
				maxSharedObject = i
			}
			span := int(max - min)
			if !sharedLenInit || span < minSharedLength {
				minSharedLength = span
			}
			if !sharedLenInit || span > maxSharedLength {
				maxSharedLength = span
			}
			sharedLenInit = true
		} else if use&model.UsePage1 != 0 {
			span := int(max - min)
			if !sharedLenInit || span < minSharedLength {
				minSharedLength = span
			}
			if !sharedLenInit || span > maxSharedLength {
				maxSharedLength = span
			}
			sharedLenInit = true
		}

		if page >= 0 && page < len(pages) {
			p := pages[page]
			p.NumObjects++
			if p.NumObjects == 1 {
				p.MinOffset, p.MaxOffset = min, max
			}
			if min < p.MinOffset {
				p.MinOffset = min
			}
			if max > p.MaxOffset {
				p.MaxOffset = max
			}
		}
	}

	minObjsPerPage, maxObjsPerPage := pages[0].NumObjects, pages[0].NumObjects
	minPageLength := int(pages[0].MaxOffset - pages[0].MinOffset)
	maxPageLength := minPageLength
	for i := 1; i < len(pages); i++ {
		if pages[i].NumObjects < minObjsPerPage {
			minObjsPerPage = pages[i].NumObjects
		}
		if pages[i].NumObjects > maxObjsPerPage {
			maxObjsPerPage = pages[i].NumObjects
		}
		l := int(pages[i].MaxOffset - pages[i].MinOffset)
		if l < minPageLength {
			minPageLength = l
		}
		if l > maxPageLength {
			maxPageLength = l
		}
	}

	maxSharedObjectRefs := 0
	for i, p := range pages {
		count := 0
		for _, o := range p.Objects {
			if i == 0 && wc.Use[o]&model.UsePage1 != 0 {
				count++
			} else if i != 0 && wc.Use[o]&model.UseShared != 0 {
				count++
			}
		}
		p.NumShared = count
		if i == 0 || count > maxSharedObjectRefs {
			maxSharedObjectRefs = count
		}
	}
	if minSharedObject > maxSharedObject {
		minSharedObject, maxSharedObject = 0, 0
	}

	bw := &bitWriter{}

	// Table F.3: page offset hint table header.
	bw.WriteBits(int64(minObjsPerPage), 32)
	bw.WriteBits(wc.Ofs[pages[0].PageObjectNumber], 32)
	objsPerPageBits := log2Ceil(maxObjsPerPage - minObjsPerPage)
	bw.WriteBits(int64(objsPerPageBits), 16)
	bw.WriteBits(int64(minPageLength), 32)
	pageLenBits := log2Ceil(maxPageLength - minPageLength)
	bw.WriteBits(int64(pageLenBits), 16)
	bw.WriteBits(0, 32) // least content-stream offset, always 0
	bw.WriteBits(0, 16)
	bw.WriteBits(0, 32) // least content-stream length, always 0
	bw.WriteBits(int64(pageLenBits), 16)
	sharedObjectBits := log2Ceil(maxSharedObjectRefs)
	bw.WriteBits(int64(sharedObjectBits), 16)
	sharedObjectIDBits := log2Ceil(maxSharedObject - minSharedObject + pages[0].NumShared)
	bw.WriteBits(int64(sharedObjectIDBits), 16)
	bw.WriteBits(0, 16) // fraction numerator bits, always 0
	bw.WriteBits(0, 16) // fraction denominator bits, always 0

	// Table F.4: per-page entries.
	for _, p := range pages {
		bw.WriteBits(int64(p.NumObjects-minObjsPerPage), objsPerPageBits)
	}
	bw.Pad()
	for _, p := range pages {
		bw.WriteBits(int64(int(p.MaxOffset-p.MinOffset)-minPageLength), pageLenBits)
	}
	bw.Pad()
	for _, p := range pages {
		bw.WriteBits(int64(p.NumShared), sharedObjectBits)
	}
	bw.Pad()
	for i, p := range pages {
		for _, o := range p.Objects {
			if i == 0 && wc.Use[o]&model.UsePage1 != 0 {
				bw.WriteBits(0, sharedObjectIDBits)
			}
			if i != 0 && wc.Use[o]&model.UseShared != 0 {
				bw.WriteBits(int64(o-minSharedObject+pages[0].NumShared), sharedObjectIDBits)
			}
		}
	}
	bw.Pad()
	// Items 5 and 6 (fraction numerators, content offset deltas) have
	// zero-width fields per the header above, so nothing is written for
	// them. Item 7 (content length delta) uses the page-length width and
	// repeats item 2's page-length delta.
	for _, p := range pages {
		bw.WriteBits(int64(int(p.MaxOffset-p.MinOffset)-minPageLength), pageLenBits)
	}
	bw.Pad()

	sharedOffset := len(bw.buf)

	// Table F.5: shared-object hint table header.
	bw.WriteBits(int64(minSharedObject), 32)
	var ofsOfMinShared int64
	if minSharedObject > 0 && minSharedObject < len(wc.Ofs) {
		ofsOfMinShared = wc.Ofs[minSharedObject]
	}
	bw.WriteBits(ofsOfMinShared, 32)
	bw.WriteBits(int64(pages[0].NumShared), 32)
	bw.WriteBits(int64(maxSharedObject-minSharedObject+pages[0].NumShared), 32)
	bw.WriteBits(0, 16) // bits for objects-per-shared-group, always 0
	bw.WriteBits(int64(minSharedLength), 32)
	sharedLengthBits := log2Ceil(maxSharedLength - minSharedLength)
	bw.WriteBits(int64(sharedLengthBits), 16)

	// Table F.6: shared object group lengths, page 1's own objects first...
	for _, o := range pages[0].Objects {
		if wc.Use[o]&model.UsePage1 == 0 {
			continue
		}
		min, max := objectSpan(wc, o, xrefLen)
		bw.WriteBits(int64(int(max-min)-minSharedLength), sharedLengthBits)
	}
	// ...then every object in the shared range.
	for i := minSharedObject; i <= maxSharedObject; i++ {
		min, max := objectSpan(wc, i, xrefLen)
		bw.WriteBits(int64(int(max-min)-minSharedLength), sharedLengthBits)
	}
	bw.Pad()

	// MD5-presence flags: always absent (one zero bit per shared entry).
	for n := maxSharedObject - minSharedObject + pages[0].NumShared; n > 0; n-- {
		bw.WriteBits(0, 1)
	}
	bw.Pad()

	return bw.buf, sharedOffset, nil
}
