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

// Use-flag bits set on WriteContext.Use[i] (spec §3). The low byte is the
// bitfield; bits >= 8 carry the page index when a PAGE1/page bit is set.
const (
	// UseReachable is set by mark/sweep (spec §4.1) on every object
	// transitively reachable from the trailer, before the page classifier
	// (§4.4) overwrites the rest of the bitfield with section flags. It
	// also doubles as the cycle-detection "in progress/visited" marker
	// during the sweep's DFS.
	UseReachable uint32 = 1 << 0 // 1

	UseCatalogue  uint32 = 1 << 1 // 2
	UsePage1      uint32 = 1 << 2 // 4
	UseShared     uint32 = 1 << 3 // 8
	UseParams     uint32 = 1 << 4 // 16
	UseHints      uint32 = 1 << 5 // 32
	UsePageObject uint32 = 1 << 6 // 64
	UseOther      uint32 = 1 << 7 // 128

	usePageIndexShift = 8
	useFlagMask       = 0xFF
)

// PageIndexOf extracts the page_index bitfield (bits >= 8) from a use word.
func PageIndexOf(use uint32) int { return int(use >> usePageIndexShift) }

// WithPageIndex returns use with its page_index bitfield set to idx,
// flag bits unchanged.
func WithPageIndex(use uint32, idx int) uint32 {
	return (use & useFlagMask) | (uint32(idx) << usePageIndexShift)
}

// Flags returns just the low-byte bitfield of use.
func Flags(use uint32) uint32 { return use & useFlagMask }

// PageInfo records the per-page bookkeeping spec §3 names: the live
// object ids referenced by page p (max-heap during collection, sorted
// and deduped once collection completes) plus the summary counters the
// hint stream builder needs.
type PageInfo struct {
	Objects         []int // heap during construction; sorted ascending+deduped after Linearize
	NumObjects      int
	NumShared       int
	MinOffset       int64
	MaxOffset       int64
	PageObjectNumber int
}

// WriteContext is the ephemeral per-save write state of spec §3. All
// slices are indexed by object number and sized Size+3 so 1-past-the-end
// bookkeeping (e.g. a synthetic hint-stream id) never needs a bounds
// check. It is created fresh at Save entry and discarded at exit,
// success or failure.
type WriteContext struct {
	// Use[i] is the use-flag bitfield + page index described above.
	// Zero means object i is unreferenced.
	Use []uint32

	// Ofs[i] is object i's final file offset, filled in by the emitter.
	Ofs []int64

	// Gen[i] / RevGen[i] are the output and pre-renumber generation.
	Gen    []int
	RevGen []int

	// Renumber[i] maps old id i to its new id (dedupe + compact).
	// RevRenumber[i] is the inverse: new id -> old id.
	Renumber    []int
	RevRenumber []int

	// Pages holds per-page object lists, indexed by page number (0-based).
	Pages []*PageInfo

	// Start is the new id marking the section-4..6 / 7..9 boundary
	// computed by the linearization planner (spec §4.5).
	Start int

	// LastFree chains the in-use free list as it is built after pass 0
	// (spec §4.7): Ofs[lastFree] := num; lastFree = num.
	LastFree int

	// MainXrefOffset is the byte offset of the main (non-first-page)
	// xref section, recorded after pass 0.
	MainXrefOffset int64

	// HintStreamOffset/Length locate the primary hint stream once built.
	HintStreamOffset int64
	HintStreamLength int64

	// Errors counts per-object failures swallowed under ContinueOnError.
	Errors int
}

// NewWriteContext allocates write state sized for an object table of
// length size (object numbers in [0, size)), with headroom for up to two
// synthetic ids appended by the linearization planner (hint stream,
// linearization params dict).
func NewWriteContext(size int) *WriteContext {
	n := size + 3
	wc := &WriteContext{
		Use:         make([]uint32, n),
		Ofs:         make([]int64, n),
		Gen:         make([]int, n),
		RevGen:      make([]int, n),
		Renumber:    make([]int, n),
		RevRenumber: make([]int, n),
	}
	for i := range wc.Renumber {
		wc.Renumber[i] = i
		wc.RevRenumber[i] = i
	}
	return wc
}

// Context is the environment a save operation runs in: a read-only
// document model (*XRefTable) plus the active Configuration and the
// ephemeral *WriteContext for the save in progress. Mirrors pdfcpu's
// model.Context, which embeds *Configuration and *XRefTable the same way.
type Context struct {
	*Configuration
	*XRefTable
	Write *WriteContext
}

// NewContext builds a Context around an existing document, allocating a
// fresh WriteContext sized to the document's xref length.
func NewContext(xt *XRefTable, conf *Configuration) *Context {
	if conf == nil {
		conf = NewDefaultConfiguration()
	}
	return &Context{
		Configuration: conf,
		XRefTable:     xt,
		Write:         NewWriteContext(xt.Size()),
	}
}

// ResetWriteContext discards the current write state and allocates a
// fresh one, e.g. between the dedupe pass and the final renumber pass
// (spec §4.5: "a second full renumber pass is then run").
func (ctx *Context) ResetWriteContext() {
	ctx.Write = NewWriteContext(ctx.XRefTable.Size())
}
