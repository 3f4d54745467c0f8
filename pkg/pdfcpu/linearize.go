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
	"math"

	"github.com/gridref/pdfwriter/pkg/log"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// AddLinearizationObjects appends the two synthetic objects a linearized
// file needs (spec §4.5): the linearization parameter dictionary (/Linearized
// 1, with /L /H /O /E /N /T placeholders patched once pass 0 has measured
// offsets) and the primary hint stream. Both get appended past the current
// end of the object table, flagged UseParams/UseHints respectively so the
// reorder step places them correctly. Returns their object numbers.
func AddLinearizationObjects(ctx *model.Context) (paramsNum, hintNum int, err error) {
	n := ctx.Size()
	if n+1 >= len(ctx.Write.Use) {
		return 0, 0, errCorrupt("AddLinearizationObjects: write context has no headroom for synthetic objects")
	}

	paramsNum = n
	params := types.NewDict()
	params["Linearized"] = types.Real(1.0)
	params["L"] = types.Integer(math.MinInt32)
	params["H"] = types.NewIntegerArray(math.MinInt32, math.MinInt32)
	params["O"] = types.Integer(math.MinInt32)
	params["E"] = types.Integer(math.MinInt32)
	params["N"] = types.Integer(math.MinInt32)
	params["T"] = types.Integer(math.MinInt32)
	ctx.Table[paramsNum] = model.NewXRefTableEntryGen0(params)
	ctx.Write.Use[paramsNum] = model.UseParams

	hintNum = n + 1
	hint := types.NewDict()
	hint["P"] = types.Integer(0)
	hint["S"] = types.Integer(math.MinInt32)
	ctx.Table[hintNum] = model.NewXRefTableEntryGen0(types.NewStreamDict(hint, nil, nil))
	ctx.Write.Use[hintNum] = model.UseHints

	ctx.Trailer.Size = n + 2
	return paramsNum, hintNum, nil
}

// orderGE implements spec §4.5.1's section ordering: given the use words
// of two objects, reports whether object i may be placed at or before
// object j in linearized layout.
//
// Section order (front to back of the comparator, which is back to front
// of the eventual file): remaining pages, shared objects, unassociated
// objects, other objects, header, linearization params, first-page xref,
// catalogue, first page, primary hint stream, free objects.
func orderGE(ui, uj uint32) bool {
	if (ui^uj)&^model.UsePageObject == 0 {
		return ui&model.UsePageObject == 0
	}
	switch {
	case ui == 0:
		return true
	case uj == 0:
		return false
	case ui&model.UseHints != 0:
		return true
	case uj&model.UseHints != 0:
		return false
	case ui&model.UsePage1 != 0:
		return true
	case uj&model.UsePage1 != 0:
		return false
	case ui&model.UseCatalogue != 0:
		return true
	case uj&model.UseCatalogue != 0:
		return false
	case ui&model.UseParams != 0:
		return true
	case uj&model.UseParams != 0:
		return false
	case ui&model.UseOther != 0:
		return true
	case uj&model.UseOther != 0:
		return false
	case ui&model.UseShared == 0 && model.PageIndexOf(ui) == 0:
		return true
	case uj&model.UseShared == 0 && model.PageIndexOf(uj) == 0:
		return false
	case ui&model.UseShared != 0:
		return true
	case uj&model.UseShared != 0:
		return false
	}
	return model.PageIndexOf(ui) >= model.PageIndexOf(uj)
}

// heapSort sorts list in place, ascending under ge (the entry ge ranks
// greatest ends up last), where ge(a, b) compares val[a] and val[b] (spec §4.5.1: the same two-pass
// heapify-then-extract algorithm is used both to reorder object ids by
// section and, elsewhere, to sort each page's own object list).
func heapSort(list []int, val []uint32, ge func(a, b uint32) bool) {
	n := len(list)
	for i := 1; i < n; i++ {
		j := i
		for j != 0 {
			k := (j - 1) >> 1
			if ge(val[list[k]], val[list[j]]) {
				break
			}
			list[k], list[j] = list[j], list[k]
			j = k
		}
	}
	for i := n - 1; i > 0; i-- {
		list[0], list[i] = list[i], list[0]
		j := 0
		for {
			k := (j+1)*2 - 1
			if k > i-1 {
				break
			}
			if k < i-1 && ge(val[list[k+1]], val[list[k]]) {
				k++
			}
			if ge(val[list[j]], val[list[k]]) {
				break
			}
			list[j], list[k] = list[k], list[j]
			j = k
		}
	}
}

// heapSortInts sorts a page's own object list ascending (spec §4.5.2's
// page_objects_sort): the same two-phase heapify-then-extract shape as
// heapSort, but comparing list entries directly rather than through a
// use-word lookup.
func heapSortInts(list []int) {
	n := len(list)
	for i := 1; i < n; i++ {
		j := i
		for j != 0 {
			k := (j - 1) >> 1
			if list[k] >= list[j] {
				break
			}
			list[k], list[j] = list[j], list[k]
			j = k
		}
	}
	for i := n - 1; i > 0; i-- {
		list[0], list[i] = list[i], list[0]
		j := 0
		for {
			k := (j+1)*2 - 1
			if k > i-1 {
				break
			}
			if k < i-1 && list[k] < list[k+1] {
				k++
			}
			if list[j] > list[k] {
				break
			}
			list[j], list[k] = list[k], list[j]
			j = k
		}
	}
}

// Linearize implements spec §4.5: add the synthetic params/hint objects,
// globally reorder every object by section via orderGE, locate the
// section-7/section-4 boundary (Start), remap every PageInfo's recorded
// object list through the new numbering, and run the Rewrite sub-phase a
// second time so the whole object graph is consistent with the planned
// ids. Must run after Classify has populated ctx.Write.Use and
// ctx.Write.Pages.
func Linearize(ctx *model.Context) (paramsNum, hintNum int, err error) {
	paramsNum, hintNum, err = AddLinearizationObjects(ctx)
	if err != nil {
		return 0, 0, err
	}

	n := ctx.Size()
	wc := ctx.Write

	reorder := make([]int, n)
	for i := range reorder {
		reorder[i] = i
	}
	heapSort(reorder[1:], wc.Use, orderGE)

	start := 1
	for start < n && wc.Use[reorder[start]]&model.UseParams == 0 {
		start++
	}
	wc.Start = start

	for i, old := range reorder {
		wc.Renumber[old] = i
	}

	for _, p := range wc.Pages {
		if p == nil {
			continue
		}
		for i, old := range p.Objects {
			p.Objects[i] = wc.Renumber[old]
		}
		p.PageObjectNumber = wc.Renumber[p.PageObjectNumber]
	}

	newParamsNum, newHintNum := wc.Renumber[paramsNum], wc.Renumber[hintNum]

	if err := Rewrite(ctx); err != nil {
		return 0, 0, err
	}

	for _, p := range wc.Pages {
		if p == nil || len(p.Objects) == 0 {
			continue
		}
		heapSortInts(p.Objects)
		p.Objects = dedupeSortedInts(p.Objects)
		p.NumObjects = len(p.Objects)
	}

	log.Stats.Printf("Linearize: start=%d params=%d->%d hint=%d->%d\n",
		wc.Start, paramsNum, newParamsNum, hintNum, newHintNum)
	return newParamsNum, newHintNum, nil
}

// dedupeSortedInts collapses adjacent duplicates in an ascending list,
// once heapSortInts has put a page's object list in object-number order
// (spec §4.5.2).
func dedupeSortedInts(s []int) []int {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
