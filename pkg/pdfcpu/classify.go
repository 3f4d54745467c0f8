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

// classifier carries the transient in-progress guard the catalog walk
// needs to terminate on Page<->Parent and annotation cycles, plus the
// running page counter. The guard is cleared as each object's own
// recursion finishes (not kept permanently), so an object reached twice
// from two different pages is walked twice, which is how the second
// visit discovers it must be flagged UseShared (spec §4.4).
type classifier struct {
	ctx        *model.Context
	inProgress map[int]bool
	pageNum    int
}

// Classify implements spec §4.4: walk the catalog from ctx.Trailer.Root
// (and whatever else the trailer carries) assigning every reachable
// object exactly one base section flag plus, for page-tree descendants,
// the owning page index packed into the use word's high bits. Must run
// on a freshly reset *model.WriteContext (ctx.ResetWriteContext) sized to
// the current, already-compacted object numbering: Classify assumes
// every object number in [1, ctx.Size()) it encounters is live.
func Classify(ctx *model.Context) error {
	if ctx.Trailer.Root == nil {
		return errCorrupt("Classify: missing /Root")
	}
	c := &classifier{ctx: ctx, inProgress: map[int]bool{}}
	if err := c.markTrailer(); err != nil {
		return err
	}
	log.Stats.Printf("Classify: %d pages classified\n", c.pageNum)
	return nil
}

func (c *classifier) markTrailer() error {
	if ir := c.ctx.Trailer.Root; ir != nil {
		if err := c.markRoot(*ir); err != nil {
			return err
		}
	}
	if ir := c.ctx.Trailer.Info; ir != nil {
		if err := c.markAll(*ir, model.UseCatalogue, -1); err != nil {
			return err
		}
	}
	return nil
}

func (c *classifier) markRoot(ref types.IndirectRef) error {
	num := int(ref.ObjectNumber)
	if c.inProgress[num] {
		return nil
	}
	d, err := c.ctx.DereferenceDict(ref)
	if err != nil {
		return retryableOrNil(err)
	}
	if d == nil {
		return nil
	}
	c.inProgress[num] = true
	defer delete(c.inProgress, num)

	setUse(c.ctx, num, model.UseCatalogue)

	for _, key := range d.Keys() {
		v := d[key]
		switch key {
		case "Pages":
			n, err := c.markPages(v, 0)
			if err != nil {
				return err
			}
			c.pageNum = n
		case "Names", "Dests":
			if err := c.markAll(v, model.UseOther, -1); err != nil {
				return err
			}
		case "Outlines":
			section := uint32(model.UseOther)
			if mode, ok := d["PageMode"].(types.Name); ok && string(mode) == "UseOutlines" {
				section = model.UsePage1
			}
			if err := c.markAll(v, section, -1); err != nil {
				return err
			}
		default:
			if err := c.markAll(v, model.UseCatalogue, -1); err != nil {
				return err
			}
		}
	}
	return nil
}

// markPages recurses the /Pages tree, numbering leaf Page objects
// depth-first starting at pagenum and returning the count consumed.
// A page is classified UsePage1 (page 0) or its own page-index section
// (page 1..n); the page dict itself additionally gets UsePageObject.
// Non-leaf intermediate nodes (and any sibling keys beside Kids) are
// UseCatalogue.
func (c *classifier) markPages(v types.Object, pagenum int) (int, error) {
	if v == nil {
		return pagenum, nil
	}
	ir, isRef := v.(types.IndirectRef)
	var num int
	if isRef {
		num = int(ir.ObjectNumber)
		if c.inProgress[num] {
			return pagenum, nil
		}
	}

	resolved, err := c.ctx.Dereference(v)
	if err != nil {
		return pagenum, retryableOrNil(err)
	}

	switch t := resolved.(type) {
	case types.Dict:
		if isRef {
			c.inProgress[num] = true
		}
		typ, _ := t["Type"].(types.Name)
		if string(typ) == "Page" {
			if isRef {
				delete(c.inProgress, num) // allow markAll to re-enter this object
			}
			flag := model.UsePage1
			if pagenum != 0 {
				flag = model.WithPageIndex(0, pagenum)
			}
			if err := c.markAll(v, flag, pagenum); err != nil {
				return pagenum, err
			}
			ensurePage(c.ctx, pagenum).PageObjectNumber = num
			pagenum++
			if num > 0 {
				c.ctx.Write.Use[num] |= model.UsePageObject
			}
		} else {
			for _, key := range t.Keys() {
				kv := t[key]
				if key == "Kids" {
					pagenum, err = c.markPages(kv, pagenum)
					if err != nil {
						return pagenum, err
					}
				} else if err := c.markAll(kv, model.UseCatalogue, -1); err != nil {
					return pagenum, err
				}
			}
			if isRef {
				setUse(c.ctx, num, model.UseCatalogue)
			}
		}
		if isRef {
			delete(c.inProgress, num)
		}

	case types.Array:
		if isRef {
			c.inProgress[num] = true
		}
		for _, e := range t {
			pagenum, err = c.markPages(e, pagenum)
			if err != nil {
				return pagenum, err
			}
		}
		if isRef {
			setUse(c.ctx, num, model.UseCatalogue)
			delete(c.inProgress, num)
		}
	}
	return pagenum, nil
}

// markAll marks val (and its indirect target, if any) with flag, ORing
// in UseShared instead whenever the object already carries a page-mask
// bit from a previous, different call (spec §4.4's "first writer wins,
// second becomes shared"). When page >= 0 the object number is appended
// to that page's object list.
func (c *classifier) markAll(val types.Object, flag uint32, page int) error {
	if val == nil {
		return nil
	}

	if ir, ok := val.(types.IndirectRef); ok {
		num := int(ir.ObjectNumber)
		if num <= 0 || num >= c.ctx.Size() {
			return nil
		}
		if c.inProgress[num] {
			return nil
		}
		c.inProgress[num] = true
		defer delete(c.inProgress, num)

		// A nonzero page index means some earlier page already claimed
		// this object, so a second claim from a different call just adds
		// UseShared. An object flagged UsePage1 that a later page reaches
		// also gets UseShared; it still sorts into the page-1 section,
		// since the layout order puts page 1 ahead of shared objects.
		cur := c.ctx.Write.Use[num]
		if model.PageIndexOf(cur) != 0 || (cur&model.UsePage1 != 0 && page > 0) {
			c.ctx.Write.Use[num] = cur | model.UseShared
		} else {
			c.ctx.Write.Use[num] |= flag
		}
		if page >= 0 {
			p := ensurePage(c.ctx, page)
			p.Objects = append(p.Objects, num)
		}

		resolved, err := c.ctx.Dereference(ir)
		if err != nil {
			return retryableOrNil(err)
		}
		return c.markAllValue(resolved, flag, page)
	}

	return c.markAllValue(val, flag, page)
}

func (c *classifier) markAllValue(val types.Object, flag uint32, page int) error {
	switch t := val.(type) {
	case types.Dict:
		for _, k := range t.Keys() {
			if err := c.markAll(t[k], flag, page); err != nil {
				return err
			}
		}
	case types.StreamDict:
		for _, k := range t.Dict.Keys() {
			if err := c.markAll(t.Dict[k], flag, page); err != nil {
				return err
			}
		}
	case types.Array:
		for _, e := range t {
			if err := c.markAll(e, flag, page); err != nil {
				return err
			}
		}
	}
	return nil
}

func retryableOrNil(err error) error {
	if model.IsRetryable(err) {
		return err
	}
	return nil
}

func setUse(ctx *model.Context, num int, flag uint32) {
	if num <= 0 || num >= ctx.Size() {
		return
	}
	ctx.Write.Use[num] = flag
}

func ensurePage(ctx *model.Context, idx int) *model.PageInfo {
	for len(ctx.Write.Pages) <= idx {
		ctx.Write.Pages = append(ctx.Write.Pages, &model.PageInfo{})
	}
	return ctx.Write.Pages[idx]
}
