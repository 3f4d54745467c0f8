package pdfcpu

import (
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// buildDoc wires entries into a fresh XRefTable/Context pair sized for
// the highest object number present, root pointed at rootNum. Shared by
// this package's tests in place of a real parsed document, mirroring
// how the save pipeline only ever needs an already-built object graph
// (there is no parser in this module).
func buildDoc(entries map[int]types.Object, rootNum, infoNum int) *model.Context {
	size := 1
	for num := range entries {
		if num+1 > size {
			size = num + 1
		}
	}
	xt := model.NewXRefTable(size)
	for num, obj := range entries {
		xt.Table[num] = model.NewXRefTableEntryGen0(obj)
	}
	if rootNum > 0 {
		xt.Trailer.Root = types.NewIndirectRef(rootNum, 0)
	}
	if infoNum > 0 {
		xt.Trailer.Info = types.NewIndirectRef(infoNum, 0)
	}
	return model.NewContext(xt, model.NewDefaultConfiguration())
}

// onePageDocEntries returns a minimal catalog/pages/page/content/font
// graph, object numbers fixed at 1-5, ready for buildDoc.
func onePageDocEntries() map[int]types.Object {
	return map[int]types.Object{
		1: types.Dict{ // catalog
			"Type":  types.Name("Catalog"),
			"Pages": *types.NewIndirectRef(2, 0),
		},
		2: types.Dict{ // pages
			"Type":  types.Name("Pages"),
			"Kids":  types.Array{*types.NewIndirectRef(3, 0)},
			"Count": types.Integer(1),
		},
		3: types.Dict{ // page
			"Type":      types.Name("Page"),
			"Parent":    *types.NewIndirectRef(2, 0),
			"Resources": types.Dict{"Font": types.Dict{"F1": *types.NewIndirectRef(5, 0)}},
			"Contents":  *types.NewIndirectRef(4, 0),
		},
		4: types.NewStreamDict(types.Dict{}, []byte("BT ET"), nil), // content
		5: types.Dict{ // font
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name("Helvetica"),
		},
	}
}
