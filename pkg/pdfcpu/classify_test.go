package pdfcpu

import (
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/stretchr/testify/require"
)

// twoPageDocEntries builds a two-page document sharing a single font
// resource (object 7) between both pages, so Classify has something to
// flag UseShared.
func twoPageDocEntries() map[int]types.Object {
	return map[int]types.Object{
		1: types.Dict{"Type": types.Name("Catalog"), "Pages": *types.NewIndirectRef(2, 0)},
		2: types.Dict{
			"Type":  types.Name("Pages"),
			"Kids":  types.Array{*types.NewIndirectRef(3, 0), *types.NewIndirectRef(5, 0)},
			"Count": types.Integer(2),
		},
		3: types.Dict{
			"Type":      types.Name("Page"),
			"Parent":    *types.NewIndirectRef(2, 0),
			"Resources": types.Dict{"Font": types.Dict{"F1": *types.NewIndirectRef(7, 0)}},
			"Contents":  *types.NewIndirectRef(4, 0),
		},
		4: types.NewStreamDict(types.Dict{}, []byte("page one"), nil),
		5: types.Dict{
			"Type":      types.Name("Page"),
			"Parent":    *types.NewIndirectRef(2, 0),
			"Resources": types.Dict{"Font": types.Dict{"F1": *types.NewIndirectRef(7, 0)}},
			"Contents":  *types.NewIndirectRef(6, 0),
		},
		6: types.NewStreamDict(types.Dict{}, []byte("page two"), nil),
		7: types.Dict{"Type": types.Name("Font"), "Subtype": types.Name("Type1"), "BaseFont": types.Name("Helvetica")},
	}
}

func TestClassifyPage1AndSecondPageIndexed(t *testing.T) {
	ctx := buildDoc(twoPageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	ctx.ResetWriteContext()

	require.NoError(t, Classify(ctx))

	require.Len(t, ctx.Write.Pages, 2)
	firstPageNum := ctx.Write.Renumber[3]
	secondPageNum := ctx.Write.Renumber[5]
	require.Equal(t, firstPageNum, ctx.Write.Pages[0].PageObjectNumber)
	require.Equal(t, secondPageNum, ctx.Write.Pages[1].PageObjectNumber)

	require.Equal(t, model.UsePage1, model.Flags(ctx.Write.Use[firstPageNum])&model.UsePage1)
	require.NotZero(t, model.PageIndexOf(ctx.Write.Use[secondPageNum]))
}

func TestClassifySharedObjectFlaggedOnSecondPage(t *testing.T) {
	ctx := buildDoc(twoPageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	ctx.ResetWriteContext()
	require.NoError(t, Classify(ctx))

	fontNum := ctx.Write.Renumber[7]
	require.NotZero(t, model.Flags(ctx.Write.Use[fontNum])&model.UseShared,
		"a font referenced from both pages must be flagged shared")
}

func TestClassifyMissingRoot(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 0, 0)
	require.Error(t, Classify(ctx))
}

func TestClassifyCatalogueNamesAndDests(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.Dict{"Dests": types.Dict{}}
	catalog := entries[1].(types.Dict)
	catalog["Names"] = *types.NewIndirectRef(6, 0)
	entries[1] = catalog
	ctx := buildDoc(entries, 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	ctx.ResetWriteContext()

	require.NoError(t, Classify(ctx))

	namesNum := ctx.Write.Renumber[6]
	require.NotZero(t, namesNum)
	require.NotZero(t, model.Flags(ctx.Write.Use[namesNum])&model.UseOther)
}
