package pdfcpu

import (
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestCompactDropsUnreachableAndPreservesOrder(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.Dict{"Unreachable": types.Integer(1)}
	ctx := buildDoc(entries, 1, 0)
	require.NoError(t, MarkAndSweep(ctx))

	Compact(ctx)

	require.Equal(t, 0, ctx.Write.Renumber[6])
	for i := 1; i <= 5; i++ {
		require.LessOrEqual(t, ctx.Write.Renumber[i], i, "renumber[i] <= i invariant")
		require.NotZero(t, ctx.Write.Renumber[i])
	}
	require.Equal(t, 1, ctx.Write.Renumber[1])
}

func TestCompactFollowsDedupeTarget(t *testing.T) {
	entries := onePageDocEntries()
	ctx := buildDoc(entries, 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	ctx.Write.Renumber[5] = 4 // pretend Dedupe merged object 5 into object 4
	ctx.Write.Use[5] &^= model.UseReachable

	Compact(ctx)

	require.Equal(t, ctx.Write.Renumber[4], ctx.Write.Renumber[5])
}

func TestRewriteReplacesReferencesAndDropsDangling(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.Dict{"Unreachable": types.Integer(1)}
	page := entries[3].(types.Dict)
	page["Annots"] = *types.NewIndirectRef(6, 0)
	entries[3] = page
	ctx := buildDoc(entries, 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	// Page 3's /Annots makes object 6 reachable; clear its use word so
	// Compact drops it while the reference to it remains.
	ctx.Write.Use[6] = 0

	require.NoError(t, CompactAndRenumber(ctx))

	require.Equal(t, 5, ctx.Size()-1, "6 was dropped, leaving 5 live objects")
	newRoot := ctx.Write.Renumber[1]
	catalog := ctx.Table[newRoot].Object.(types.Dict)
	require.Equal(t, *ctx.Trailer.Root, *types.NewIndirectRef(newRoot, 0))

	newPages := ctx.Write.Renumber[2]
	require.Equal(t, *types.NewIndirectRef(newPages, 0), catalog["Pages"])

	newPageNum := ctx.Write.Renumber[3]
	pageDict := ctx.Table[newPageNum].Object.(types.Dict)
	require.Nil(t, pageDict["Annots"], "a reference to a dropped object becomes null")
}
