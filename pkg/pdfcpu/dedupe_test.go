package pdfcpu

import (
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestDedupeMergesStructurallyEqualDicts(t *testing.T) {
	entries := onePageDocEntries()
	// A second font dict, structurally identical to object 5.
	entries[6] = types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
	}
	page := entries[3].(types.Dict)
	res := page["Resources"].(types.Dict)
	fonts := res["Font"].(types.Dict)
	fonts["F2"] = *types.NewIndirectRef(6, 0)
	ctx := buildDoc(entries, 1, 0)
	require.NoError(t, MarkAndSweep(ctx))

	require.NoError(t, Dedupe(ctx, false))

	require.Equal(t, ctx.Write.Renumber[5], ctx.Write.Renumber[6], "duplicate fonts merge to the lowest id")
	require.Equal(t, uint32(0), model.Flags(ctx.Write.Use[6])&model.UseReachable)
}

func TestDedupeNonStreamNeverEqualsStream(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.NewStreamDict(entries[5].(types.Dict), []byte("x"), nil)
	ctx := buildDoc(entries, 1, 0)
	ctx.Write.Use[5] = model.UseReachable
	ctx.Write.Use[6] = model.UseReachable

	require.NoError(t, Dedupe(ctx, true))
	require.NotEqual(t, ctx.Write.Renumber[5], ctx.Write.Renumber[6])
}

func TestDedupeStreamsRequireAggressive(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.NewStreamDict(types.Dict{}, []byte("BT ET"), nil) // identical to object 4
	ctx := buildDoc(entries, 1, 0)
	ctx.Write.Use[4] = model.UseReachable
	ctx.Write.Use[6] = model.UseReachable

	require.NoError(t, Dedupe(ctx, false))
	require.NotEqual(t, ctx.Write.Renumber[4], ctx.Write.Renumber[6], "non-aggressive dedupe never merges streams")

	ctx2 := buildDoc(entries, 1, 0)
	ctx2.Write.Use[4] = model.UseReachable
	ctx2.Write.Use[6] = model.UseReachable
	require.NoError(t, Dedupe(ctx2, true))
	require.Equal(t, ctx2.Write.Renumber[4], ctx2.Write.Renumber[6])
}

func TestDedupeAtMostOneMatchPerObject(t *testing.T) {
	entries := map[int]types.Object{
		1: types.Dict{"V": types.Integer(1)},
		2: types.Dict{"V": types.Integer(1)},
		3: types.Dict{"V": types.Integer(1)},
	}
	ctx := buildDoc(entries, 0, 0)
	for i := 1; i <= 3; i++ {
		ctx.Write.Use[i] = model.UseReachable
	}

	require.NoError(t, Dedupe(ctx, false))
	require.Equal(t, 1, ctx.Write.Renumber[2])
	require.Equal(t, 1, ctx.Write.Renumber[3])
}
