package pdfcpu

import (
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestMarkAndSweepReachability(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.Dict{"Unreachable": types.Integer(1)} // never referenced
	ctx := buildDoc(entries, 1, 0)

	require.NoError(t, MarkAndSweep(ctx))

	for num := 1; num <= 5; num++ {
		require.True(t, model.Flags(ctx.Write.Use[num])&model.UseReachable != 0, "object %d should be reachable", num)
	}
	require.Equal(t, uint32(0), model.Flags(ctx.Write.Use[6]))
}

func TestMarkAndSweepMissingRoot(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 0, 0)
	require.Error(t, MarkAndSweep(ctx))
}

func TestMarkAndSweepDuffReferenceNulled(t *testing.T) {
	entries := onePageDocEntries()
	// Page references a wildly out-of-range object.
	page := entries[3].(types.Dict)
	page["Annots"] = *types.NewIndirectRef(999, 0)
	entries[3] = page
	ctx := buildDoc(entries, 1, 0)

	require.NoError(t, MarkAndSweep(ctx))

	resolved, ok := ctx.Table[3].Object.(types.Dict)
	require.True(t, ok)
	require.Nil(t, resolved["Annots"], "an out-of-range reference is nulled rather than left dangling")
}

func TestMarkAndSweepCyclesTerminate(t *testing.T) {
	entries := onePageDocEntries()
	// Page <-> Parent is already a cycle (Page.Parent -> Pages, Pages.Kids -> Page);
	// add an explicit self-reference on top for good measure.
	page := entries[3].(types.Dict)
	page["Self"] = *types.NewIndirectRef(3, 0)
	entries[3] = page
	ctx := buildDoc(entries, 1, 0)

	done := make(chan error, 1)
	go func() { done <- MarkAndSweep(ctx) }()
	require.NoError(t, <-done)
}

func TestMarkAndSweepFollowsObjStmOwner(t *testing.T) {
	entries := onePageDocEntries()
	ctx := buildDoc(entries, 1, 0)

	objStmNum := 6
	ctx.Table[objStmNum] = model.NewXRefTableEntryGen0(types.NewStreamDict(
		types.Dict{"Type": types.Name("ObjStm"), "N": types.Integer(1)}, nil, nil))
	owner := objStmNum
	ctx.Table[5].Compressed = true
	ctx.Table[5].ObjectStream = &owner
	ctx.Trailer.Size = objStmNum + 1
	ctx.Write = model.NewWriteContext(ctx.Size())

	require.NoError(t, MarkAndSweep(ctx))
	require.True(t, model.Flags(ctx.Write.Use[objStmNum])&model.UseReachable != 0,
		"the ObjStm container must be kept reachable alongside its compressed member")
}
