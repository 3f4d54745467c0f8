package pdfcpu

import (
	"bytes"
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestBuildFreeListChainsUnusedObjects(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	// Clear object 4's use word (the content stream) to fabricate an
	// unused slot for the free list to thread.
	ctx.Write.Use[4] = 0

	BuildFreeList(ctx)

	require.Equal(t, int64(4), ctx.Write.Ofs[0], "head of the free list points at the first free object")
	require.Equal(t, int64(0), ctx.Write.Ofs[4], "the last free entry loops back to 0")
	require.Equal(t, 4, ctx.Write.LastFree)
	require.Equal(t, int(types.FreeHeadGeneration), ctx.Write.Gen[0])
}

func TestSubsectionRangesFullSaveIsOneRange(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ranges := subsectionRanges(ctx, 0, ctx.Size())
	require.Equal(t, [][2]int{{0, ctx.Size()}}, ranges)
}

func TestSubsectionRangesIncrementalSplitsOnChangedObjects(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Incremental = true
	// Mark objects 1 and 3 as present in the prior revision (resident
	// offset); 2, 4, 5 are new/changed and have none.
	offset := int64(100)
	ctx.Table[1].Offset = &offset
	ctx.Table[3].Offset = &offset

	ranges := subsectionRanges(ctx, 1, ctx.Size())
	require.Equal(t, [][2]int{{2, 3}, {4, ctx.Size()}}, ranges)
}

func TestWriteXRefTableRoundTripsOffsetAndTrailer(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	for num := 1; num < ctx.Size(); num++ {
		ctx.Write.Use[num] = 1
		ctx.Write.Ofs[num] = int64(num * 10)
	}

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	startOfs, err := WriteXRefTable(ctx, cw, 0, ctx.Size(), true, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), startOfs)

	out := buf.String()
	require.Contains(t, out, "xref\n")
	require.Contains(t, out, "trailer\n")
	require.Contains(t, out, "/Root")
	require.Contains(t, out, "/Size")
}

func TestBuildTrailerDictOmitsRootOnNonFirstSection(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	d := buildTrailerDict(ctx, ctx.Size(), false, 500)
	require.Nil(t, d["Root"])
	require.Equal(t, types.Integer(500), d["Prev"])
}

func TestBuildTrailerDictIncludesRootOnFirstSection(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	d := buildTrailerDict(ctx, ctx.Size(), true, 0)
	require.NotNil(t, d["Root"])
	require.Nil(t, d["Prev"])
}

func TestWriteXRefStreamAssignsTrailingObjectNumber(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	for num := 1; num < ctx.Size(); num++ {
		ctx.Write.Use[num] = 1
	}

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	wantNum := ctx.Size()
	startOfs, num, err := WriteXRefStream(ctx, cw, 0, ctx.Size(), true, 0)
	require.NoError(t, err)
	require.Equal(t, wantNum, num)
	require.Equal(t, int64(0), startOfs)

	sd, ok := ctx.Table[num].Object.(types.StreamDict)
	require.True(t, ok)
	require.Equal(t, types.Name("XRef"), sd.Dict["Type"])
}

func TestWriteXRefStreamNoHeadroom(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	ctx.Write = model.NewWriteContext(ctx.Size() - 2)

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	_, _, err := WriteXRefStream(ctx, cw, 0, ctx.Size(), true, 0)
	require.Error(t, err)
}
