package pdfcpu

import (
	"sort"
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestOrderGESectionPriority(t *testing.T) {
	// Front-to-back comparator order, per section: hints, page1, catalogue,
	// params, other, shared, then plain pages by descending index.
	require.True(t, orderGE(model.UseHints, model.UsePage1))
	require.True(t, orderGE(model.UsePage1, model.UseCatalogue))
	require.True(t, orderGE(model.UseCatalogue, model.UseParams))
	require.True(t, orderGE(model.UseParams, model.UseOther))
	require.True(t, orderGE(model.UseOther, model.UseShared))
	require.False(t, orderGE(model.UseShared, model.UseHints))
}

func TestOrderGEZeroUse(t *testing.T) {
	require.True(t, orderGE(0, model.UseOther))
	require.False(t, orderGE(model.UseOther, 0))
}

func TestOrderGEPlainPagesByDescendingIndex(t *testing.T) {
	p3 := model.WithPageIndex(0, 3)
	p5 := model.WithPageIndex(0, 5)
	require.True(t, orderGE(p5, p3), "a later page sorts ahead of an earlier one in this comparator")
	require.False(t, orderGE(p3, p5))
}

func TestHeapSortMatchesStdlibAscending(t *testing.T) {
	use := []uint32{0, 5, 1, 9, 3, 7, 2, 8, 6, 4}
	list := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	heapSort(list, use, func(a, b uint32) bool { return a >= b })

	want := append([]int(nil), list...)
	sort.Slice(want, func(i, j int) bool { return use[want[i]] < use[want[j]] })
	require.Equal(t, want, list)
}

func TestHeapSortIntsAscending(t *testing.T) {
	list := []int{5, 3, 9, 1, 4, 1, 8}
	heapSortInts(list)
	require.True(t, sort.IntsAreSorted(list))
}

func TestAddLinearizationObjectsNoHeadroom(t *testing.T) {
	entries := onePageDocEntries()
	ctx := buildDoc(entries, 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	// NewWriteContext(ctx.Size()-2) has ctx.Size()+1 slots: room for the
	// params object but not for the hint stream after it.
	ctx.Write = model.NewWriteContext(ctx.Size() - 2)

	_, _, err := AddLinearizationObjects(ctx)
	require.Error(t, err)
}

func TestLinearizeRoundTrip(t *testing.T) {
	ctx := buildDoc(twoPageDocEntries(), 1, 0)
	require.NoError(t, MarkAndSweep(ctx))
	require.NoError(t, CompactAndRenumber(ctx))
	ctx.ResetWriteContext()
	require.NoError(t, Classify(ctx))

	paramsNum, hintNum, err := Linearize(ctx)
	require.NoError(t, err)
	require.NotZero(t, paramsNum)
	require.NotZero(t, hintNum)
	require.NotEqual(t, paramsNum, hintNum)

	// The params object's use word follows it to its new id and still
	// carries UseParams; Start lies inside the table.
	require.Equal(t, model.UseParams, model.Flags(ctx.Write.Use[paramsNum])&model.UseParams)
	require.Less(t, ctx.Write.Start, ctx.Size())

	for _, p := range ctx.Write.Pages {
		require.True(t, sort.IntsAreSorted(p.Objects), "page object lists are sorted post-rewrite")
	}
}
