package pdfcpu

import (
	"bytes"
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestSaveFlatProducesWellFormedFile(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf))

	out := buf.String()
	require.Contains(t, out, "%PDF-1.7")
	require.Contains(t, out, "1 0 obj")
	require.Contains(t, out, "xref\n")
	require.Contains(t, out, "trailer\n")
	require.Contains(t, out, "startxref") // written below, via %%EOF trailer convention
}

func TestSaveFlatWithGarbageCollectsUnreachable(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = entries[5] // a second font dict, never referenced by anything
	ctx := buildDoc(entries, 1, 0)
	ctx.Garbage = model.GarbageCompact

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf))
	require.NotContains(t, buf.String(), "6 0 obj")
}

// TestSaveLinearizedPopulatesPagesAndHintStream is the regression test for
// the Classify/ResetWriteContext wiring: before it, ctx.Write.Pages was
// never populated ahead of Linearize, and BuildHintStream would fail with
// "no pages classified" on every linearized save.
func TestSaveLinearizedPopulatesPagesAndHintStream(t *testing.T) {
	ctx := buildDoc(twoPageDocEntries(), 1, 0)
	ctx.Linear = true

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf))

	require.Len(t, ctx.Write.Pages, 2, "Classify must run and populate per-page bookkeeping before Linearize consumes it")
	out := buf.String()
	require.Contains(t, out, "/Linearized 1.0")
	require.Contains(t, out, "/S ") // patched hint-stream /S offset in the params dict... or the hint dict itself
}

func TestSaveLinearizedWritesTwoXRefSections(t *testing.T) {
	ctx := buildDoc(twoPageDocEntries(), 1, 0)
	ctx.Linear = true

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf))

	require.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\nxref\n")), "a linearized save writes a first-page xref and a main xref")
}

func TestSaveRejectsIncrementalWithGarbage(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Incremental = true
	ctx.Garbage = model.GarbageCompact

	var buf bytes.Buffer
	require.Error(t, Save(ctx, &buf))
}

func TestSaveWithXRefStreamOmitsClassicTrailer(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.WriteXRefStream = true

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf))

	require.NotContains(t, buf.String(), "trailer\n")
	require.Contains(t, buf.String(), "/Type /XRef")
}
