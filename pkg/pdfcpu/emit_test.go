package pdfcpu

import (
	"bytes"
	"testing"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestWriteHeaderSkippedIncremental(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Incremental = true
	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, WriteHeader(ctx, cw))
	require.Equal(t, 0, buf.Len())
}

func TestWriteHeaderEmitsVersionAndBinaryMarker(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, WriteHeader(ctx, cw))
	require.Contains(t, buf.String(), "%PDF-1.7")
	require.Equal(t, int64(buf.Len()), cw.Offset())
}

func TestEmitObjectRangeRecordsOffsets(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, WriteHeader(ctx, cw))
	require.NoError(t, EmitObjectRange(ctx, cw, 1, ctx.Size()))

	for num := 1; num < ctx.Size(); num++ {
		require.NotZero(t, ctx.Write.Ofs[num])
	}
	require.Contains(t, buf.String(), "1 0 obj")
	require.Contains(t, buf.String(), "endobj")
}

func TestEmitObjectSkipsObjStmAndXRef(t *testing.T) {
	entries := onePageDocEntries()
	entries[6] = types.NewStreamDict(types.Dict{"Type": types.Name("ObjStm"), "N": types.Integer(0)}, nil, nil)
	entries[7] = types.NewStreamDict(types.Dict{"Type": types.Name("XRef")}, nil, nil)
	ctx := buildDoc(entries, 1, 0)

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, EmitObjectRange(ctx, cw, 1, ctx.Size()))

	require.NotContains(t, buf.String(), "/Type /ObjStm")
	require.NotContains(t, buf.String(), "/Type /XRef")
	require.Equal(t, uint32(0), ctx.Write.Use[6])
	require.Equal(t, uint32(0), ctx.Write.Use[7])
}

func TestEmitObjectsWraparoundOrder(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Write.Start = 3

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, EmitObjects(ctx, cw))

	require.Less(t, ctx.Write.Ofs[3], ctx.Write.Ofs[4])
	require.Less(t, ctx.Write.Ofs[4], ctx.Write.Ofs[5])
	require.Less(t, ctx.Write.Ofs[5], ctx.Write.Ofs[1])
	require.Less(t, ctx.Write.Ofs[1], ctx.Write.Ofs[2])
}

func TestEmitStreamDeflatesWhenConfigured(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Deflate = true
	sd := types.NewStreamDict(types.Dict{}, []byte("BT ET BT ET BT ET"), nil)

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, emitStream(ctx, cw, 4, 0, sd, true))

	require.Contains(t, buf.String(), "/Filter /FlateDecode")
}

func TestEmitStreamHintSkipsDeflate(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Deflate = true
	sd := types.NewStreamDict(types.Dict{}, []byte("hint bytes"), nil)

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, emitStream(ctx, cw, 4, 0, sd, false))

	require.NotContains(t, buf.String(), "/Filter /FlateDecode")
	require.Contains(t, buf.String(), "hint bytes")
}

func TestShouldExpandPolicies(t *testing.T) {
	imageSD := types.NewStreamDict(types.Dict{"Subtype": types.Name("Image")}, nil, nil)
	fontSD := types.NewStreamDict(types.Dict{"Type": types.Name("Font")}, nil, nil)

	ctx := buildDoc(onePageDocEntries(), 1, 0)

	ctx.Expand = model.ExpandOff
	require.False(t, shouldExpand(ctx, imageSD))

	ctx.Expand = model.ExpandAll
	require.True(t, shouldExpand(ctx, imageSD))

	ctx.Expand = model.ExpandImages
	require.True(t, shouldExpand(ctx, imageSD))
	require.False(t, shouldExpand(ctx, fontSD))

	ctx.Expand = model.ExpandFonts
	require.True(t, shouldExpand(ctx, fontSD))
	require.False(t, shouldExpand(ctx, imageSD))
}

func TestIsBinaryDetectsNonPrintable(t *testing.T) {
	require.False(t, isBinary([]byte("hello\nworld\t")))
	require.True(t, isBinary([]byte{0x00, 0x01, 0xff}))
}

func TestPrependFilterNameBuildsArrayInDecodeOrder(t *testing.T) {
	require.Equal(t, types.Name("A"), prependFilterName(nil, "A"))
	require.Equal(t, types.NewNameArray("B", "A"), prependFilterName(types.Name("A"), "B"))

	arr := types.Array{types.Name("A")}
	got := prependFilterName(arr, "B")
	require.Equal(t, types.Array{types.Name("B"), types.Name("A")}, got)
}

func TestPrependDecodeParmsStaysIndexAligned(t *testing.T) {
	got := prependDecodeParms(types.Array{types.Dict{"Predictor": types.Integer(12)}})
	require.Equal(t, types.Array{nil, types.Dict{"Predictor": types.Integer(12)}}, got)

	got = prependDecodeParms(types.Dict{"Predictor": types.Integer(12)})
	require.Equal(t, types.Array{nil, types.Dict{"Predictor": types.Integer(12)}}, got)
}

func TestEmitStreamASCIIHexPrependsFilterAheadOfFlate(t *testing.T) {
	ctx := buildDoc(onePageDocEntries(), 1, 0)
	ctx.Deflate = true
	ctx.ASCIIHex = true
	sd := types.NewStreamDict(types.Dict{}, []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}, nil)

	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	require.NoError(t, emitStream(ctx, cw, 4, 0, sd, true))

	out := buf.String()
	require.Contains(t, out, "/Filter[/ASCIIHexDecode /FlateDecode]")
}
