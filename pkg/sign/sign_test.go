package sign_test

import (
	"bytes"
	"testing"

	"github.com/gridref/pdfwriter/pkg/sign"
	"github.com/stretchr/testify/require"
)

type stubSigner struct {
	der []byte
	err error
}

func (s *stubSigner) Sign(digestInput []byte) ([]byte, error) {
	return s.der, s.err
}

func TestPreparePlaceholder(t *testing.T) {
	br, contents := sign.PreparePlaceholder()
	require.Equal(t, 4, len(br))
	for _, v := range br {
		require.Equal(t, 999999999, v)
	}
	require.Equal(t, 8192*2, len(contents))
}

func TestLocateFieldAndFinalize(t *testing.T) {
	_, contents := sign.PreparePlaceholder()
	final := bytes.Join([][]byte{
		[]byte("%PDF-1.7\n1 0 obj\n<< /ByteRange [999999999 999999999 999999999 999999999] /Contents <"),
		[]byte(contents),
		[]byte("> >>\nendobj\n"),
	}, nil)

	f, err := sign.LocateField(final, contents)
	require.NoError(t, err)

	signer := &stubSigner{der: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	out, err := sign.Finalize(final, f, signer)
	require.NoError(t, err)
	require.Equal(t, len(final), len(out))
	require.Contains(t, string(out), "deadbeef")
	require.NotContains(t, string(out), "999999999 999999999 999999999 999999999")
}

func TestFinalizeRejectsOversizedSignature(t *testing.T) {
	_, contents := sign.PreparePlaceholder()
	final := bytes.Join([][]byte{
		[]byte("<< /ByteRange [999999999 999999999 999999999 999999999] /Contents <"),
		[]byte(contents),
		[]byte("> >>"),
	}, nil)
	f, err := sign.LocateField(final, contents)
	require.NoError(t, err)

	oversized := make([]byte, 8193)
	signer := &stubSigner{der: oversized}
	_, err = sign.Finalize(final, f, signer)
	require.Error(t, err)
}
